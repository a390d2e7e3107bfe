package invoice

import (
	"io"
	"strings"

	"github.com/zombor/invoice-extractor/internal/scanning"
)

// WriteCSV writes the record as a delimited table with the fixed fifteen
// column header. Every field is quoted. Rows with no invoice number or date
// fall back to the header values.
func WriteCSV(w io.Writer, data *scanning.InvoiceData) error {
	headers := make([]string, len(scanning.Fields))
	for i, f := range scanning.Fields {
		headers[i] = f.Header
	}

	lines := []string{strings.Join(headers, ",")}
	if data != nil {
		for _, item := range data.LineItems {
			values := item.Values()
			// Only an absent value falls back; an explicit "" is kept
			if item.Inv == nil {
				values[1] = deref(data.InvoiceNumber)
			}
			if item.Dt == nil {
				values[2] = deref(data.InvoiceDate)
			}
			for i, v := range values {
				values[i] = quote(v)
			}
			lines = append(lines, strings.Join(values, ","))
		}
	}

	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

// ExportFilename derives the download name from the source file name
func ExportFilename(sourceName string) string {
	base := strings.TrimSuffix(sourceName, ".pdf")
	if base == "" {
		base = "invoice"
	}
	return base + "_extracted.csv"
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
