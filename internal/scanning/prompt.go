package scanning

import (
	"fmt"
	"strings"
)

// extractionPrompt is the instruction block sent with the page image. It lists
// the fifteen columns, the no-truncation rule and the fuzzy header mapping.
var extractionPrompt = buildExtractionPrompt()

func buildExtractionPrompt() string {
	var b strings.Builder
	b.WriteString(`You are a professional Data OCR Specialist.
TASK: Extract EVERY product row from the invoice table into the exact JSON schema provided.

COLUMNS TO CAPTURE:
`)
	for _, f := range Fields {
		fmt.Fprintf(&b, "- %s (%s): %s\n", f.Label, f.Key, f.Meaning)
	}
	b.WriteString(`
HEADER FIELDS:
- serialNumber: document serial number, if printed
- invoiceNumber: the invoice number from the document header
- invoiceDate: the invoice date from the document header

MAPPING LOGIC:
- Source headers vary between suppliers. Map each source column to the closest field above.
- If a header is labeled 'h', 'hkya', 'H.S.' or similar, map it to 'hsCode'.
- If 'U.P', 'Price' or 'Rate' is found, map to 'unitPrice'.
- If 'TOT' or 'Amount' is found, map to 'total'.
- If 'Batch' or 'Lot' is found, map to 'lotNumber'.
- If a value is not printed on a row, use null for that field. Never invent fields outside the schema.

COMPLETENESS:
- Capture every row in source order, even when there are hundreds (500+) of rows.
- Do not summarise, skip, merge or renumber rows. Keep duplicate or missing SR values as printed.
- Do not stop early; the table must be complete.`)
	return b.String()
}

// refinementPrompt asks the model to return the complete corrected record.
const refinementPrompt = `SYSTEM: You are a Master Data Editor.
You must modify the current JSON data based on the user's specific feedback.

SCENARIOS TO HANDLE:
1. Header Re-mapping: If the user says "Column X should be HS Code", move all data from X to the 'hsCode' field for every item. Move the values, do not duplicate them.
2. Bulk Fixes: If the user says "Set all INV to 1234", update that field on all items.
3. Corrections: "Row 5 model is wrong, change it to ABC" changes only the referenced row.
4. Data Recovery: "You missed the 'h' column, it contains the HS codes" fills in the missing field.

ALLOWED FIELDS IN JSON:
[%s]

Return the COMPLETE corrected JSON object with the same top-level keys (serialNumber, invoiceNumber, invoiceDate, lineItems).
Leave every value the instruction does not mention unchanged. Do not add or remove rows unless asked.

USER INSTRUCTION: %q

CURRENT JSON DATA:
%s
`

func buildRefinementPrompt(instruction string, currentJSON []byte) string {
	keys := make([]string, len(Fields))
	for i, f := range Fields {
		keys[i] = f.Key
	}
	return fmt.Sprintf(refinementPrompt, strings.Join(keys, ", "), instruction, currentJSON)
}
