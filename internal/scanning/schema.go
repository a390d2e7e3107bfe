package scanning

import (
	"strconv"

	"github.com/google/generative-ai-go/genai"
)

// Field describes one of the fifteen line item columns.
type Field struct {
	Key     string // JSON property name
	Label   string // short column label used in prompts
	Header  string // export column header
	Meaning string
	Numeric bool
}

// Fields is the closed set of line item columns in export order.
var Fields = []Field{
	{Key: "sr", Label: "SR", Header: "SR", Meaning: "Row sequence"},
	{Key: "inv", Label: "INV", Header: "INV", Meaning: "Invoice Number"},
	{Key: "dt", Label: "DT", Header: "DT", Meaning: "Invoice Date"},
	{Key: "code", Label: "CODE", Header: "CODE", Meaning: "Item Code / Model"},
	{Key: "description", Label: "DESC", Header: "DESC", Meaning: "Product Description"},
	{Key: "qty", Label: "QTY", Header: "QTY", Meaning: "Quantity", Numeric: true},
	{Key: "uom", Label: "UOM", Header: "UOM", Meaning: "Units (e.g. PCS, UNT)"},
	{Key: "unitPrice", Label: "U.P", Header: "U.P", Meaning: "Unit Price", Numeric: true},
	{Key: "total", Label: "TOT", Header: "TOT", Meaning: "Total Amount", Numeric: true},
	{Key: "hsCode", Label: "HS", Header: "HS", Meaning: "HS Code / Harmonized System"},
	{Key: "coo", Label: "COO", Header: "COO", Meaning: "Country of Origin"},
	{Key: "std", Label: "STD", Header: "STD", Meaning: "Standard / Grade"},
	{Key: "lotNumber", Label: "Lot NO", Header: "Lot NO/Batch NO", Meaning: "Batch/Lot Number"},
	{Key: "expDate", Label: "Exp", Header: "Exp Date", Meaning: "Expiry Date"},
	{Key: "fabDate", Label: "Fab", Header: "Fab Date", Meaning: "Fabrication/Production Date"},
}

var headerKeys = []string{"serialNumber", "invoiceNumber", "invoiceDate"}

// Values returns the row's fifteen values in Fields order. Absent values are
// returned as empty strings; numbers use the shortest exact decimal form.
func (li LineItem) Values() []string {
	return []string{
		str(li.Sr), str(li.Inv), str(li.Dt), str(li.Code), str(li.Description),
		num(li.Qty), str(li.UOM), num(li.UnitPrice), num(li.Total), str(li.HSCode),
		str(li.COO), str(li.Std), str(li.LotNumber), str(li.ExpDate), str(li.FabDate),
	}
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func num(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// invoiceGenaiSchema is the response schema for Gemini structured output.
// Every leaf is nullable; only lineItems is required.
func invoiceGenaiSchema() *genai.Schema {
	item := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(Fields)),
	}
	for _, f := range Fields {
		t := genai.TypeString
		if f.Numeric {
			t = genai.TypeNumber
		}
		item.Properties[f.Key] = &genai.Schema{Type: t, Nullable: true, Description: f.Meaning}
	}

	root := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: map[string]*genai.Schema{},
		Required:   []string{"lineItems"},
	}
	for _, k := range headerKeys {
		root.Properties[k] = &genai.Schema{Type: genai.TypeString, Nullable: true}
	}
	root.Properties["lineItems"] = &genai.Schema{Type: genai.TypeArray, Items: item}
	return root
}

// invoiceJSONSchema is the same shape as a JSON Schema document, for backends
// that accept one directly.
func invoiceJSONSchema() map[string]any {
	props := make(map[string]any, len(Fields))
	for _, f := range Fields {
		t := "string"
		if f.Numeric {
			t = "number"
		}
		props[f.Key] = map[string]any{"type": []string{t, "null"}}
	}

	root := map[string]any{
		"type":     "object",
		"required": []string{"lineItems"},
	}
	rootProps := map[string]any{}
	for _, k := range headerKeys {
		rootProps[k] = map[string]any{"type": []string{"string", "null"}}
	}
	rootProps["lineItems"] = map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":                 "object",
			"properties":           props,
			"additionalProperties": false,
		},
	}
	root["properties"] = rootProps
	return root
}
