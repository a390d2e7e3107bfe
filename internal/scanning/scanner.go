package scanning

import "context"

// LineItem is one row of an invoice table. A nil field means the value is not
// present on that row, which is distinct from an empty string.
type LineItem struct {
	Sr          *string  `json:"sr"`
	Inv         *string  `json:"inv"`
	Dt          *string  `json:"dt"`
	Code        *string  `json:"code"`
	Description *string  `json:"description"`
	Qty         *float64 `json:"qty"`
	UOM         *string  `json:"uom"`
	UnitPrice   *float64 `json:"unitPrice"`
	Total       *float64 `json:"total"`
	HSCode      *string  `json:"hsCode"`
	COO         *string  `json:"coo"`
	Std         *string  `json:"std"`
	LotNumber   *string  `json:"lotNumber"`
	ExpDate     *string  `json:"expDate"`
	FabDate     *string  `json:"fabDate"`
}

// InvoiceData is the full extracted record: header fields plus line items in
// source row order. Duplicate or missing sr values are kept as-is.
type InvoiceData struct {
	SerialNumber  *string    `json:"serialNumber"`
	InvoiceNumber *string    `json:"invoiceNumber"`
	InvoiceDate   *string    `json:"invoiceDate"`
	LineItems     []LineItem `json:"lineItems"`
}

// SourceFile is a user-supplied document as received.
type SourceFile struct {
	Name      string
	MediaType string
	Data      []byte
}

// Image is a compressed raster image ready to be sent to a generation backend.
type Image struct {
	Data      []byte
	MediaType string
}

// Request is a single round-trip to a generation backend.
type Request struct {
	// Model is passed through to the backend untouched.
	Model           string
	Prompt          string
	Image           *Image
	MaxOutputTokens int
}

// Generator is the multimodal generation backend.
type Generator interface {
	// GenerateStructured sends the prompt and image and constrains the reply
	// to the InvoiceData schema.
	GenerateStructured(ctx context.Context, req Request) (string, error)

	// GenerateJSON sends a text-only prompt and asks for a JSON reply with no
	// schema enforced by the backend.
	GenerateJSON(ctx context.Context, req Request) (string, error)

	// Close releases backend resources
	Close() error
}

// Rasterizer turns a source document into a single compressed image.
type Rasterizer interface {
	Rasterize(data []byte, mediaType string) (*Image, error)
}
