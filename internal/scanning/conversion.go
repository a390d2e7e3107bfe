package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	_ "image/png" // Register PNG decoder
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

const (
	// pdfPointsPerInch is the nominal PDF page resolution.
	pdfPointsPerInch = 72.0

	DefaultRenderScale = 2.5
	DefaultJPEGQuality = 85
	DefaultMaxEdge     = 4096
)

// PageRasterizer renders page 1 of a PDF (or decodes an already raster image)
// and re-encodes it as JPEG.
type PageRasterizer struct {
	scale   float64
	quality int
	maxEdge int
}

// NewPageRasterizer creates a PageRasterizer. Zero values fall back to the defaults.
func NewPageRasterizer(scale float64, quality int) *PageRasterizer {
	if scale <= 0 {
		scale = DefaultRenderScale
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &PageRasterizer{
		scale:   scale,
		quality: quality,
		maxEdge: DefaultMaxEdge,
	}
}

// Rasterize converts the document into a single JPEG image. Any failure is a
// *DocumentProcessingError; there is no retry.
func (p *PageRasterizer) Rasterize(data []byte, mediaType string) (*Image, error) {
	mediaType = normalizeMediaType(mediaType)

	var (
		img image.Image
		err error
	)
	if mediaType == "application/pdf" || isPDFFormat(data) {
		img, err = p.renderFirstPage(data)
	} else {
		img, err = decodeImage(data, mediaType)
	}
	if err != nil {
		return nil, &DocumentProcessingError{Err: err}
	}

	// Phone photos can be far larger than anything the model needs
	if b := img.Bounds(); p.maxEdge > 0 && (b.Dx() > p.maxEdge || b.Dy() > p.maxEdge) {
		img = imaging.Fit(img, p.maxEdge, p.maxEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return nil, &DocumentProcessingError{Err: fmt.Errorf("encoding JPEG: %w", err)}
	}

	return &Image{Data: buf.Bytes(), MediaType: "image/jpeg"}, nil
}

// renderFirstPage renders only page 1 at the configured scale
func (p *PageRasterizer) renderFirstPage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.ImageDPI(0, pdfPointsPerInch*p.scale)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// decodeImage decodes JPEG, PNG, GIF and HEIC/HEIF sources
func decodeImage(imageData []byte, mimeType string) (image.Image, error) {
	// Go's standard image package doesn't support HEIC
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, err := imaging.Decode(bytes.NewReader(imageData), imaging.AutoOrientation(true))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") {
			return nil, fmt.Errorf("unsupported document format. Supported formats: PDF, JPEG, PNG, GIF, HEIC, HEIF. Error: %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

func isPDFFormat(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// isHEICFormat checks for an ftyp box with a HEIC-related brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

func normalizeMediaType(mediaType string) string {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	return mediaType
}
