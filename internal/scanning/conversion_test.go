package scanning

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func pngBytes(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.Black)
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

// pdfBytes builds a minimal PDF with one blank page per MediaBox size, in points
func pdfBytes(sizes ...[2]int) []byte {
	objects := []string{"<< /Type /Catalog /Pages 2 0 R >>"}
	kids := ""
	for i := range sizes {
		kids += fmt.Sprintf("%d 0 R ", i+3)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(sizes)))
	for _, size := range sizes {
		objects = append(objects, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] >>", size[0], size[1]))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

var _ = Describe("PageRasterizer", func() {
	var (
		rasterizer *PageRasterizer
		data       []byte
		mediaType  string
		img        *Image
		err        error
	)

	BeforeEach(func() {
		rasterizer = NewPageRasterizer(0, 0)
	})

	JustBeforeEach(func() {
		img, err = rasterizer.Rasterize(data, mediaType)
	})

	When("the source is a PNG image", func() {
		BeforeEach(func() {
			data = pngBytes(200, 100)
			mediaType = "image/png"
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("re-encodes it as JPEG", func() {
			Expect(img.MediaType).To(Equal("image/jpeg"))
			_, format, decErr := image.DecodeConfig(bytes.NewReader(img.Data))
			Expect(decErr).NotTo(HaveOccurred())
			Expect(format).To(Equal("jpeg"))
		})

		It("keeps the original size", func() {
			cfg, _, decErr := image.DecodeConfig(bytes.NewReader(img.Data))
			Expect(decErr).NotTo(HaveOccurred())
			Expect(cfg.Width).To(Equal(200))
			Expect(cfg.Height).To(Equal(100))
		})
	})

	When("the image is larger than the maximum edge", func() {
		BeforeEach(func() {
			data = pngBytes(DefaultMaxEdge*2, 20)
			mediaType = "image/png; charset=binary"
		})

		It("fits it within the maximum edge", func() {
			Expect(err).NotTo(HaveOccurred())
			cfg, _, decErr := image.DecodeConfig(bytes.NewReader(img.Data))
			Expect(decErr).NotTo(HaveOccurred())
			Expect(cfg.Width).To(Equal(DefaultMaxEdge))
		})
	})

	When("the source is a multi-page PDF", func() {
		BeforeEach(func() {
			data = pdfBytes([2]int{200, 100}, [2]int{300, 100})
			mediaType = "application/pdf"
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("renders page 1 only at the default scale", func() {
			Expect(img.MediaType).To(Equal("image/jpeg"))
			cfg, format, decErr := image.DecodeConfig(bytes.NewReader(img.Data))
			Expect(decErr).NotTo(HaveOccurred())
			Expect(format).To(Equal("jpeg"))
			Expect(cfg.Width).To(Equal(500))
			Expect(cfg.Height).To(Equal(250))
		})

		When("the render scale is set", func() {
			BeforeEach(func() {
				rasterizer = NewPageRasterizer(1.0, 0)
			})

			It("renders at that scale", func() {
				cfg, _, decErr := image.DecodeConfig(bytes.NewReader(img.Data))
				Expect(decErr).NotTo(HaveOccurred())
				Expect(cfg.Width).To(Equal(200))
				Expect(cfg.Height).To(Equal(100))
			})
		})

		When("the media type is missing", func() {
			BeforeEach(func() {
				mediaType = ""
			})

			It("detects the PDF from its header", func() {
				Expect(err).NotTo(HaveOccurred())
				cfg, _, decErr := image.DecodeConfig(bytes.NewReader(img.Data))
				Expect(decErr).NotTo(HaveOccurred())
				Expect(cfg.Width).To(Equal(500))
			})
		})
	})

	When("the PDF is corrupt", func() {
		BeforeEach(func() {
			data = []byte("%PDF-1.4 this is not really a pdf")
			mediaType = "application/pdf"
		})

		It("returns a DocumentProcessingError", func() {
			var docErr *DocumentProcessingError
			Expect(errors.As(err, &docErr)).To(BeTrue())
			Expect(img).To(BeNil())
		})
	})

	When("the format is unknown", func() {
		BeforeEach(func() {
			data = []byte("plain text, not a document")
			mediaType = "text/plain"
		})

		It("returns a DocumentProcessingError naming the supported formats", func() {
			var docErr *DocumentProcessingError
			Expect(errors.As(err, &docErr)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("Supported formats"))
		})
	})
})

var _ = Describe("isHEICFormat", func() {
	It("detects the heic brand", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypheic\x00\x00"))).To(BeTrue())
	})

	It("rejects short input", func() {
		Expect(isHEICFormat([]byte("ftyp"))).To(BeFalse())
	})

	It("rejects other brands", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypisom\x00\x00"))).To(BeFalse())
	})
})
