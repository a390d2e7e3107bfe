package invoice

import (
	"bytes"
	"encoding/csv"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/invoice-extractor/internal/scanning"
)

var _ = Describe("WriteCSV", func() {
	var (
		data *scanning.InvoiceData
		buf  bytes.Buffer
		err  error
	)

	BeforeEach(func() {
		buf.Reset()
	})

	JustBeforeEach(func() {
		err = WriteCSV(&buf, data)
	})

	When("the record has no line items", func() {
		BeforeEach(func() {
			data = &scanning.InvoiceData{LineItems: []scanning.LineItem{}}
		})

		It("should write only the header line", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(buf.String()).To(Equal("SR,INV,DT,CODE,DESC,QTY,UOM,U.P,TOT,HS,COO,STD,Lot NO/Batch NO,Exp Date,Fab Date"))
		})
	})

	When("the record has line items", func() {
		BeforeEach(func() {
			data = &scanning.InvoiceData{
				InvoiceNumber: ptr("INV-100"),
				InvoiceDate:   ptr("2024-01-15"),
				LineItems: []scanning.LineItem{
					{
						Sr:          ptr("1"),
						Code:        ptr("A-1"),
						Description: ptr(`Bolt 3/8" zinc, coarse`),
						Qty:         ptr(10.0),
						UnitPrice:   ptr(2.5),
						Total:       ptr(25.0),
					},
					{
						Sr:  ptr("2"),
						Inv: ptr("INV-OTHER"),
						Dt:  ptr("2024-02-01"),
						Qty: ptr(0.0),
					},
					{
						Sr:  ptr("3"),
						Inv: ptr(""),
						Dt:  ptr(""),
					},
				},
			}
		})

		It("should quote every field and double embedded quotes", func() {
			lines := strings.Split(buf.String(), "\n")
			Expect(lines).To(HaveLen(4))
			Expect(lines[1]).To(HavePrefix(`"1","INV-100","2024-01-15","A-1","Bolt 3/8"" zinc, coarse","10","","2.5","25",`))
		})

		It("should not end with a newline", func() {
			Expect(buf.String()).NotTo(HaveSuffix("\n"))
		})

		It("should round trip through a CSV reader", func() {
			rows, readErr := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
			Expect(readErr).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(4))
			Expect(rows[0]).To(HaveLen(15))
			Expect(rows[1][4]).To(Equal(`Bolt 3/8" zinc, coarse`))
		})

		It("should fall back to the header invoice number and date", func() {
			rows, _ := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
			Expect(rows[1][1]).To(Equal("INV-100"))
			Expect(rows[1][2]).To(Equal("2024-01-15"))
		})

		It("should keep a row's own invoice number and date", func() {
			rows, _ := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
			Expect(rows[2][1]).To(Equal("INV-OTHER"))
			Expect(rows[2][2]).To(Equal("2024-02-01"))
		})

		It("should keep an empty invoice number and date instead of falling back", func() {
			lines := strings.Split(buf.String(), "\n")
			Expect(lines[3]).To(HavePrefix(`"3","","",`))
		})

		It("should write zero quantities as 0 and missing values as empty", func() {
			rows, _ := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
			Expect(rows[2][5]).To(Equal("0"))
			Expect(rows[2][7]).To(Equal(""))
		})
	})
})

var _ = Describe("ExportFilename", func() {
	It("should strip the .pdf extension", func() {
		Expect(ExportFilename("march-invoice.pdf")).To(Equal("march-invoice_extracted.csv"))
	})

	It("should keep other extensions", func() {
		Expect(ExportFilename("scan.png")).To(Equal("scan.png_extracted.csv"))
	})

	It("should fall back when there is no name", func() {
		Expect(ExportFilename("")).To(Equal("invoice_extracted.csv"))
	})
})
