package invoice

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var (
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("Get", func() {
		When("the key does not exist", func() {
			It("should return nil without an error", func() {
				value, err := db.Get("missing")
				Expect(err).NotTo(HaveOccurred())
				Expect(value).To(BeNil())
			})
		})

		When("the key exists", func() {
			BeforeEach(func() {
				Expect(db.Put("key", []byte("value"))).To(Succeed())
			})

			It("should return the stored value", func() {
				value, err := db.Get("key")
				Expect(err).NotTo(HaveOccurred())
				Expect(string(value)).To(Equal("value"))
			})
		})
	})

	Describe("Put", func() {
		It("should overwrite an existing value", func() {
			Expect(db.Put("key", []byte("one"))).To(Succeed())
			Expect(db.Put("key", []byte("two"))).To(Succeed())

			value, err := db.Get("key")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(value)).To(Equal("two"))
		})

		It("should survive reopening the database", func() {
			Expect(db.Put("key", []byte("durable"))).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())

			value, err := db.Get("key")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(value)).To(Equal("durable"))
		})
	})

	Describe("Delete", func() {
		BeforeEach(func() {
			Expect(db.Put("a", []byte("1"))).To(Succeed())
			Expect(db.Put("b", []byte("2"))).To(Succeed())
			Expect(db.Put("c", []byte("3"))).To(Succeed())
		})

		It("should remove every named key", func() {
			Expect(db.Delete("a", "b")).To(Succeed())

			a, _ := db.Get("a")
			b, _ := db.Get("b")
			c, _ := db.Get("c")
			Expect(a).To(BeNil())
			Expect(b).To(BeNil())
			Expect(string(c)).To(Equal("3"))
		})

		It("should ignore missing keys", func() {
			Expect(db.Delete("missing", "a")).To(Succeed())
		})
	})
})
