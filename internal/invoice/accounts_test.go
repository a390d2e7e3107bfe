package invoice

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Accounts", func() {
	Describe("ParseAccounts", func() {
		It("should parse name:password pairs", func() {
			accounts, err := ParseAccounts([]string{"Admin:s3cret", " ops :pa:ss"})
			Expect(err).NotTo(HaveOccurred())
			Expect(accounts).To(Equal(Accounts{
				{Name: "Admin", Password: "s3cret"},
				{Name: "ops", Password: "pa:ss"},
			}))
		})

		It("should reject a pair without a password", func() {
			_, err := ParseAccounts([]string{"Admin"})
			Expect(err).To(MatchError(ContainSubstring("expected name:password")))
		})

		It("should reject an empty name", func() {
			_, err := ParseAccounts([]string{":secret"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Authenticate", func() {
		var (
			accounts Accounts
			name     string
			password string
			identity string
			err      error
		)

		BeforeEach(func() {
			accounts = Accounts{{Name: "Admin", Password: "s3cret"}}
			password = ""
		})

		JustBeforeEach(func() {
			identity, err = accounts.Authenticate(name, password)
		})

		When("the name is not reserved", func() {
			BeforeEach(func() {
				name = "  alice  "
			})

			It("should accept it without a password", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(identity).To(Equal("alice"))
			})
		})

		When("the name is blank", func() {
			BeforeEach(func() {
				name = "   "
			})

			It("should return ErrEmptyName", func() {
				Expect(err).To(MatchError(ErrEmptyName))
			})
		})

		When("a reserved name is given in another case with the right password", func() {
			BeforeEach(func() {
				name = "aDMIN"
				password = "s3cret"
			})

			It("should log in under the configured spelling", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(identity).To(Equal("Admin"))
			})
		})

		When("a reserved name is given with the wrong password", func() {
			BeforeEach(func() {
				name = "admin"
				password = "guess"
			})

			It("should return ErrInvalidPassword", func() {
				Expect(err).To(MatchError(ErrInvalidPassword))
				Expect(identity).To(BeEmpty())
			})
		})
	})
})
