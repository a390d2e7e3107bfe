package invoice

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyName       = errors.New("name is required")
	ErrInvalidPassword = errors.New("invalid password for admin access")
)

// Account is a reserved display name that needs a password.
type Account struct {
	Name     string
	Password string
}

// Accounts is the reserved-name allow-list. It is a cosmetic access tier for
// the "admin" label, not a security boundary: any other name logs in with no
// password at all.
type Accounts []Account

// ParseAccounts parses "name:password" pairs
func ParseAccounts(specs []string) (Accounts, error) {
	accounts := make(Accounts, 0, len(specs))
	for _, spec := range specs {
		name, password, ok := strings.Cut(spec, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" || password == "" {
			return nil, fmt.Errorf("invalid account %q, expected name:password", spec)
		}
		accounts = append(accounts, Account{Name: name, Password: password})
	}
	return accounts, nil
}

// Lookup finds a reserved account by case-insensitive name
func (a Accounts) Lookup(name string) (Account, bool) {
	name = strings.TrimSpace(name)
	for _, acc := range a {
		if strings.EqualFold(acc.Name, name) {
			return acc, true
		}
	}
	return Account{}, false
}

// Authenticate returns the identity to log in as. Reserved names need the
// exact password and log in under their configured spelling; other names are
// accepted as typed (trimmed).
func (a Accounts) Authenticate(name, password string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}

	acc, reserved := a.Lookup(name)
	if !reserved {
		return name, nil
	}
	if acc.Password != password {
		return "", ErrInvalidPassword
	}
	return acc.Name, nil
}
