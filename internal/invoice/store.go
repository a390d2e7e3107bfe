package invoice

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zombor/invoice-extractor/internal/scanning"
)

const (
	currentUserKey = "invoice_extractor_user"
	userDataPrefix = "invoice_extractor_data_"

	dateLayout = "2006-01-02"
)

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// StoredInvoice is the single retained invoice for an identity: the record
// plus the source file for redisplay.
type StoredInvoice struct {
	InvoiceData        *scanning.InvoiceData `json:"invoiceData"`
	SourceBytesEncoded string                `json:"sourceBytesEncoded"`
	SourceName         string                `json:"sourceName"`
	SourceMediaType    string                `json:"sourceMediaType"`
}

// SourceFile decodes the stored source file
func (s *StoredInvoice) SourceFile() (scanning.SourceFile, error) {
	data, err := base64.StdEncoding.DecodeString(s.SourceBytesEncoded)
	if err != nil {
		return scanning.SourceFile{}, fmt.Errorf("decoding stored source file: %w", err)
	}
	return scanning.SourceFile{Name: s.SourceName, MediaType: s.SourceMediaType, Data: data}, nil
}

// DailyStats counts work done on Date (YYYY-MM-DD, UTC)
type DailyStats struct {
	Date              string `json:"date"`
	InvoicesProcessed int    `json:"invoicesProcessed"`
	ItemsExtracted    int    `json:"itemsExtracted"`
}

// UserState is everything persisted for one identity
type UserState struct {
	LastInvoice *StoredInvoice `json:"lastInvoice"`
	DailyStats  DailyStats     `json:"dailyStats"`
}

// PersistenceWarning is a failed local write. It is reported to the caller
// but never rolls back in-memory state.
type PersistenceWarning struct {
	Identity string
	Err      error
}

func (w *PersistenceWarning) Error() string {
	return fmt.Sprintf("saving state for %q: %v", w.Identity, w.Err)
}

func (w *PersistenceWarning) Unwrap() error { return w.Err }

// Store reads and writes per-identity state. It assumes a single writer per
// identity; read-modify-write sequences are not transactional.
type Store struct {
	kv         KV
	timeSource TimeSource
}

// NewStore creates a new Store with the default time source
func NewStore(kv KV) *Store {
	return NewStoreWithDeps(kv, &defaultTimeSource{})
}

// NewStoreWithDeps creates a new Store with a custom time source for testing
func NewStoreWithDeps(kv KV, timeSrc TimeSource) *Store {
	return &Store{kv: kv, timeSource: timeSrc}
}

func (s *Store) today() string {
	return s.timeSource.Now().UTC().Format(dateLayout)
}

func userKey(identity string) string {
	return userDataPrefix + identity
}

// CurrentUser returns the logged-in identity, or "" if nobody is logged in
func (s *Store) CurrentUser() (string, error) {
	data, err := s.kv.Get(currentUserKey)
	if err != nil {
		return "", fmt.Errorf("getting current user: %w", err)
	}
	return string(data), nil
}

// SetCurrentUser records identity as the logged-in identity
func (s *Store) SetCurrentUser(identity string) error {
	if err := s.kv.Put(currentUserKey, []byte(identity)); err != nil {
		return &PersistenceWarning{Identity: identity, Err: err}
	}
	return nil
}

// GetUserState loads the state for identity. Missing or corrupt state yields
// the default (no invoice, zero stats for today). Stats from an earlier date
// are reset to zero for today.
func (s *Store) GetUserState(identity string) (*UserState, error) {
	today := s.today()
	defaultState := &UserState{DailyStats: DailyStats{Date: today}}

	data, err := s.kv.Get(userKey(identity))
	if err != nil {
		return nil, fmt.Errorf("getting user state: %w", err)
	}
	if data == nil {
		return defaultState, nil
	}

	var state UserState
	if err := json.Unmarshal(data, &state); err != nil {
		slog.Warn("Failed to parse stored user state", "identity", identity, "error", err)
		return defaultState, nil
	}

	// Reset stats if it's a new day
	if state.DailyStats.Date != today {
		state.DailyStats = DailyStats{Date: today}
	}
	return &state, nil
}

// SaveUserState writes state for identity
func (s *Store) SaveUserState(identity string, state *UserState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return &PersistenceWarning{Identity: identity, Err: fmt.Errorf("marshaling user state: %w", err)}
	}
	if err := s.kv.Put(userKey(identity), data); err != nil {
		return &PersistenceWarning{Identity: identity, Err: err}
	}
	return nil
}

// UpdateStatsAndSaveInvoice counts one processed invoice and its line items,
// replaces the retained invoice with record and file, and writes the result.
// The returned state is valid even when the error is a *PersistenceWarning.
func (s *Store) UpdateStatsAndSaveInvoice(identity string, record *scanning.InvoiceData, file scanning.SourceFile) (*UserState, error) {
	current, err := s.GetUserState(identity)
	if err != nil {
		return nil, err
	}

	items := 0
	if record != nil {
		items = len(record.LineItems)
	}

	state := &UserState{
		LastInvoice: &StoredInvoice{
			InvoiceData:        record,
			SourceBytesEncoded: base64.StdEncoding.EncodeToString(file.Data),
			SourceName:         file.Name,
			SourceMediaType:    file.MediaType,
		},
		DailyStats: DailyStats{
			Date:              s.today(),
			InvoicesProcessed: current.DailyStats.InvoicesProcessed + 1,
			ItemsExtracted:    current.DailyStats.ItemsExtracted + items,
		},
	}

	return state, s.SaveUserState(identity, state)
}

// SaveRefinedInvoice replaces only the retained record. It reports false
// without writing when identity has no retained invoice.
func (s *Store) SaveRefinedInvoice(identity string, record *scanning.InvoiceData) (bool, error) {
	state, err := s.GetUserState(identity)
	if err != nil {
		return false, err
	}
	if state.LastInvoice == nil {
		return false, nil
	}

	state.LastInvoice.InvoiceData = record
	if err := s.SaveUserState(identity, state); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteUser removes both the current-identity pointer and the identity's state
func (s *Store) DeleteUser(identity string) error {
	if identity == "" {
		return errors.New("identity is required")
	}
	if err := s.kv.Delete(currentUserKey, userKey(identity)); err != nil {
		return &PersistenceWarning{Identity: identity, Err: err}
	}
	return nil
}
