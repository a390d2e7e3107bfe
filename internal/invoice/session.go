package invoice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/zombor/invoice-extractor/internal/scanning"
)

// State is the session's position in the extraction workflow
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateIdle            State = "idle"
	StateExtracting      State = "extracting"
	StateReady           State = "ready"
	StateRefining        State = "refining"
	StateFailed          State = "failed"
)

var (
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrBusy           = errors.New("another operation is in progress")
	ErrNoRecord       = errors.New("no invoice data")
	ErrNoSourceFile   = errors.New("no source file")
	ErrNothingToRetry = errors.New("nothing to retry")
	ErrDiscarded      = errors.New("result discarded after reset or logout")
	ErrEmptyModel     = errors.New("model is required")
)

// Extractor turns a source document into a record
type Extractor interface {
	Extract(ctx context.Context, file scanning.SourceFile, model string, progress scanning.ProgressReporter) (*scanning.InvoiceData, error)
}

// Refiner applies a natural-language correction to a record
type Refiner interface {
	Refine(ctx context.Context, current *scanning.InvoiceData, instruction string, model string) (*scanning.InvoiceData, error)
}

// View is a point-in-time copy of the session for display
type View struct {
	State    State                 `json:"state"`
	Identity string                `json:"identity,omitempty"`
	Model    string                `json:"model"`
	Stats    DailyStats            `json:"stats"`
	FileName string                `json:"file_name,omitempty"`
	Record   *scanning.InvoiceData `json:"record,omitempty"`
	Error    string                `json:"error,omitempty"`
	Progress scanning.Progress     `json:"progress"`
}

// Session owns the current identity, record and source file and sequences
// extraction and refinement with persistence. At most one extraction or
// refinement runs at a time; a running call is never aborted, but Reset and
// Logout make its result irrelevant.
type Session struct {
	store     *Store
	extractor Extractor
	refiner   Refiner
	accounts  Accounts
	progress  *ProgressFeed

	mu       sync.Mutex
	state    State
	identity string
	model    string
	file     *scanning.SourceFile
	record   *scanning.InvoiceData
	stats    DailyStats
	lastErr  string
	inFlight bool
	// generation is bumped by Reset and Logout so late results can be recognised
	generation uint64
}

// NewSession creates a logged-out session using model as the initial model
func NewSession(store *Store, extractor Extractor, refiner Refiner, accounts Accounts, model string) *Session {
	if model == "" {
		model = scanning.DefaultFastModel
	}
	return &Session{
		store:     store,
		extractor: extractor,
		refiner:   refiner,
		accounts:  accounts,
		progress:  NewProgressFeed(),
		state:     StateUnauthenticated,
		model:     model,
	}
}

// Progress returns the session's progress feed
func (s *Session) Progress() *ProgressFeed {
	return s.progress
}

// Restore logs back in the persisted identity, if any, and reloads its last
// invoice into Ready.
func (s *Session) Restore() error {
	identity, err := s.store.CurrentUser()
	if err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}
	if identity == "" {
		return nil
	}

	state, err := s.store.GetUserState(identity)
	if err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = identity
	s.stats = state.DailyStats
	s.state = StateIdle
	if state.LastInvoice != nil && state.LastInvoice.InvoiceData != nil {
		file, err := state.LastInvoice.SourceFile()
		if err != nil {
			slog.Warn("Failed to restore source file", "identity", identity, "error", err)
		} else {
			s.file = &file
		}
		s.record = state.LastInvoice.InvoiceData
		s.state = StateReady
	}

	slog.Info("Session restored", "identity", identity, "state", s.state)
	return nil
}

// Login authenticates name against the reserved accounts and starts an Idle
// session for the resulting identity.
func (s *Session) Login(name, password string) error {
	identity, err := s.accounts.Authenticate(name, password)
	if err != nil {
		return err
	}

	if err := s.store.SetCurrentUser(identity); err != nil {
		slog.Warn("Failed to persist current user", "identity", identity, "error", err)
	}
	state, err := s.store.GetUserState(identity)
	if err != nil {
		return fmt.Errorf("loading user state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.identity = identity
	s.stats = state.DailyStats
	s.clearLocked()
	s.state = StateIdle

	slog.Info("User logged in", "identity", identity)
	return nil
}

// Logout discards in-memory state and deletes the identity's persisted state.
func (s *Session) Logout() error {
	s.mu.Lock()
	identity := s.identity
	s.generation++
	s.identity = ""
	s.stats = DailyStats{}
	s.clearLocked()
	s.state = StateUnauthenticated
	s.mu.Unlock()

	if identity == "" {
		return nil
	}
	if err := s.store.DeleteUser(identity); err != nil {
		slog.Warn("Failed to delete user state", "identity", identity, "error", err)
		return err
	}

	slog.Info("User logged out", "identity", identity)
	return nil
}

// SelectModel sets the model identifier used by later calls. The identifier
// is passed through to the backend as-is.
func (s *Session) SelectModel(model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return ErrEmptyModel
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
	return nil
}

// Extract runs an extraction for file. On success the stats and retained
// invoice are persisted and the session becomes Ready; on failure it becomes
// Failed and keeps file for Retry. An empty model uses the selected model.
func (s *Session) Extract(ctx context.Context, file scanning.SourceFile, model string) (*scanning.InvoiceData, error) {
	s.mu.Lock()
	if s.identity == "" {
		s.mu.Unlock()
		return nil, ErrNotLoggedIn
	}
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if model == "" {
		model = s.model
	}
	s.inFlight = true
	s.state = StateExtracting
	s.file = &file
	s.record = nil
	s.lastErr = ""
	gen := s.generation
	identity := s.identity
	s.progress.Clear()
	s.mu.Unlock()

	data, err := s.extractor.Extract(ctx, file, model, s.progress)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false

	if gen != s.generation {
		slog.Info("Discarding stale extraction result", "identity", identity, "file", file.Name)
		return nil, ErrDiscarded
	}

	if err != nil {
		s.state = StateFailed
		s.lastErr = err.Error()
		return nil, err
	}

	state, err := s.store.UpdateStatsAndSaveInvoice(identity, data, file)
	if err != nil {
		// The extraction itself succeeded; only the bookkeeping failed
		slog.Warn("Failed to save invoice", "identity", identity, "error", err)
	}
	if state != nil {
		s.stats = state.DailyStats
	}

	s.record = data
	s.state = StateReady
	return data, nil
}

// Retry re-runs the failed extraction with the same source file
func (s *Session) Retry(ctx context.Context) (*scanning.InvoiceData, error) {
	s.mu.Lock()
	if s.state != StateFailed || s.file == nil {
		s.mu.Unlock()
		return nil, ErrNothingToRetry
	}
	file := *s.file
	s.mu.Unlock()

	return s.Extract(ctx, file, "")
}

// Refine applies instruction to the current record. A failure leaves the
// current record untouched and the session Ready with the error recorded.
// A successful result is persisted only if a retained invoice still exists.
func (s *Session) Refine(ctx context.Context, instruction string) (*scanning.InvoiceData, error) {
	s.mu.Lock()
	if s.identity == "" {
		s.mu.Unlock()
		return nil, ErrNotLoggedIn
	}
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if s.state != StateReady || s.record == nil {
		s.mu.Unlock()
		return nil, ErrNoRecord
	}
	s.inFlight = true
	s.state = StateRefining
	s.lastErr = ""
	current := s.record
	model := s.model
	gen := s.generation
	identity := s.identity
	s.mu.Unlock()

	data, err := s.refiner.Refine(ctx, current, instruction, model)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false

	if gen != s.generation {
		slog.Info("Discarding stale refinement result", "identity", identity)
		return nil, ErrDiscarded
	}

	s.state = StateReady
	if err != nil {
		s.lastErr = err.Error()
		return nil, err
	}

	s.record = data
	saved, err := s.store.SaveRefinedInvoice(identity, data)
	switch {
	case err != nil:
		slog.Warn("Failed to save refined invoice", "identity", identity, "error", err)
	case !saved:
		slog.Info("No stored invoice, refined data not persisted", "identity", identity)
	}
	return data, nil
}

// Reset returns to Idle, discarding the file and record but not persisted
// state. A running call keeps running; its result is dropped.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.clearLocked()
	if s.identity != "" {
		s.state = StateIdle
	}
}

func (s *Session) clearLocked() {
	s.file = nil
	s.record = nil
	s.lastErr = ""
	s.progress.Clear()
}

// Snapshot returns the current view
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		State:    s.state,
		Identity: s.identity,
		Model:    s.model,
		Stats:    s.stats,
		Record:   s.record,
		Error:    s.lastErr,
		Progress: s.progress.Latest(),
	}
	if s.file != nil {
		v.FileName = s.file.Name
	}
	return v
}

// SourceFile returns the current source file
func (s *Session) SourceFile() (scanning.SourceFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity == "" {
		return scanning.SourceFile{}, ErrNotLoggedIn
	}
	if s.file == nil {
		return scanning.SourceFile{}, ErrNoSourceFile
	}
	return *s.file, nil
}

// Export writes the current record as CSV and returns the download file name
func (s *Session) Export(w io.Writer) (string, error) {
	s.mu.Lock()
	if s.identity == "" {
		s.mu.Unlock()
		return "", ErrNotLoggedIn
	}
	record := s.record
	name := "invoice"
	if s.file != nil {
		name = s.file.Name
	}
	s.mu.Unlock()

	if record == nil {
		return "", ErrNoRecord
	}
	return ExportFilename(name), WriteCSV(w, record)
}
