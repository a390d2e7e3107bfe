package scanning

// Progress is one extraction checkpoint. Percent never decreases within a run
// and reaches 100 only on success.
type Progress struct {
	RunID   string `json:"run_id"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// ProgressReporter receives checkpoints from a running extraction. Report is
// called on the extraction goroutine and must not block.
type ProgressReporter interface {
	Report(p Progress)
}

// ProgressFunc adapts a plain function to ProgressReporter
type ProgressFunc func(p Progress)

// Report calls f(p)
func (f ProgressFunc) Report(p Progress) { f(p) }

type discardProgress struct{}

func (discardProgress) Report(Progress) {}
