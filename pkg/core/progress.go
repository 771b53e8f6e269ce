package core

// ProgressFunc receives progress notifications from long running stages. Implementations
// must be safe for concurrent use; nil means no reporting.
type ProgressFunc func(stage string, done, total int)

// Report calls f if it is set.
func (f ProgressFunc) Report(stage string, done, total int) {
	if f != nil {
		f(stage, done, total)
	}
}
