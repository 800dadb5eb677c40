package d1

import "time"

// Observer receives import lifecycle events. Implementations must be safe
// for use from the goroutine running Import.
type Observer interface {
	// ScriptStaged is called after a script upload passed the ETag check.
	ScriptStaged(database string, bytes int)

	// PollSent is called for every poll request.
	PollSent(database string)

	// ImportFinished is called once per Import with the error code of the
	// failure, or "" on success.
	ImportFinished(database string, code ErrorCode, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ScriptStaged(string, int)                        {}
func (nopObserver) PollSent(string)                                 {}
func (nopObserver) ImportFinished(string, ErrorCode, time.Duration) {}
