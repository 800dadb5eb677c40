package d1

import (
	"strconv"
	"strings"
	"time"
)

const (
	// MaxPollAttempts caps the number of poll requests for one import.
	MaxPollAttempts = 300

	// PollInterval is the delay before each poll request.
	PollInterval = time.Second

	// SentinelNotImporting is the error text the service returns when there is
	// no import in flight, which happens when a prior run already completed
	// this exact import.
	SentinelNotImporting = "Not currently importing anything."
)

// ImportStatus is the progress report returned by ingest and poll.
type ImportStatus struct {
	Success    bool     `json:"success"`
	Error      string   `json:"error,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	Messages   []string `json:"messages,omitempty"`
	Status     string   `json:"status,omitempty"`
	AtBookmark string   `json:"at_bookmark,omitempty"`
}

// failureMessage returns the explicit error text, the joined error list, or
// "unknown error".
func (s ImportStatus) failureMessage() string {
	if s.Error != "" {
		return s.Error
	}
	if len(s.Errors) > 0 {
		return strings.Join(s.Errors, ", ")
	}
	return "unknown error"
}

// ActionKind is the polling loop's next move.
type ActionKind int

const (
	// ActionContinue means poll again after Action.Delay.
	ActionContinue ActionKind = iota

	// ActionComplete means the import is durably complete.
	ActionComplete

	// ActionFail means the service reported the import as failed.
	ActionFail

	// ActionTimeout means the attempt cap was reached without a terminal status.
	ActionTimeout
)

func (k ActionKind) String() string {
	switch k {
	case ActionContinue:
		return "continue"
	case ActionComplete:
		return "complete"
	case ActionFail:
		return "fail"
	case ActionTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Action is the result of Decide.
type Action struct {
	Kind ActionKind

	// Delay is set for ActionContinue.
	Delay time.Duration

	// Message explains ActionFail and ActionTimeout.
	Message string
}

// Terminal reports whether the action ends the polling loop.
func (a Action) Terminal() bool {
	return a.Kind != ActionContinue
}

// Decide maps the latest status and the number of polls already made to the
// next action. Rules apply in order:
//
//  1. error text equal to SentinelNotImporting: complete
//  2. status "complete" (any case): complete
//  3. status containing "fail" or "error" (any case): fail
//  4. success=false: fail
//  5. attempts >= MaxPollAttempts: timeout
//  6. otherwise continue after PollInterval
func Decide(status ImportStatus, attempts int) Action {
	if status.Error == SentinelNotImporting {
		return Action{Kind: ActionComplete}
	}

	if status.Status != "" {
		lower := strings.ToLower(status.Status)
		if lower == "complete" {
			return Action{Kind: ActionComplete}
		}
		if strings.Contains(lower, "fail") || strings.Contains(lower, "error") {
			return Action{Kind: ActionFail, Message: status.failureMessage()}
		}
	}

	if !status.Success {
		return Action{Kind: ActionFail, Message: status.failureMessage()}
	}

	if attempts >= MaxPollAttempts {
		return Action{Kind: ActionTimeout, Message: "no terminal status after " + strconv.Itoa(attempts) + " poll attempts"}
	}
	return Action{Kind: ActionContinue, Delay: PollInterval}
}
