package d1

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		status   ImportStatus
		attempts int
		want     ActionKind
		message  string
	}{
		{
			name:   "sentinel error is complete",
			status: ImportStatus{Success: false, Error: SentinelNotImporting},
			want:   ActionComplete,
		},
		{
			name:   "complete status",
			status: ImportStatus{Success: true, Status: "complete"},
			want:   ActionComplete,
		},
		{
			name:   "complete status ignores case",
			status: ImportStatus{Success: true, Status: "Complete"},
			want:   ActionComplete,
		},
		{
			name:     "complete wins over attempt cap",
			status:   ImportStatus{Success: true, Status: "complete"},
			attempts: MaxPollAttempts + 5,
			want:     ActionComplete,
		},
		{
			name:    "failed status uses error text",
			status:  ImportStatus{Success: true, Status: "FAILED", Error: "syntax error near X"},
			want:    ActionFail,
			message: "syntax error near X",
		},
		{
			name:    "error status uses joined errors",
			status:  ImportStatus{Success: true, Status: "error", Errors: []string{"a", "b"}},
			want:    ActionFail,
			message: "a, b",
		},
		{
			name:    "success false without text",
			status:  ImportStatus{Success: false, Status: "active"},
			want:    ActionFail,
			message: "unknown error",
		},
		{
			name:    "success false with other error",
			status:  ImportStatus{Success: false, Error: "quota exceeded"},
			want:    ActionFail,
			message: "quota exceeded",
		},
		{
			name:     "in progress below cap",
			status:   ImportStatus{Success: true, Status: "active"},
			attempts: MaxPollAttempts - 1,
			want:     ActionContinue,
		},
		{
			name:     "in progress at cap",
			status:   ImportStatus{Success: true, Status: "active"},
			attempts: MaxPollAttempts,
			want:     ActionTimeout,
		},
		{
			name:   "no status text continues",
			status: ImportStatus{Success: true},
			want:   ActionContinue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.status, tt.attempts)
			assert.Equal(t, tt.want, got.Kind)
			if tt.message != "" {
				assert.Equal(t, tt.message, got.Message)
			}
			if got.Kind == ActionContinue {
				assert.Equal(t, PollInterval, got.Delay)
				assert.False(t, got.Terminal())
			} else {
				assert.True(t, got.Terminal())
			}
		})
	}
}

func TestActionKind_String(t *testing.T) {
	assert.Equal(t, "continue", ActionContinue.String())
	assert.Equal(t, "complete", ActionComplete.String())
	assert.Equal(t, "fail", ActionFail.String())
	assert.Equal(t, "timeout", ActionTimeout.String())
	assert.Equal(t, "unknown", ActionKind(42).String())
}
