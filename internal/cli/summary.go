package cli

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/pda-uploader/internal/switchover"
)

// printer groups digits in text summaries.
var printer = message.NewPrinter(language.English)

// RunSummary is the command output for upload and inspect.
type RunSummary struct {
	*switchover.Report
}

func (s RunSummary) runID() string {
	if s.Report == nil {
		return ""
	}
	return s.Report.RunID
}

func (s RunSummary) String() string {
	r := s.Report
	if r == nil {
		return ""
	}
	var b strings.Builder

	printer.Fprintf(&b, "Run %s (%s)\n", r.RunID, r.Mode)
	printer.Fprintf(&b, "  source files:          %d\n", r.Stats.Files)
	printer.Fprintf(&b, "  records parsed:        %d\n", r.Stats.Parsed)
	printer.Fprintf(&b, "  in-batch duplicates:   %d\n", r.Stats.InBatchDuplicates)
	printer.Fprintf(&b, "  already published:     %d\n", r.Stats.CheckpointDuplicates)
	printer.Fprintf(&b, "  new records:           %d\n", r.Stats.New)

	if r.Mode != switchover.ModeInspect {
		printer.Fprintf(&b, "  checkpoint size:       %d\n", r.CheckpointSize)
	}
	if sw := r.Switch; sw != nil {
		if sw.Flipped {
			printer.Fprintf(&b, "  switched:              %s -> %s (%d chunks)\n", sw.Before, sw.After, sw.Chunks)
		} else {
			printer.Fprintf(&b, "  switched:              no (active %s)\n", sw.After)
		}
	} else if r.Active != "" {
		printer.Fprintf(&b, "  active:                %s\n", r.Active)
	}
	if r.Pruned > 0 {
		printer.Fprintf(&b, "  pruned files:          %d\n", r.Pruned)
	}
	printer.Fprintf(&b, "  duration:              %s", r.Duration.Round(time.Millisecond))
	return b.String()
}

// PointerSummary is the command output for pointer get and set.
type PointerSummary struct {
	Namespace string           `json:"namespace"`
	Active    switchover.Color `json:"active"`
	Previous  switchover.Color `json:"previous,omitempty"`
}

func (s PointerSummary) String() string {
	if s.Previous != "" && s.Previous != s.Active {
		return switchover.PointerKey + ": " + string(s.Previous) + " -> " + string(s.Active)
	}
	return switchover.PointerKey + ": " + string(s.Active)
}
