// Package merge collects records from every eligible source file and reduces
// them to the batch not yet published.
//
// Files are parsed concurrently; the result does not depend on file order
// because records are sorted and deduplicated by address afterwards. The
// merger never deletes sources and never writes the checkpoint.
package merge

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/pda-uploader/internal/checkpoint"
	"github.com/roach88/pda-uploader/internal/pda"
	"github.com/roach88/pda-uploader/internal/source"
)

// Options configures a Merger. Zero values select defaults.
type Options struct {
	// Logger receives progress logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Parallelism bounds concurrent file parses. Defaults to GOMAXPROCS.
	Parallelism int

	// Now supplies the scan time for the blob quiescence check.
	// Defaults to time.Now.
	Now func() time.Time
}

// Merger runs the ingest-and-deduplicate pass.
type Merger struct {
	logger      *slog.Logger
	parallelism int
	now         func() time.Time
}

// New creates a Merger.
func New(opts Options) *Merger {
	m := &Merger{logger: opts.Logger, parallelism: opts.Parallelism, now: opts.Now}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.parallelism <= 0 {
		m.parallelism = runtime.GOMAXPROCS(0)
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Stats summarizes one merge.
type Stats struct {
	Files                int `json:"files"`
	Parsed               int `json:"parsed"`
	InBatchDuplicates    int `json:"in_batch_duplicates"`
	CheckpointDuplicates int `json:"checkpoint_duplicates"`
	New                  int `json:"new"`
}

// Result is the outcome of Merge.
type Result struct {
	// New holds records absent from the checkpoint, sorted by address,
	// one per address.
	New []pda.Record

	// Files lists every source file that was read.
	Files []source.File

	// Checkpoint is the published set as loaded at the start of the merge.
	// The caller owns it and decides when to extend and persist it.
	Checkpoint *checkpoint.Set

	Stats Stats
}

// accumulator is the only state shared between parse tasks.
type accumulator struct {
	mu      sync.Mutex
	records []pda.Record
}

// add appends already-parsed records and returns the running total.
func (a *accumulator) add(records []pda.Record) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, records...)
	return len(a.records)
}

// Merge reads every eligible file under sourceDir and returns the records
// whose addresses are not in the checkpoint at checkpointPath.
//
// A parse failure in any file aborts the whole merge; a partial batch would
// silently under-publish.
func (m *Merger) Merge(ctx context.Context, sourceDir, checkpointPath string) (*Result, error) {
	published, err := checkpoint.Load(checkpointPath, m.logger)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	files, err := source.Scan(sourceDir, m.now(), m.logger)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	m.logger.Info("found source files", "count", len(files), "dir", sourceDir)

	acc := &accumulator{}
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallelism)
	for _, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records, err := source.Read(gctx, f)
			if err != nil {
				return err
			}
			total := acc.add(records)
			m.logger.Info("finished reading source",
				"file", f.Path,
				"kind", f.Kind.String(),
				"processed", done.Add(1),
				"total", len(files),
				"records_so_far", total,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	records := acc.records
	stats := Stats{Files: len(files), Parsed: len(records)}

	pda.SortByAddress(records)
	records, stats.InBatchDuplicates = pda.CompactByAddress(records)

	before := len(records)
	records = slices.DeleteFunc(records, func(r pda.Record) bool {
		return published.Contains(r.Address)
	})
	stats.CheckpointDuplicates = before - len(records)
	stats.New = len(records)

	m.logger.Info("deduplication stats",
		"in_batch_duplicates", stats.InBatchDuplicates,
		"checkpoint_duplicates", stats.CheckpointDuplicates,
		"new", stats.New,
	)

	return &Result{
		New:        records,
		Files:      files,
		Checkpoint: published,
		Stats:      stats,
	}, nil
}
