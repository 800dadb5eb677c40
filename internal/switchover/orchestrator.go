package switchover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/pda-uploader/internal/checkpoint"
	"github.com/roach88/pda-uploader/internal/kv"
	"github.com/roach88/pda-uploader/internal/merge"
	"github.com/roach88/pda-uploader/internal/metrics"
	"github.com/roach88/pda-uploader/internal/pda"
	"github.com/roach88/pda-uploader/internal/script"
	"github.com/roach88/pda-uploader/internal/source"
)

// ChunkRecords is the number of records per import.
const ChunkRecords = 1000

// Importer applies a script to one remote database and waits for it to be
// durable. *d1.Client implements it.
type Importer interface {
	Import(ctx context.Context, databaseID string, s *script.Script) error
}

// Archiver keeps a copy of each script before it is imported.
// *archive.Archiver implements it.
type Archiver interface {
	Save(ctx context.Context, s *script.Script) (string, error)
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	Generate() string
}

type uuidV7 struct{}

func (uuidV7) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Options configures an Orchestrator.
type Options struct {
	SourceDir      string
	CheckpointPath string

	// Databases is the blue/green pair. Both empty selects a dry run.
	Databases Databases

	// Namespace holds the PointerKey.
	Namespace string

	// Importer and Pointer are required unless the run is a dry run.
	Importer Importer
	Pointer  kv.Store

	// Merger defaults to merge.New with Logger.
	Merger *merge.Merger

	// Archiver is optional.
	Archiver Archiver

	// Metrics defaults to a private recorder.
	Metrics *metrics.Recorder

	// PruneSources removes source files after a fully published run.
	PruneSources bool

	Logger *slog.Logger
	IDs    IDGenerator
	Now    func() time.Time
}

// Orchestrator runs merges and switchovers.
type Orchestrator struct {
	opts    Options
	logger  *slog.Logger
	merger  *merge.Merger
	metrics *metrics.Recorder
	ids     IDGenerator
	now     func() time.Time
}

// New validates opts and creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if err := opts.Databases.validate(); err != nil {
		return nil, err
	}
	if opts.Databases.Enabled() {
		if opts.Importer == nil {
			return nil, &ConfigError{Field: "importer", Message: "required for upload"}
		}
		if opts.Pointer == nil {
			return nil, &ConfigError{Field: "pointer", Message: "required for upload"}
		}
		if opts.Namespace == "" {
			return nil, &ConfigError{Field: "kv_namespace_id", Message: "required for upload"}
		}
	}

	o := &Orchestrator{
		opts:    opts,
		logger:  opts.Logger,
		merger:  opts.Merger,
		metrics: opts.Metrics,
		ids:     opts.IDs,
		now:     opts.Now,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.merger == nil {
		o.merger = merge.New(merge.Options{Logger: o.logger})
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}
	if o.ids == nil {
		o.ids = uuidV7{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// Batch is the input to Switch: new records plus the checkpoint they were
// computed against. Switch extends Checkpoint in place once both databases
// hold Records.
type Batch struct {
	Records    []pda.Record
	Checkpoint *checkpoint.Set
}

// SwitchResult describes a completed switch.
type SwitchResult struct {
	Before  Color `json:"before"`
	After   Color `json:"after"`
	Chunks  int   `json:"chunks"`
	Records int   `json:"records"`
	Flipped bool  `json:"flipped"`
}

// Switch publishes batch through the blue/green sequence and persists the
// extended checkpoint:
//
//  1. every chunk is imported into the inactive database, in order
//  2. the pointer is set to the inactive color, once
//  3. every chunk is imported into the previously active database
//  4. the checkpoint gains every batch address and is saved
//
// An empty batch does nothing. Any failure returns before later steps run.
func (o *Orchestrator) Switch(ctx context.Context, batch Batch, activeLabel string) (*SwitchResult, error) {
	return o.doSwitch(ctx, o.logger, batch, activeLabel)
}

func (o *Orchestrator) doSwitch(ctx context.Context, logger *slog.Logger, batch Batch, activeLabel string) (*SwitchResult, error) {
	active, err := ParseColor(activeLabel)
	if err != nil {
		return nil, err
	}
	if !o.opts.Databases.Enabled() {
		return nil, &ConfigError{Field: "blue_db_id", Message: "switch requires both database identifiers"}
	}

	res := &SwitchResult{Before: active, After: active}
	if len(batch.Records) == 0 {
		logger.Info("no new records, nothing to switch", "active", active)
		return res, nil
	}

	scripts, err := o.render(ctx, logger, batch.Records)
	if err != nil {
		return nil, err
	}
	res.Chunks = len(scripts)
	res.Records = len(batch.Records)

	inactive := active.Other()
	if err := o.uploadAll(ctx, logger, inactive, scripts); err != nil {
		return nil, err
	}

	if err := WritePointer(ctx, o.opts.Pointer, o.opts.Namespace, inactive); err != nil {
		return nil, err
	}
	o.metrics.PointerFlipped(string(inactive))
	res.After = inactive
	res.Flipped = true
	logger.Info("active pointer switched", "from", active, "to", inactive)

	if err := o.uploadAll(ctx, logger, active, scripts); err != nil {
		return res, err
	}

	if err := o.persist(logger, batch); err != nil {
		return res, err
	}
	return res, nil
}

// render splits records into chunks, renders each and archives it.
func (o *Orchestrator) render(ctx context.Context, logger *slog.Logger, records []pda.Record) ([]*script.Script, error) {
	scripts := make([]*script.Script, 0, (len(records)+ChunkRecords-1)/ChunkRecords)
	for start := 0; start < len(records); start += ChunkRecords {
		end := min(start+ChunkRecords, len(records))
		s := script.Build(records[start:end])
		if o.opts.Archiver != nil {
			if _, err := o.opts.Archiver.Save(ctx, s); err != nil {
				return nil, fmt.Errorf("archive chunk %d: %w", len(scripts)+1, err)
			}
		}
		scripts = append(scripts, s)
	}
	logger.Info("rendered import scripts", "chunks", len(scripts), "records", len(records))
	return scripts, nil
}

func (o *Orchestrator) uploadAll(ctx context.Context, logger *slog.Logger, target Color, scripts []*script.Script) error {
	db := o.opts.Databases.For(target)
	for i, s := range scripts {
		logger.Info("uploading chunk",
			"color", target,
			"database", db,
			"chunk", i+1,
			"chunks", len(scripts),
			"rows", s.Rows,
		)
		if err := o.opts.Importer.Import(ctx, db, s); err != nil {
			return fmt.Errorf("upload chunk %d/%d to %s database: %w", i+1, len(scripts), target, err)
		}
	}
	return nil
}

func (o *Orchestrator) persist(logger *slog.Logger, batch Batch) error {
	set := batch.Checkpoint
	if set == nil {
		loaded, err := checkpoint.Load(o.opts.CheckpointPath, logger)
		if err != nil {
			return err
		}
		set = loaded
	}
	added := set.AddRecords(batch.Records)
	if err := checkpoint.Save(o.opts.CheckpointPath, set); err != nil {
		return err
	}
	o.metrics.CheckpointSize(set.Len())
	logger.Info("checkpoint saved", "path", o.opts.CheckpointPath, "added", added, "size", set.Len())
	return nil
}

// Report summarizes a Run or Inspect.
type Report struct {
	RunID          string        `json:"run_id"`
	Mode           string        `json:"mode"`
	Stats          merge.Stats   `json:"stats"`
	Active         Color         `json:"active,omitempty"`
	Switch         *SwitchResult `json:"switch,omitempty"`
	CheckpointSize int           `json:"checkpoint_size"`
	Pruned         int           `json:"pruned"`
	Duration       time.Duration `json:"duration_ns"`
}

// Modes reported in Report.Mode.
const (
	ModeUpload  = "upload"
	ModeDryRun  = "dry-run"
	ModeInspect = "inspect"
)

// Run merges the source directory against the checkpoint and publishes the
// new batch. Without database identifiers it only extends and saves the
// checkpoint.
func (o *Orchestrator) Run(ctx context.Context) (report *Report, err error) {
	start := o.now()
	report = &Report{RunID: o.ids.Generate(), Mode: ModeDryRun}
	if o.opts.Databases.Enabled() {
		report.Mode = ModeUpload
	}
	logger := o.logger.With("run_id", report.RunID)

	defer func() {
		finished := o.now()
		report.Duration = finished.Sub(start)
		o.metrics.RunFinished(err == nil, finished, report.Duration)
	}()

	logger.Info("run started", "mode", report.Mode, "source_dir", o.opts.SourceDir)

	res, err := o.merger.Merge(ctx, o.opts.SourceDir, o.opts.CheckpointPath)
	if err != nil {
		return report, err
	}
	report.Stats = res.Stats
	o.metrics.MergeCounts(res.Stats.Files, res.Stats.Parsed, res.Stats.InBatchDuplicates,
		res.Stats.CheckpointDuplicates, res.Stats.New)
	batch := Batch{Records: res.New, Checkpoint: res.Checkpoint}

	if report.Mode == ModeDryRun {
		if len(batch.Records) > 0 {
			if err := o.persist(logger, batch); err != nil {
				return report, err
			}
		}
		report.CheckpointSize = batch.Checkpoint.Len()
		logger.Info("dry run complete", "new", res.Stats.New)
	} else {
		active, err := ReadPointer(ctx, o.opts.Pointer, o.opts.Namespace)
		if err != nil {
			return report, err
		}
		report.Active = active
		o.metrics.ActiveColor(string(active))

		sw, err := o.doSwitch(ctx, logger, batch, string(active))
		report.Switch = sw
		if err != nil {
			return report, err
		}
		report.Active = sw.After
		report.CheckpointSize = batch.Checkpoint.Len()
	}

	if o.opts.PruneSources {
		report.Pruned = o.prune(logger, res.Files)
	}

	logger.Info("run complete", "new", res.Stats.New, "active", report.Active, "pruned", report.Pruned)
	return report, nil
}

// Inspect merges read-only and reads the pointer if one is configured.
func (o *Orchestrator) Inspect(ctx context.Context) (*Report, error) {
	start := o.now()
	report := &Report{RunID: o.ids.Generate(), Mode: ModeInspect}

	res, err := o.merger.Merge(ctx, o.opts.SourceDir, o.opts.CheckpointPath)
	if err != nil {
		return nil, err
	}
	report.Stats = res.Stats
	report.CheckpointSize = res.Checkpoint.Len()

	if o.opts.Pointer != nil && o.opts.Namespace != "" {
		active, err := ReadPointer(ctx, o.opts.Pointer, o.opts.Namespace)
		if err != nil && !IsConfigError(err) {
			return nil, err
		}
		report.Active = active
	}
	report.Duration = o.now().Sub(start)
	return report, nil
}

// prune removes the given source files. Failures are logged and skipped:
// their records are already published and the checkpoint filters them next
// time.
func (o *Orchestrator) prune(logger *slog.Logger, files []source.File) int {
	removed := 0
	for _, f := range files {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to remove source file", "file", f.Path, "error", err)
			continue
		}
		removed++
	}
	logger.Info("pruned source files", "removed", removed, "total", len(files))
	return removed
}
