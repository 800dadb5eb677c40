// Package metrics collects per-run counters and gauges and writes them in the
// Prometheus text format for a node-exporter textfile collector.
//
// Each Recorder owns its registry; nothing is registered globally.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/pda-uploader/internal/d1"
)

const namespace = "pda_uploader"

// Metric names, without the namespace prefix.
const (
	MetricSourceFiles          = "source_files"
	MetricRecordsParsed        = "records_parsed"
	MetricInBatchDuplicates    = "in_batch_duplicates"
	MetricCheckpointDuplicates = "checkpoint_duplicates"
	MetricNewRecords           = "new_records"
	MetricCheckpointSize       = "checkpoint_size"
	MetricImportsTotal         = "imports_total"
	MetricImportSeconds        = "import_duration_seconds"
	MetricPollsTotal           = "import_polls_total"
	MetricStagedBytesTotal     = "staged_bytes_total"
	MetricPointerFlipsTotal    = "pointer_flips_total"
	MetricActiveColor          = "active_color"
	MetricRunSuccess           = "last_run_success"
	MetricRunTimestamp         = "last_run_timestamp_seconds"
	MetricRunSeconds           = "last_run_duration_seconds"
)

// Recorder holds the metrics for one run.
type Recorder struct {
	reg *prometheus.Registry

	sourceFiles          prometheus.Gauge
	recordsParsed        prometheus.Gauge
	inBatchDuplicates    prometheus.Gauge
	checkpointDuplicates prometheus.Gauge
	newRecords           prometheus.Gauge
	checkpointSize       prometheus.Gauge

	imports       *prometheus.CounterVec
	importSeconds *prometheus.GaugeVec
	polls         *prometheus.CounterVec
	stagedBytes   *prometheus.CounterVec

	pointerFlips prometheus.Counter
	activeColor  *prometheus.GaugeVec

	runSuccess   prometheus.Gauge
	runTimestamp prometheus.Gauge
	runSeconds   prometheus.Gauge
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
}

// New creates a Recorder with a fresh registry.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),

		sourceFiles:          gauge(MetricSourceFiles, "Source files considered by the merge."),
		recordsParsed:        gauge(MetricRecordsParsed, "Records parsed from source files."),
		inBatchDuplicates:    gauge(MetricInBatchDuplicates, "Records dropped as duplicates within the batch."),
		checkpointDuplicates: gauge(MetricCheckpointDuplicates, "Records dropped because the checkpoint already held them."),
		newRecords:           gauge(MetricNewRecords, "Records in the new batch."),
		checkpointSize:       gauge(MetricCheckpointSize, "Addresses in the persisted checkpoint."),

		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricImportsTotal,
			Help:      "Chunk imports by database and result code.",
		}, []string{"database", "result"}),
		importSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      MetricImportSeconds,
			Help:      "Duration of the most recent import per database.",
		}, []string{"database"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricPollsTotal,
			Help:      "Import poll requests by database.",
		}, []string{"database"}),
		stagedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricStagedBytesTotal,
			Help:      "Script bytes staged by database.",
		}, []string{"database"}),

		pointerFlips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricPointerFlipsTotal,
			Help:      "Active pointer updates.",
		}),
		activeColor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      MetricActiveColor,
			Help:      "1 for the color the active pointer names.",
		}, []string{"color"}),

		runSuccess:   gauge(MetricRunSuccess, "1 if the run succeeded, 0 otherwise."),
		runTimestamp: gauge(MetricRunTimestamp, "Unix time the run finished."),
		runSeconds:   gauge(MetricRunSeconds, "Wall time of the run."),
	}

	r.reg.MustRegister(
		r.sourceFiles, r.recordsParsed, r.inBatchDuplicates, r.checkpointDuplicates,
		r.newRecords, r.checkpointSize,
		r.imports, r.importSeconds, r.polls, r.stagedBytes,
		r.pointerFlips, r.activeColor,
		r.runSuccess, r.runTimestamp, r.runSeconds,
	)
	return r
}

// Registry returns the registry holding every metric of r.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// MergeCounts records the merge outcome.
func (r *Recorder) MergeCounts(files, parsed, inBatch, inCheckpoint, fresh int) {
	r.sourceFiles.Set(float64(files))
	r.recordsParsed.Set(float64(parsed))
	r.inBatchDuplicates.Set(float64(inBatch))
	r.checkpointDuplicates.Set(float64(inCheckpoint))
	r.newRecords.Set(float64(fresh))
}

// CheckpointSize records the size of the persisted checkpoint.
func (r *Recorder) CheckpointSize(n int) {
	r.checkpointSize.Set(float64(n))
}

// PointerFlipped records a pointer update to color.
func (r *Recorder) PointerFlipped(color string) {
	r.pointerFlips.Inc()
	r.ActiveColor(color)
}

// ActiveColor records the color the pointer names.
func (r *Recorder) ActiveColor(color string) {
	r.activeColor.Reset()
	r.activeColor.WithLabelValues(color).Set(1)
}

// RunFinished records the run outcome.
func (r *Recorder) RunFinished(ok bool, finished time.Time, elapsed time.Duration) {
	if ok {
		r.runSuccess.Set(1)
	} else {
		r.runSuccess.Set(0)
	}
	r.runTimestamp.Set(float64(finished.Unix()))
	r.runSeconds.Set(elapsed.Seconds())
}

// ScriptStaged implements d1.Observer.
func (r *Recorder) ScriptStaged(database string, bytes int) {
	r.stagedBytes.WithLabelValues(database).Add(float64(bytes))
}

// PollSent implements d1.Observer.
func (r *Recorder) PollSent(database string) {
	r.polls.WithLabelValues(database).Inc()
}

// ImportFinished implements d1.Observer.
func (r *Recorder) ImportFinished(database string, code d1.ErrorCode, elapsed time.Duration) {
	result := "ok"
	if code != "" {
		result = string(code)
	}
	r.imports.WithLabelValues(database, result).Inc()
	r.importSeconds.WithLabelValues(database).Set(elapsed.Seconds())
}

// WriteFile writes every metric to path in the Prometheus text format. The
// file is replaced atomically.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}

var _ d1.Observer = (*Recorder)(nil)
