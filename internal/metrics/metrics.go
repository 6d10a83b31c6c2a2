// Package metrics records run statistics on a private Prometheus registry and
// writes them in the node-exporter textfile format at the end of a run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"hospitalstats/internal/records"
)

type Recorder struct {
	registry *prometheus.Registry

	RowsLoaded      *prometheus.GaugeVec
	InvalidCells    *prometheus.GaugeVec
	SectionDuration *prometheus.HistogramVec
	SectionFailures *prometheus.CounterVec
	RunDuration     prometheus.Gauge
	LastSuccess     prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		RowsLoaded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hospitalstats_rows_loaded",
				Help: "Rows read per input table in the last run",
			},
			[]string{"table"},
		),
		InvalidCells: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hospitalstats_invalid_cells",
				Help: "Non-empty cells that could not be parsed, per table and column",
			},
			[]string{"table", "column"},
		),
		SectionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hospitalstats_section_duration_seconds",
				Help:    "Time spent computing each insights section",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"section"},
		),
		SectionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hospitalstats_section_failures_total",
				Help: "Insights sections that returned an error or panicked",
			},
			[]string{"section"},
		),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hospitalstats_run_duration_seconds",
			Help: "Wall time of the last run",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hospitalstats_last_success_timestamp_seconds",
			Help: "Unix time of the last run that produced an insights file",
		}),
	}
	r.registry.MustRegister(r.RowsLoaded, r.InvalidCells, r.SectionDuration,
		r.SectionFailures, r.RunDuration, r.LastSuccess)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordLoad records row and invalid-cell counts of every loaded table.
func (r *Recorder) RecordLoad(stats []records.TableStats) {
	for _, s := range stats {
		r.RowsLoaded.WithLabelValues(s.Table).Set(float64(s.Rows))
		for col, n := range s.Invalid {
			r.InvalidCells.WithLabelValues(s.Table, col).Set(float64(n))
		}
	}
}

// ObserveSection implements insights.Observer.
func (r *Recorder) ObserveSection(name string, elapsed time.Duration, err error) {
	r.SectionDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		r.SectionFailures.WithLabelValues(name).Inc()
	}
}

// RecordRun sets the run duration and, when ok, the last-success time.
func (r *Recorder) RecordRun(start, end time.Time, ok bool) {
	r.RunDuration.Set(end.Sub(start).Seconds())
	if ok {
		r.LastSuccess.Set(float64(end.Unix()))
	}
}

// WriteFile writes every metric to path. An empty path is a no-op.
func (r *Recorder) WriteFile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
