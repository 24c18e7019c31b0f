// Package metrics exposes Prometheus counters for capture outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/deixis/tofile/internal/capture"
)

// Outcome labels for the captures counter.
const (
	OutcomeOK         = "ok"
	OutcomeReadError  = "read_error"
	OutcomeWriteError = "write_error"
)

// Recorder counts captures and bytes written.
type Recorder struct {
	Captures     *prometheus.CounterVec
	BytesWritten prometheus.Counter
}

// NewRecorder creates a Recorder and registers its collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		Captures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tofile_captures_total",
				Help: "Total number of captures by outcome",
			},
			[]string{"outcome"},
		),
		BytesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tofile_bytes_written_total",
				Help: "Total bytes written by successful captures",
			},
		),
	}
	reg.MustRegister(r.Captures, r.BytesWritten)
	return r
}

// Observe records the outcome of one capture. A nil Recorder is a no-op.
func (r *Recorder) Observe(res *capture.Result, err error) {
	if r == nil {
		return
	}
	if err != nil {
		outcome := OutcomeWriteError
		if capture.StageOf(err) == capture.StageRead {
			outcome = OutcomeReadError
		}
		r.Captures.WithLabelValues(outcome).Inc()
		return
	}
	r.Captures.WithLabelValues(OutcomeOK).Inc()
	r.BytesWritten.Add(float64(res.Bytes))
}
