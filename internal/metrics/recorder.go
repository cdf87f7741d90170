package metrics

import (
	"fmt"
	"time"

	"gonetids/internal/analysis"
	"gonetids/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "gonetids"

// Recorder holds the metrics of a run on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	PacketsByProtocol *prometheus.CounterVec
	FindingsByKind    *prometheus.CounterVec
	RetainedPackets   prometheus.Gauge
	CapturedPackets   prometheus.Gauge
	CaptureDuration   prometheus.Gauge
	ReportFallbacks   prometheus.Counter
}

// NewRecorder creates the metrics and registers them together with the Go
// and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		PacketsByProtocol: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "packets_by_protocol_total",
				Help:      "Captured packets by protocol label",
			},
			[]string{"protocol"},
		),
		FindingsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "findings_total",
				Help:      "Detection findings by kind and severity",
			},
			[]string{"kind", "severity"},
		),
		RetainedPackets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "retained_packets",
			Help:      "Packets left in the session after filtering",
		}),
		CapturedPackets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "captured_packets",
			Help:      "Packets collected by the last capture",
		}),
		CaptureDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_duration_seconds",
			Help:      "Wall-clock duration of the last capture",
		}),
		ReportFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_fallbacks_total",
			Help:      "Reports written as plain text because the PDF failed",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.PacketsByProtocol,
		r.FindingsByKind,
		r.RetainedPackets,
		r.CapturedPackets,
		r.CaptureDuration,
		r.ReportFallbacks,
	)
	return r
}

// Registry exposes the registry for handlers and textfile output.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObservePacket counts one packet as the collector hands it over. It is safe
// to call from the capture goroutine.
func (r *Recorder) ObservePacket(pkt models.PacketData) {
	r.PacketsByProtocol.WithLabelValues(string(analysis.Classify(pkt))).Inc()
	r.CapturedPackets.Inc()
}

// ObserveCapture records the size and duration of a finished capture.
func (r *Recorder) ObserveCapture(packets int, took time.Duration) {
	r.CapturedPackets.Set(float64(packets))
	r.CaptureDuration.Set(took.Seconds())
}

// ObserveSummary records the findings and retained count of an analyzed
// session. Protocol counts come from ObservePacket.
func (r *Recorder) ObserveSummary(s analysis.Summary) {
	for _, f := range s.Findings {
		r.FindingsByKind.WithLabelValues(string(f.Kind), f.Severity).Inc()
	}
	r.RetainedPackets.Set(float64(s.PacketCount))
}

// ObserveReportFallback counts a report that had to be written as text.
func (r *Recorder) ObserveReportFallback() {
	r.ReportFallbacks.Inc()
}

// WriteTextfile dumps the registry in the text exposition format, for the
// node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
