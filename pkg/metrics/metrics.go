// Package metrics provides the counters and histograms the dispatcher,
// workers and remote extraction service record into. Components receive a
// Sink explicitly; nothing here is a process global.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	StatusCompleted         = "completed"
	StatusCompletedNoOutput = "completed_no_output"
	StatusError             = "error"
	StatusDeadLettered      = "dead_lettered"
	StatusEnqueued          = "enqueued"
)

// Sink records pipeline observations.
type Sink interface {
	// PDFEnqueued counts a task handed to the queue.
	PDFEnqueued()
	// PDFDispatched records a dispatcher outcome for one document.
	PDFDispatched(extractor, status string, elapsed time.Duration)
	// PDFProcessed records a worker outcome for one task delivery.
	PDFProcessed(extractor, status string, elapsed time.Duration)
	// RemoteProcessed records one request served by the remote extraction service.
	RemoteProcessed(status string, elapsed time.Duration)
	// QueueDepth sets the queue gauges.
	QueueDepth(tasks, deadLetters int)
}

// Prometheus is a Sink backed by its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	enqueued         prometheus.Counter
	dispatched       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	processed        *prometheus.CounterVec
	processDuration  *prometheus.HistogramVec
	remote           *prometheus.CounterVec
	remoteDuration   prometheus.Histogram
	depth            prometheus.Gauge
	deadLetters      prometheus.Gauge
}

// NewPrometheus registers every metric on a fresh registry, together with
// the Go runtime and process collectors.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "main_pdf_enqueued_total",
			Help: "PDFs published to the processing queue.",
		}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "main_pdf_processed_total",
			Help: "PDFs handled by the dispatcher, by extractor and outcome.",
		}, []string{"extractor", "status"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "main_pdf_processing_duration_seconds",
			Help:    "Time spent dispatching a PDF.",
			Buckets: prometheus.DefBuckets,
		}, []string{"extractor"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "local_processor_pdf_processed_total",
			Help: "Tasks handled by workers, by extractor and outcome.",
		}, []string{"extractor", "status"}),
		processDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "local_processor_pdf_processing_duration_seconds",
			Help:    "Time a worker spent on one task.",
			Buckets: prometheus.DefBuckets,
		}, []string{"extractor"}),
		remote: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "henderson_pdf_processing_total",
			Help: "Remote extraction requests, by outcome.",
		}, []string{"status"}),
		remoteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "henderson_pdf_processing_duration_seconds",
			Help:    "Time the remote extraction service spent on one request.",
			Buckets: prometheus.DefBuckets,
		}),
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "task_queue_depth",
			Help: "Tasks waiting or in flight.",
		}),
		deadLetters: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "task_dead_letters",
			Help: "Tasks moved to the dead-letter table.",
		}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.enqueued,
		p.dispatched,
		p.dispatchDuration,
		p.processed,
		p.processDuration,
		p.remote,
		p.remoteDuration,
		p.depth,
		p.deadLetters,
	)
	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *Prometheus) PDFEnqueued() {
	p.enqueued.Inc()
}

func (p *Prometheus) PDFDispatched(extractor, status string, elapsed time.Duration) {
	p.dispatched.WithLabelValues(extractor, status).Inc()
	p.dispatchDuration.WithLabelValues(extractor).Observe(elapsed.Seconds())
}

func (p *Prometheus) PDFProcessed(extractor, status string, elapsed time.Duration) {
	p.processed.WithLabelValues(extractor, status).Inc()
	p.processDuration.WithLabelValues(extractor).Observe(elapsed.Seconds())
}

func (p *Prometheus) RemoteProcessed(status string, elapsed time.Duration) {
	p.remote.WithLabelValues(status).Inc()
	p.remoteDuration.Observe(elapsed.Seconds())
}

func (p *Prometheus) QueueDepth(tasks, deadLetters int) {
	p.depth.Set(float64(tasks))
	p.deadLetters.Set(float64(deadLetters))
}

// Nop discards every observation.
type Nop struct{}

func (Nop) PDFEnqueued()                                {}
func (Nop) PDFDispatched(string, string, time.Duration) {}
func (Nop) PDFProcessed(string, string, time.Duration)  {}
func (Nop) RemoteProcessed(string, time.Duration)       {}
func (Nop) QueueDepth(int, int)                         {}
