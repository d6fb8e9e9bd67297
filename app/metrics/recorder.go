package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lysyi3m/sitemap-comb/app/sitemap"
)

const namespace = "sitemap_comb"

// Recorder exports pipeline, submission and task metrics to Prometheus.
// A nil *Recorder is a valid no-op.
type Recorder struct {
	registry         *prom.Registry
	stageDuration    *prom.HistogramVec
	generation       *prom.HistogramVec
	lastURLs         prom.Gauge
	lastSitemaps     prom.Gauge
	cacheLookups     *prom.CounterVec
	collectionErrors *prom.CounterVec
	invalidURLs      prom.Counter
	submissions      *prom.HistogramVec
	taskResults      *prom.CounterVec
}

func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}

	r := &Recorder{
		registry: reg,
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		generation: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Total sitemap generation duration by outcome",
			Buckets:   prom.DefBuckets,
		}, []string{"outcome"}),
		lastURLs: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_generation_urls",
			Help:      "URLs emitted by the most recent generation",
		}),
		lastSitemaps: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_generation_sitemaps",
			Help:      "Sitemap files emitted by the most recent generation",
		}),
		cacheLookups: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by outcome",
		}, []string{"result"}),
		collectionErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "collection_errors_total",
			Help:      "Failed content family reads",
		}, []string{"family"}),
		invalidURLs: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_urls_total",
			Help:      "URLs dropped by validation",
		}),
		submissions: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_duration_seconds",
			Help:      "Search engine submission calls by host and result",
			Buckets:   prom.DefBuckets,
		}, []string{"host", "result"}),
		taskResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "task_results_total",
			Help:      "Background task results by type",
		}, []string{"type", "result"}),
	}

	reg.MustRegister(
		r.stageDuration, r.generation, r.lastURLs, r.lastSitemaps,
		r.cacheLookups, r.collectionErrors, r.invalidURLs,
		r.submissions, r.taskResults,
	)

	return r
}

// RegisterRuntimeCollectors adds Go runtime and process metrics.
func (r *Recorder) RegisterRuntimeCollectors() {
	if r == nil {
		return
	}
	r.registry.MustRegister(
		promcollect.NewGoCollector(),
		promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}),
	)
}

func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (r *Recorder) ObserveStageDuration(stage sitemap.Stage, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

func (r *Recorder) ObserveGeneration(d time.Duration, outcome string, urls, files int) {
	if r == nil {
		return
	}
	r.generation.WithLabelValues(outcome).Observe(d.Seconds())
	r.lastURLs.Set(float64(urls))
	r.lastSitemaps.Set(float64(files))
}

func (r *Recorder) IncCacheLookup(hit bool) {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues(result(hit, "hit", "miss")).Inc()
}

func (r *Recorder) IncCollectionError(family sitemap.Family) {
	if r == nil {
		return
	}
	r.collectionErrors.WithLabelValues(string(family)).Inc()
}

func (r *Recorder) AddInvalidURLs(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.invalidURLs.Add(float64(n))
}

func (r *Recorder) ObserveSubmission(host string, success bool, d time.Duration) {
	if r == nil {
		return
	}
	r.submissions.WithLabelValues(host, result(success, "success", "failed")).Observe(d.Seconds())
}

func (r *Recorder) IncTaskResult(taskType string, success bool) {
	if r == nil {
		return
	}
	r.taskResults.WithLabelValues(taskType, result(success, "success", "failed")).Inc()
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
