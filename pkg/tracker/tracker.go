package tracker

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Tracker tracks usage statistics per remote provider and per work queue.
type Tracker struct {
	mu     sync.RWMutex
	stats  map[string]*ProviderStats
	queues map[string]*QueueStats
}

// ProviderStats holds metrics for a specific provider.
// Fields are accessed atomically.
type ProviderStats struct {
	APISuccess    int64
	APIFailures   int64
	APIZeroResult int64
}

// QueueStats holds metrics for a named queue.
// Fields are accessed atomically.
type QueueStats struct {
	Processed int64
	Failed    int64
	Discarded int64
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats:  make(map[string]*ProviderStats),
		queues: make(map[string]*QueueStats),
	}
}

// getStats returns the stats object for a provider, creating it if needed.
func (t *Tracker) getStats(provider string) *ProviderStats {
	t.mu.RLock()
	s, ok := t.stats[provider]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.stats[provider]; ok {
		return s
	}
	s = &ProviderStats{}
	t.stats[provider] = s
	return s
}

func (t *Tracker) getQueue(name string) *QueueStats {
	t.mu.RLock()
	q, ok := t.queues[name]
	t.mu.RUnlock()
	if ok {
		return q
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if q, ok = t.queues[name]; ok {
		return q
	}
	q = &QueueStats{}
	t.queues[name] = q
	return q
}

// TrackAPISuccess increments the success counter.
func (t *Tracker) TrackAPISuccess(provider string) {
	atomic.AddInt64(&t.getStats(provider).APISuccess, 1)
}

func (t *Tracker) TrackAPIFailure(provider string) {
	atomic.AddInt64(&t.getStats(provider).APIFailures, 1)
}

// TrackAPIZero counts successful responses that carried no result.
func (t *Tracker) TrackAPIZero(provider string) {
	atomic.AddInt64(&t.getStats(provider).APIZeroResult, 1)
}

func (t *Tracker) TrackQueueProcessed(queue string) {
	atomic.AddInt64(&t.getQueue(queue).Processed, 1)
}

func (t *Tracker) TrackQueueFailed(queue string) {
	atomic.AddInt64(&t.getQueue(queue).Failed, 1)
}

func (t *Tracker) TrackQueueDiscarded(queue string) {
	atomic.AddInt64(&t.getQueue(queue).Discarded, 1)
}

// Snapshot returns a copy of the current provider stats.
func (t *Tracker) Snapshot() map[string]ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]ProviderStats)
	for k, v := range t.stats {
		result[k] = ProviderStats{
			APISuccess:    atomic.LoadInt64(&v.APISuccess),
			APIFailures:   atomic.LoadInt64(&v.APIFailures),
			APIZeroResult: atomic.LoadInt64(&v.APIZeroResult),
		}
	}
	return result
}

// QueueSnapshot returns a copy of the current queue stats.
func (t *Tracker) QueueSnapshot() map[string]QueueStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]QueueStats)
	for k, v := range t.queues {
		result[k] = QueueStats{
			Processed: atomic.LoadInt64(&v.Processed),
			Failed:    atomic.LoadInt64(&v.Failed),
			Discarded: atomic.LoadInt64(&v.Discarded),
		}
	}
	return result
}

var (
	apiDesc = prometheus.NewDesc(
		"wikibridge_api_requests_total",
		"Outbound API requests by provider and outcome.",
		[]string{"provider", "outcome"}, nil,
	)
	queueDesc = prometheus.NewDesc(
		"wikibridge_queue_items_total",
		"Queue items handled by queue and outcome.",
		[]string{"queue", "outcome"}, nil,
	)
)

// Describe implements prometheus.Collector.
func (t *Tracker) Describe(ch chan<- *prometheus.Desc) {
	ch <- apiDesc
	ch <- queueDesc
}

// Collect implements prometheus.Collector from the current snapshots.
func (t *Tracker) Collect(ch chan<- prometheus.Metric) {
	for provider, s := range t.Snapshot() {
		ch <- prometheus.MustNewConstMetric(apiDesc, prometheus.CounterValue, float64(s.APISuccess), provider, "success")
		ch <- prometheus.MustNewConstMetric(apiDesc, prometheus.CounterValue, float64(s.APIFailures), provider, "failure")
		ch <- prometheus.MustNewConstMetric(apiDesc, prometheus.CounterValue, float64(s.APIZeroResult), provider, "zero")
	}
	for queue, s := range t.QueueSnapshot() {
		ch <- prometheus.MustNewConstMetric(queueDesc, prometheus.CounterValue, float64(s.Processed), queue, "processed")
		ch <- prometheus.MustNewConstMetric(queueDesc, prometheus.CounterValue, float64(s.Failed), queue, "failed")
		ch <- prometheus.MustNewConstMetric(queueDesc, prometheus.CounterValue, float64(s.Discarded), queue, "discarded")
	}
}
