package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	NewslettersProcessed   int64
	NewslettersFailed      int64
	PostsDelivered         int64
	PostsFailed            int64
	PostsSkipped           int64
	SuccessfulTranslations int64
	FailedTranslations     int64
	EmailsSent             int64
	EmailsFailed           int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool

	sources map[string]func() map[string]interface{}
}

var Global = New()

func New() *Metrics {
	return &Metrics{IsHealthy: true}
}

func (m *Metrics) IncrementNewslettersProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NewslettersProcessed++
}

func (m *Metrics) IncrementNewslettersFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NewslettersFailed++
}

func (m *Metrics) IncrementPostsDelivered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PostsDelivered++
}

func (m *Metrics) IncrementPostsFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PostsFailed++
}

func (m *Metrics) IncrementPostsSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PostsSkipped++
}

func (m *Metrics) IncrementSuccessfulTranslations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SuccessfulTranslations++
}

func (m *Metrics) IncrementFailedTranslations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailedTranslations++
}

// AddDeliveries folds one post's delivery outcome into the email counters.
func (m *Metrics) AddDeliveries(sent, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EmailsSent += int64(sent)
	m.EmailsFailed += int64(failed)
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++

	if m.ProcessingCount > 0 {
		m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
	}
}

// SetLastRun stamps the end of a run. A run with failures leaves the
// service unhealthy until a clean one follows.
func (m *Metrics) SetLastRun(clean bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = clean
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

// RegisterSource adds the stats of another component under name.
func (m *Metrics) RegisterSource(name string, fn func() map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sources == nil {
		m.sources = make(map[string]func() map[string]interface{})
	}
	m.sources[name] = fn
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := map[string]interface{}{
		"newsletters_processed":      m.NewslettersProcessed,
		"newsletters_failed":         m.NewslettersFailed,
		"posts_delivered":            m.PostsDelivered,
		"posts_failed":               m.PostsFailed,
		"posts_skipped":              m.PostsSkipped,
		"successful_translations":    m.SuccessfulTranslations,
		"failed_translations":        m.FailedTranslations,
		"emails_sent":                m.EmailsSent,
		"emails_failed":              m.EmailsFailed,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_time":              m.LastRunTime.Format(time.RFC3339),
		"last_error_time":            m.LastErrorTime.Format(time.RFC3339),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
	for name, fn := range m.sources {
		stats[name] = fn()
	}
	return stats
}
