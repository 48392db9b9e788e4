// Package metrics records service-level query, document and error events.
package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"hybrid-rag/internal/contextutil"
)

const (
	// SlowQueryThreshold is the total query time above which a warning is logged.
	SlowQueryThreshold = 5 * time.Second

	recentErrorLimit = 5
)

// QueryEvent describes one answered question.
type QueryEvent struct {
	Question        string
	ChunksRetrieved int
	RetrievalTime   time.Duration
	GenerationTime  time.Duration
	TotalTime       time.Duration
	Confidence      float64
}

type queryRecord struct {
	Timestamp        time.Time
	QuestionLength   int
	ChunksRetrieved  int
	RetrievalTimeMs  float64
	GenerationTimeMs float64
	TotalTimeMs      float64
	Confidence       float64
}

type documentRecord struct {
	Timestamp        time.Time
	DocumentID       string
	ChunksCreated    int
	ProcessingTimeMs float64
	TimePerChunkMs   float64
}

// ErrorRecord is one tracked error, exposed in the report's recent errors.
type ErrorRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	ErrorType    string    `json:"error_type"`
	ErrorMessage string    `json:"error_message"`
}

// Report is the aggregated view returned by Tracker.Report.
type Report struct {
	Summary         Summary         `json:"summary"`
	QueryMetrics    QueryMetrics    `json:"query_metrics"`
	DocumentMetrics DocumentMetrics `json:"document_metrics"`
	ErrorMetrics    ErrorMetrics    `json:"error_metrics"`
}

type Summary struct {
	TotalQueries   int     `json:"total_queries"`
	TotalDocuments int     `json:"total_documents"`
	TotalErrors    int     `json:"total_errors"`
	ErrorRate      float64 `json:"error_rate"`
}

type QueryMetrics struct {
	Count               int     `json:"count"`
	AvgRetrievalTimeMs  float64 `json:"avg_retrieval_time_ms"`
	AvgGenerationTimeMs float64 `json:"avg_generation_time_ms"`
	AvgTotalTimeMs      float64 `json:"avg_total_time_ms"`
	AvgConfidence       float64 `json:"avg_confidence"`
	AvgChunksRetrieved  float64 `json:"avg_chunks_retrieved"`
	P50TotalTimeMs      float64 `json:"p50_total_time_ms,omitempty"`
	P95TotalTimeMs      float64 `json:"p95_total_time_ms,omitempty"`
	P99TotalTimeMs      float64 `json:"p99_total_time_ms,omitempty"`
	AvgQuestionLength   float64 `json:"avg_question_length"`
}

type DocumentMetrics struct {
	Count               int     `json:"count"`
	AvgChunksPerDoc     float64 `json:"avg_chunks_per_doc"`
	AvgProcessingTimeMs float64 `json:"avg_processing_time_ms"`
	AvgTimePerChunkMs   float64 `json:"avg_time_per_chunk_ms"`
}

type ErrorMetrics struct {
	Count        int            `json:"count"`
	ByType       map[string]int `json:"by_type"`
	RecentErrors []ErrorRecord  `json:"recent_errors,omitempty"`
}

// Tracker accumulates events in memory. It is safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	queries   []queryRecord
	documents []documentRecord
	errors    []ErrorRecord
	now       func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// TrackQuery records an answered question and warns when it was slow.
func (t *Tracker) TrackQuery(ctx context.Context, ev QueryEvent) {
	rec := queryRecord{
		Timestamp:        t.now(),
		QuestionLength:   len([]rune(ev.Question)),
		ChunksRetrieved:  ev.ChunksRetrieved,
		RetrievalTimeMs:  durationMs(ev.RetrievalTime),
		GenerationTimeMs: durationMs(ev.GenerationTime),
		TotalTimeMs:      durationMs(ev.TotalTime),
		Confidence:       ev.Confidence,
	}

	t.mu.Lock()
	t.queries = append(t.queries, rec)
	t.mu.Unlock()

	if ev.TotalTime > SlowQueryThreshold {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "slow query detected", "total_time_ms", rec.TotalTimeMs)
	}
}

// TrackDocument records the processing of one ingested document.
func (t *Tracker) TrackDocument(ctx context.Context, documentID string, chunksCreated int, processingTime time.Duration) {
	rec := documentRecord{
		Timestamp:        t.now(),
		DocumentID:       documentID,
		ChunksCreated:    chunksCreated,
		ProcessingTimeMs: durationMs(processingTime),
	}
	if chunksCreated > 0 {
		rec.TimePerChunkMs = rec.ProcessingTimeMs / float64(chunksCreated)
	}

	t.mu.Lock()
	t.documents = append(t.documents, rec)
	t.mu.Unlock()

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "document processing tracked",
		"document_id", documentID,
		"chunks", chunksCreated,
		"processing_time_ms", rec.ProcessingTimeMs,
	)
}

// TrackError records an error by category.
func (t *Tracker) TrackError(ctx context.Context, errorType, message string) {
	rec := ErrorRecord{Timestamp: t.now(), ErrorType: errorType, ErrorMessage: message}

	t.mu.Lock()
	t.errors = append(t.errors, rec)
	t.mu.Unlock()

	contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "error tracked", "error_type", errorType, "error", message)
}

// Report aggregates everything tracked so far.
func (t *Tracker) Report() Report {
	t.mu.Lock()
	queries := append([]queryRecord(nil), t.queries...)
	documents := append([]documentRecord(nil), t.documents...)
	errs := append([]ErrorRecord(nil), t.errors...)
	t.mu.Unlock()

	denom := len(queries)
	if denom < 1 {
		denom = 1
	}

	return Report{
		Summary: Summary{
			TotalQueries:   len(queries),
			TotalDocuments: len(documents),
			TotalErrors:    len(errs),
			ErrorRate:      float64(len(errs)) / float64(denom),
		},
		QueryMetrics:    queryMetrics(queries),
		DocumentMetrics: documentMetrics(documents),
		ErrorMetrics:    errorMetrics(errs),
	}
}

// Reset drops all tracked events.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queries = nil
	t.documents = nil
	t.errors = nil
}

func queryMetrics(queries []queryRecord) QueryMetrics {
	if len(queries) == 0 {
		return QueryMetrics{}
	}

	n := float64(len(queries))
	var m QueryMetrics
	totals := make([]float64, 0, len(queries))
	for _, q := range queries {
		m.AvgRetrievalTimeMs += q.RetrievalTimeMs
		m.AvgGenerationTimeMs += q.GenerationTimeMs
		m.AvgTotalTimeMs += q.TotalTimeMs
		m.AvgConfidence += q.Confidence
		m.AvgChunksRetrieved += float64(q.ChunksRetrieved)
		m.AvgQuestionLength += float64(q.QuestionLength)
		totals = append(totals, q.TotalTimeMs)
	}
	m.Count = len(queries)
	m.AvgRetrievalTimeMs /= n
	m.AvgGenerationTimeMs /= n
	m.AvgTotalTimeMs /= n
	m.AvgConfidence /= n
	m.AvgChunksRetrieved /= n
	m.AvgQuestionLength /= n

	sort.Float64s(totals)
	m.P50TotalTimeMs = nearestRank(totals, 50)
	m.P95TotalTimeMs = nearestRank(totals, 95)
	m.P99TotalTimeMs = nearestRank(totals, 99)
	return m
}

func documentMetrics(documents []documentRecord) DocumentMetrics {
	if len(documents) == 0 {
		return DocumentMetrics{}
	}

	n := float64(len(documents))
	var m DocumentMetrics
	for _, d := range documents {
		m.AvgChunksPerDoc += float64(d.ChunksCreated)
		m.AvgProcessingTimeMs += d.ProcessingTimeMs
		m.AvgTimePerChunkMs += d.TimePerChunkMs
	}
	m.Count = len(documents)
	m.AvgChunksPerDoc /= n
	m.AvgProcessingTimeMs /= n
	m.AvgTimePerChunkMs /= n
	return m
}

func errorMetrics(errs []ErrorRecord) ErrorMetrics {
	m := ErrorMetrics{Count: len(errs), ByType: make(map[string]int)}
	for _, e := range errs {
		m.ByType[e.ErrorType]++
	}
	if len(errs) > 0 {
		start := len(errs) - recentErrorLimit
		if start < 0 {
			start = 0
		}
		m.RecentErrors = errs[start:]
	}
	return m
}

// nearestRank picks sorted[int(n*p/100)], clamped to the last element.
func nearestRank(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
