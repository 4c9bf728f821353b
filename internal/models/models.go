package models

import "time"

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

type QueryType string

const (
	QueryTypeFactual        QueryType = "factual"
	QueryTypeProcedural     QueryType = "procedural"
	QueryTypeDiagnostic     QueryType = "diagnostic"
	QueryTypeComparative    QueryType = "comparative"
	QueryTypeRecommendation QueryType = "recommendation"
	QueryTypeGeneral        QueryType = "general"
)

// Query is immutable once submitted; everything derived from it lives only
// for the duration of one Route call.
type Query struct {
	ID          string
	Text        string
	UserID      string
	Context     []string
	Urgency     Urgency
	Domain      string
	SubmittedAt time.Time
}

// SourceResult is what one source adapter reports for one query. Confidence
// is the source's own 0-100 estimate before normalization.
type SourceResult struct {
	Source        string
	Answer        string
	Confidence    int
	Reasoning     string
	LatencyMS     int64
	TokenCount    int
	DocumentCount int
	RetrievedAt   time.Time
}

// NormalizedResult carries the recalibrated confidence in the embedded
// Confidence field and keeps the raw value for audit.
type NormalizedResult struct {
	SourceResult
	OriginalConfidence int
}

type Classification struct {
	Urgency    Urgency
	Complexity int
	Domain     string
	Type       QueryType
}

type Alternative struct {
	Answer     string `json:"answer"`
	Source     string `json:"source"`
	Confidence int    `json:"confidence"`
}

// Response is the unit cached and returned to the caller.
type Response struct {
	ID           string        `json:"id"`
	Query        string        `json:"query"`
	Answer       string        `json:"answer"`
	Confidence   int           `json:"confidence"`
	Source       string        `json:"source"`
	Sources      []string      `json:"sources"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
	Warning      string        `json:"warning,omitempty"`
	Conflict     bool          `json:"conflict,omitempty"`
	Combined     bool          `json:"combined,omitempty"`
	Strategy     string        `json:"strategy,omitempty"`
	CacheHit     bool          `json:"cache_hit,omitempty"`
	LatencyMS    int64         `json:"latency_ms"`
	CreatedAt    time.Time     `json:"created_at"`
}

// SourcePerformance aggregates how a source has behaved historically,
// optionally scoped to one query type.
type SourcePerformance struct {
	Source        string
	QueryType     QueryType
	AvgConfidence float64
	SuccessRate   float64
	AvgLatencyMS  float64
	Accuracy      float64
	Samples       int
}

// RouteRecord is the durable trace of one completed route.
type RouteRecord struct {
	ID        string
	UserID    string
	QueryText string
	QueryType QueryType
	Strategy  string
	Answer    string
	Confidence int
	CacheHit  bool
	Conflict  bool
	LatencyMS int64
	CreatedAt time.Time
}

// RouteSource is one source's contribution to a recorded route.
type RouteSource struct {
	RouteID            string
	Source             string
	Confidence         int
	OriginalConfidence int
	LatencyMS          int64
	Failed             bool
}

type Feedback struct {
	RouteID   string
	Helpful   bool
	Comment   string
	CreatedAt time.Time
}
