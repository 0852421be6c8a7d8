package types

import "time"

// QueryTrace is one append-only telemetry row describing a query the
// engine answered. Traces are written off the query path and are never
// consulted while answering queries.
type QueryTrace struct {
	ID          ID        `json:"id"`
	Query       string    `json:"query"`
	Strategy    string    `json:"strategy"`
	ResultCount int       `json:"result_count"`
	LatencyMS   int64     `json:"latency_ms"`
	Degraded    bool      `json:"degraded"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewQueryTrace stamps a trace with a fresh id and the current time.
func NewQueryTrace(query, strategy string, resultCount int, latency time.Duration, degraded bool) QueryTrace {
	return QueryTrace{
		ID:          NewID(),
		Query:       query,
		Strategy:    strategy,
		ResultCount: resultCount,
		LatencyMS:   latency.Milliseconds(),
		Degraded:    degraded,
		CreatedAt:   time.Now().UTC(),
	}
}
