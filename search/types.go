// Package search implements the Search Orchestrator (Stage 1): it drives
// the massive-collection phase across eight intelligence streams, merges
// and deduplicates results into a MassiveCorpus, expands synthetically to a
// configured byte-size floor, and persists the result. Grounded on the
// platform's workflow_engine parallel step execution and result_aggregator
// merge logic, restructured around the specification's stream/provider
// model instead of the platform's generic workflow DAG.
package search

import "time"

// Brief is the minimal user input driving a collection run.
type Brief struct {
	Query     string `json:"query"`
	Segment   string `json:"segment"`
	Product   string `json:"product"`
	Audience  string `json:"audience"`
	SessionID string `json:"session_id"`
}

// StreamName is one of the eight fixed intelligence streams.
type StreamName string

const (
	StreamWeb         StreamName = "web"
	StreamSocial      StreamName = "social"
	StreamTrend       StreamName = "trend"
	StreamMarket      StreamName = "market"
	StreamCompetitor  StreamName = "competitor"
	StreamContent     StreamName = "content"
	StreamBehavioral  StreamName = "behavioral"
	StreamPredictive  StreamName = "predictive"
)

// AllStreams is the fixed, closed set of intelligence streams run in
// parallel by Stage 1.
var AllStreams = []StreamName{
	StreamWeb, StreamSocial, StreamTrend, StreamMarket,
	StreamCompetitor, StreamContent, StreamBehavioral, StreamPredictive,
}

// CollectionMeta carries the corpus's own collection metadata, per the
// MassiveCorpus invariant that it report sources used, counts, and size.
type CollectionMeta struct {
	TotalSources       int           `json:"total_sources"`
	ElapsedSeconds      float64      `json:"elapsed_seconds"`
	SizeBytes          int64         `json:"size_bytes"`
	StreamsSucceeded   []string      `json:"streams_succeeded"`
	StreamsFailed      []string      `json:"streams_failed"`
	SyntheticExpansion bool          `json:"synthetic_expansion"`
	PaddingBlocksAdded int           `json:"padding_blocks_added,omitempty"`
	CollectedAt        time.Time     `json:"collected_at"`
}

// StreamResult is the stream-local shape: query variant -> normalized
// provider result payload.
type StreamResult map[string]any

// MassiveCorpus is the fixed, authoritative Stage-1 output schema (Open
// Question #1 in the design notes is resolved to this single shape; see
// DESIGN.md).
type MassiveCorpus struct {
	SessionID string                       `json:"session_id"`
	Brief     Brief                        `json:"brief"`
	Streams   map[StreamName]StreamResult  `json:"streams"`
	Meta      CollectionMeta               `json:"meta"`
}
