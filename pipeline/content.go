// Package pipeline implements the ContentFlow pipeline execution engine: a
// graph-scheduled, streaming, fan-out/fan-in executor that drives content
// items through a directed graph of Executors.
package pipeline

import "time"

// LogStatus is the recorded outcome of one executor's processing of a
// Content item.
type LogStatus string

const (
	LogPending   LogStatus = "pending"
	LogSkipped   LogStatus = "skipped"
	LogCompleted LogStatus = "completed"
	LogFailed    LogStatus = "failed"
)

// ContentIdentifier identifies a content item across the pipeline. It is
// immutable once created; CanonicalID must be non-empty.
type ContentIdentifier struct {
	CanonicalID string         `json:"canonical_id"`
	UniqueID    string         `json:"unique_id"`
	SourceName  string         `json:"source_name,omitempty"`
	SourceType  string         `json:"source_type,omitempty"`
	Container   string         `json:"container,omitempty"`
	Path        string         `json:"path,omitempty"`
	Filename    string         `json:"filename,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ExecutorLogEntry records one executor's processing of a Content item.
type ExecutorLogEntry struct {
	ExecutorID string         `json:"executor_id"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    time.Time      `json:"end_time"`
	Status     LogStatus      `json:"status"`
	Details    map[string]any `json:"details,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
}

// Content is the unit of data carried between executors. SummaryData holds
// small, aggregate-safe fields; Data holds arbitrary, possibly large,
// payload fields. Both are heterogeneous JSON-shaped trees restricted by
// convention to nil | bool | float64 | string | []any | map[string]any, so
// they round-trip losslessly through encoding/json.
type Content struct {
	ID           ContentIdentifier  `json:"id"`
	SummaryData  map[string]any     `json:"summary_data"`
	Data         map[string]any     `json:"data"`
	ExecutorLogs []ExecutorLogEntry `json:"executor_logs"`

	// ModifiedAt is the source's modification time for this item, set by
	// input executors/crawlers that discover it. The zero value means the
	// source didn't report one; InputExecutor.CrawlAll only advances its
	// checkpoint watermark using items that set this field.
	ModifiedAt time.Time `json:"modified_at,omitempty"`
}

// NewContent returns a Content with initialized map fields, ready for an
// executor to populate.
func NewContent(id ContentIdentifier) *Content {
	return &Content{
		ID:          id,
		SummaryData: map[string]any{},
		Data:        map[string]any{},
	}
}

// Clone returns a deep-enough copy of c: the identifier, top-level maps, and
// log slice are copied, but nested map/slice values within Data/SummaryData
// are shared. This is sufficient for the aggregator and parallel executor,
// which only ever add or read top-level keys.
func (c *Content) Clone() *Content {
	clone := &Content{
		ID:           c.ID,
		SummaryData:  make(map[string]any, len(c.SummaryData)),
		Data:         make(map[string]any, len(c.Data)),
		ExecutorLogs: append([]ExecutorLogEntry(nil), c.ExecutorLogs...),
		ModifiedAt:   c.ModifiedAt,
	}
	for k, v := range c.SummaryData {
		clone.SummaryData[k] = v
	}
	for k, v := range c.Data {
		clone.Data[k] = v
	}
	return clone
}

// AppendLog appends an ExecutorLogEntry to the content's log in place.
func (c *Content) AppendLog(entry ExecutorLogEntry) {
	c.ExecutorLogs = append(c.ExecutorLogs, entry)
}

// Status derives the content's overall processing status on demand from its
// executor logs: failed if any entry failed, completed if every entry is
// completed or skipped, pending otherwise (including when there are no
// entries at all).
func (c *Content) Status() LogStatus {
	if len(c.ExecutorLogs) == 0 {
		return LogPending
	}
	allDone := true
	for _, entry := range c.ExecutorLogs {
		if entry.Status == LogFailed {
			return LogFailed
		}
		if entry.Status != LogCompleted && entry.Status != LogSkipped {
			allDone = false
		}
	}
	if allDone {
		return LogCompleted
	}
	return LogPending
}

// Items normalizes an executor's input into a slice, regardless of whether
// a single Content or a list of Content was sent.
func Items(input any) ([]*Content, bool) {
	switch v := input.(type) {
	case *Content:
		return []*Content{v}, false
	case []*Content:
		return v, true
	default:
		return nil, false
	}
}

// SingleOrList re-wraps a processed slice into a single *Content when the
// original input (per wasList) was a single item, preserving the §4.1
// contract that a single-item input produces a single-item output.
func SingleOrList(items []*Content, wasList bool) any {
	if !wasList {
		if len(items) == 0 {
			return (*Content)(nil)
		}
		return items[0]
	}
	return items
}
