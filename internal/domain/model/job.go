package model

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusTimedOut  JobStatus = "timed_out"
)

// Terminal reports whether no further transition can leave the status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusTimedOut
}

type SourceState string

const (
	SourceStatePending SourceState = "pending"
	SourceStateOK      SourceState = "ok"
	SourceStateError   SourceState = "error"
	SourceStateTimeout SourceState = "timeout"
)

func (s SourceState) Terminal() bool { return s != SourceStatePending }

// FailureKind classifies adapter-level failures.
type FailureKind string

const (
	FailureRateLimited     FailureKind = "rate_limited"
	FailureUnauthorized    FailureKind = "unauthorized"
	FailureUnreachable     FailureKind = "unreachable"
	FailureSchemaViolation FailureKind = "schema_violation"
	FailureTimeout         FailureKind = "timeout"
)

// SourceError is the structured failure a source adapter surfaces.
type SourceError struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (e *SourceError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// SourceResult records the outcome of one adapter fetch within a job.
type SourceResult struct {
	Source    string          `json:"source"`
	State     SourceState     `json:"state"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *SourceError    `json:"error,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
}

// Query is the immutable input of a job: the merchant snapshot plus the
// natural-language analysis text and the set of requested sources.
type Query struct {
	Text     string        `json:"text"`
	Sources  []string      `json:"sources"`
	Snapshot StoreSnapshot `json:"snapshot"`
}

// Job is one submitted analysis request and its lifecycle record.
type Job struct {
	ID               string                     `json:"id"`
	Status           JobStatus                  `json:"status"`
	Progress         int                        `json:"progress"`
	Query            Query                      `json:"query"`
	SourceResults    map[string]*SourceResult   `json:"source_results"`
	Insight          *CombinedInsight           `json:"combined_insight,omitempty"`
	Artifacts        map[string]json.RawMessage `json:"artifacts,omitempty"`
	DetailedAnalysis string                     `json:"detailed_analysis,omitempty"`
	LastError        string                     `json:"last_error,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
	CompletedAt      *time.Time                 `json:"completed_at,omitempty"`
}

// NewJob creates a pending job with one pending SourceResult per requested
// source. The key set is fixed here and never changes afterwards.
func NewJob(id string, q Query, now time.Time) *Job {
	results := make(map[string]*SourceResult, len(q.Sources))
	for _, s := range q.Sources {
		results[s] = &SourceResult{Source: s, State: SourceStatePending}
	}
	return &Job{
		ID:            id,
		Status:        JobStatusPending,
		Query:         q,
		SourceResults: results,
		CreatedAt:     now,
	}
}

// TerminalSourceCount returns how many sources reached a terminal state.
func (j *Job) TerminalSourceCount() int {
	n := 0
	for _, r := range j.SourceResults {
		if r.State.Terminal() {
			n++
		}
	}
	return n
}

// RecomputeProgress sets progress to round(100*terminal/total), never
// letting it regress.
func (j *Job) RecomputeProgress() {
	total := len(j.SourceResults)
	if total == 0 {
		return
	}
	p := (j.TerminalSourceCount()*100 + total/2) / total
	if p > j.Progress {
		j.Progress = p
	}
}

// Finish moves the job into a terminal status and stamps CompletedAt once.
// Calling it on an already-terminal job is a no-op.
func (j *Job) Finish(status JobStatus, now time.Time) {
	if j.Status.Terminal() {
		return
	}
	j.Status = status
	if j.CompletedAt == nil {
		t := now
		j.CompletedAt = &t
	}
}

// Clone returns a deep copy, used for read snapshots so pollers never
// observe in-place mutation.
func (j *Job) Clone() *Job {
	cp := *j
	cp.SourceResults = make(map[string]*SourceResult, len(j.SourceResults))
	for k, v := range j.SourceResults {
		rv := *v
		if v.Data != nil {
			rv.Data = append(json.RawMessage(nil), v.Data...)
		}
		if v.Error != nil {
			e := *v.Error
			rv.Error = &e
		}
		cp.SourceResults[k] = &rv
	}
	if j.Insight != nil {
		cp.Insight = j.Insight.Clone()
	}
	if j.Artifacts != nil {
		cp.Artifacts = make(map[string]json.RawMessage, len(j.Artifacts))
		for k, v := range j.Artifacts {
			cp.Artifacts[k] = append(json.RawMessage(nil), v...)
		}
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	cp.Query.Sources = append([]string(nil), j.Query.Sources...)
	return &cp
}
