package model

import "time"

// Stage names a pipeline stage.
type Stage string

const (
	// StageCrawl fetches seeds and subpages.
	StageCrawl Stage = "crawl"
	// StageClean normalizes and deduplicates text.
	StageClean Stage = "clean"
	// StageFilter keeps relevant sentences.
	StageFilter Stage = "filter"
	// StageTranslate translates text.
	StageTranslate Stage = "translate"
)

// RunStatus is the outcome of a pipeline run.
type RunStatus string

const (
	// RunRunning marks a run that has not finished.
	RunRunning RunStatus = "running"
	// RunCompleted marks a run where every stage finished.
	RunCompleted RunStatus = "completed"
	// RunFailed marks a run that stopped on an error.
	RunFailed RunStatus = "failed"
	// RunInterrupted marks a run that was cancelled by the operator.
	RunInterrupted RunStatus = "interrupted"
)

// Run describes one invocation of the pipeline.
type Run struct {
	ID         string       `json:"id"`
	Stages     []Stage      `json:"stages"`
	Status     RunStatus    `json:"status"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at,omitzero"`
	SeedCount  int          `json:"seed_count"`
	PageCount  int          `json:"page_count"`
	Error      string       `json:"error,omitempty"`
	Stats      []StageStats `json:"stats,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// StageStats counts what a stage did to its input.
type StageStats struct {
	Stage  Stage `json:"stage"`
	Input  int   `json:"input"`
	Output int   `json:"output"`

	// Dropped counts removed subpages per reason ("short", "error_page",
	// "exact_duplicate", "near_duplicate", "irrelevant", "fetch_failed", ...).
	Dropped map[string]int `json:"dropped,omitempty"`

	// Languages counts detected sentence languages (filter stage only).
	Languages map[string]int `json:"languages,omitempty"`

	Duration time.Duration `json:"duration"`
}

// NewStageStats returns stats for stage with empty counters.
func NewStageStats(stage Stage) StageStats {
	return StageStats{Stage: stage, Dropped: make(map[string]int)}
}

// Drop adds n to the counter for reason.
func (s *StageStats) Drop(reason string, n int) {
	if n == 0 {
		return
	}
	if s.Dropped == nil {
		s.Dropped = make(map[string]int)
	}
	s.Dropped[reason] += n
}

// TotalDropped sums every drop counter.
func (s *StageStats) TotalDropped() int {
	total := 0
	for _, n := range s.Dropped {
		total += n
	}
	return total
}
