package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Steps recorded per run.
const (
	StepFanOut   = "fanout"
	StepCachePut = "cacheput"
)

// Journal records completed run steps so a run started again with the same id
// resumes after the last recorded step instead of repeating it.
type Journal interface {
	// Load decodes the recorded payload of step into dst and reports whether it existed.
	Load(ctx context.Context, runID, step string, dst any) (bool, error)
	// Record stores v as the payload of step, replacing any earlier record.
	Record(ctx context.Context, runID, step string, v any) error
}

// Step is one recorded run step.
type Step struct {
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// DefaultJournalRetention is how long a MemoryJournal keeps a run after its
// last recorded step.
const DefaultJournalRetention = time.Hour

// MemoryJournal is a process-local Journal. Records are lost on restart, and
// runs idle for longer than the retention window are dropped.
type MemoryJournal struct {
	mu        sync.RWMutex
	runs      map[string][]Step
	retention time.Duration
	lastSweep time.Time
}

// NewMemoryJournal constructs an empty MemoryJournal with DefaultJournalRetention.
func NewMemoryJournal() *MemoryJournal {
	return NewMemoryJournalWithRetention(DefaultJournalRetention)
}

// NewMemoryJournalWithRetention constructs an empty MemoryJournal that forgets
// a run once retention has passed since its last recorded step.
func NewMemoryJournalWithRetention(retention time.Duration) *MemoryJournal {
	if retention <= 0 {
		retention = DefaultJournalRetention
	}
	return &MemoryJournal{
		runs:      make(map[string][]Step),
		retention: retention,
		lastSweep: time.Now(),
	}
}

// Load decodes the recorded payload of step into dst and reports whether it existed.
func (j *MemoryJournal) Load(_ context.Context, runID, step string, dst any) (bool, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	steps := j.live(runID, time.Now())
	for _, s := range steps {
		if s.Name != step {
			continue
		}
		if err := json.Unmarshal(s.Payload, dst); err != nil {
			return false, fmt.Errorf("decoding step %s of run %s: %w", step, runID, err)
		}
		return true, nil
	}
	return false, nil
}

// Record stores v as the payload of step, replacing any earlier record.
// Expired runs are swept at most twice per retention window.
func (j *MemoryJournal) Record(_ context.Context, runID, step string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding step %s of run %s: %w", step, runID, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now()
	if now.Sub(j.lastSweep) >= j.retention/2 {
		j.sweep(now)
	}

	rec := Step{Name: step, Payload: b, RecordedAt: now.UTC()}
	steps := j.live(runID, now)
	for i := range steps {
		if steps[i].Name == step {
			steps[i] = rec
			return nil
		}
	}
	j.runs[runID] = append(steps, rec)
	return nil
}

// Steps lists the recorded steps of a run in recording order.
// An unknown or expired run yields an empty slice.
func (j *MemoryJournal) Steps(_ context.Context, runID string) ([]Step, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	steps := j.live(runID, time.Now())
	out := make([]Step, len(steps))
	copy(out, steps)
	return out, nil
}

// Len reports how many runs the journal currently holds, expired ones included
// until the next sweep.
func (j *MemoryJournal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.runs)
}

// live returns the steps of runID, or nil once the run has expired.
// Callers hold j.mu.
func (j *MemoryJournal) live(runID string, now time.Time) []Step {
	steps := j.runs[runID]
	if j.expired(steps, now) {
		return nil
	}
	return steps
}

func (j *MemoryJournal) expired(steps []Step, now time.Time) bool {
	var last time.Time
	for _, s := range steps {
		if s.RecordedAt.After(last) {
			last = s.RecordedAt
		}
	}
	return len(steps) > 0 && now.Sub(last) > j.retention
}

func (j *MemoryJournal) sweep(now time.Time) {
	for runID, steps := range j.runs {
		if j.expired(steps, now) {
			delete(j.runs, runID)
		}
	}
	j.lastSweep = now
}
