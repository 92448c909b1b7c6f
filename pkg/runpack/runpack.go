// Package runpack records one gate evaluation as an append-only,
// hash-chained sequence of steps. A sealed pack carries a fingerprint over
// its terminal hash, so any mutation of any step, or any reordering, is
// detectable after the fact.
package runpack

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/verdict-labs/verdict/pkg/canonicalize"
	"github.com/verdict-labs/verdict/pkg/ident"
)

// StepKind classifies what one step witnessed.
type StepKind string

const (
	// StepSpecLoaded records the validated spec and its canonical hash.
	StepSpecLoaded StepKind = "spec_loaded"
	// StepEvidenceFetched records the full evidence gather result.
	StepEvidenceFetched StepKind = "evidence_fetched"
	// StepConditionEvaluated records one condition's comparison outcome.
	StepConditionEvaluated StepKind = "condition_evaluated"
	// StepTreeEvaluated records the requirement tree traversal plan.
	StepTreeEvaluated StepKind = "tree_evaluated"
	// StepDecided records the terminal gate outcome.
	StepDecided StepKind = "decided"
)

// GenesisHash seeds the chain so the first step's predecessor is fixed and
// never colliding with a real step hash.
var GenesisHash = canonicalize.HashBytes([]byte("runpack/genesis/v1"))

var (
	// ErrSealed rejects appends to a sealed recorder.
	ErrSealed = errors.New("runpack: recorder is sealed")
	// ErrEmpty rejects sealing a recorder with no steps.
	ErrEmpty = errors.New("runpack: nothing recorded")
)

// Step is one chained record. Hash covers every other field, and PrevHash is
// the previous step's Hash (GenesisHash for the first step).
type Step struct {
	Seq      uint64          `json:"seq"`
	Kind     StepKind        `json:"kind"`
	At       time.Time       `json:"at"`
	Payload  json.RawMessage `json:"payload"`
	PrevHash string          `json:"prev_hash"`
	Hash     string          `json:"hash"`
}

// stepBody is the hashed portion of a step.
type stepBody struct {
	RunID    ident.RunID     `json:"run_id"`
	Seq      uint64          `json:"seq"`
	Kind     StepKind        `json:"kind"`
	At       string          `json:"at"`
	Payload  json.RawMessage `json:"payload"`
	PrevHash string          `json:"prev_hash"`
}

func stepHash(runID ident.RunID, s Step) (string, error) {
	return canonicalize.Hash(stepBody{
		RunID:    runID,
		Seq:      s.Seq,
		Kind:     s.Kind,
		At:       s.At.UTC().Format(time.RFC3339Nano),
		Payload:  s.Payload,
		PrevHash: s.PrevHash,
	})
}

// Pack is a sealed runpack. Fingerprint equals the last step's hash.
type Pack struct {
	RunID       ident.RunID      `json:"run_id"`
	ScenarioID  ident.ScenarioID `json:"scenario_id"`
	Steps       []Step           `json:"steps"`
	Fingerprint string           `json:"fingerprint"`
}

// Encode serializes the pack as JSON.
func (p *Pack) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// Decode parses a serialized pack without verifying it; call Verify for
// integrity.
func Decode(data []byte) (*Pack, error) {
	var p Pack
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("runpack: decode: %w", err)
	}
	return &p, nil
}

// Verify recomputes the hash chain. It returns (-1, nil) for an intact pack
// and the index of the first divergent step otherwise. A bad fingerprint
// reports the index just past the last step.
func Verify(p *Pack) (int, error) {
	prev := GenesisHash
	for i, s := range p.Steps {
		if s.Seq != uint64(i+1) || s.PrevHash != prev {
			return i, fmt.Errorf("runpack: step %d breaks the chain", i)
		}
		h, err := stepHash(p.RunID, s)
		if err != nil {
			return i, fmt.Errorf("runpack: step %d: %w", i, err)
		}
		if h != s.Hash {
			return i, fmt.Errorf("runpack: step %d hash mismatch", i)
		}
		prev = s.Hash
	}
	if len(p.Steps) == 0 || p.Fingerprint != prev {
		return len(p.Steps), fmt.Errorf("runpack: fingerprint mismatch")
	}
	return -1, nil
}

// Recorder appends steps for one run. Safe for concurrent use, though the
// gate engine appends from a single goroutine.
type Recorder struct {
	mu       sync.Mutex
	runID    ident.RunID
	scenario ident.ScenarioID
	steps    []Step
	sealed   bool
	clock    func() time.Time
}

// NewRecorder starts an empty chain for one run.
func NewRecorder(runID ident.RunID, scenario ident.ScenarioID) *Recorder {
	return &Recorder{runID: runID, scenario: scenario, clock: time.Now}
}

// WithClock overrides the clock for testing.
func (r *Recorder) WithClock(clock func() time.Time) *Recorder {
	r.clock = clock
	return r
}

// Append records one step. The payload is serialized canonically and hashed
// into the chain immediately.
func (r *Recorder) Append(kind StepKind, payload any) (Step, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return Step{}, ErrSealed
	}

	raw, err := canonicalize.JSON(payload)
	if err != nil {
		return Step{}, fmt.Errorf("runpack: payload for %s: %w", kind, err)
	}
	prev := GenesisHash
	if n := len(r.steps); n > 0 {
		prev = r.steps[n-1].Hash
	}
	s := Step{
		Seq:      uint64(len(r.steps) + 1),
		Kind:     kind,
		At:       r.clock().UTC(),
		Payload:  raw,
		PrevHash: prev,
	}
	s.Hash, err = stepHash(r.runID, s)
	if err != nil {
		return Step{}, err
	}
	r.steps = append(r.steps, s)
	return s, nil
}

// Len returns the number of recorded steps.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.steps)
}

// Seal freezes the chain and returns the pack. Further appends fail with
// ErrSealed; sealing twice returns the same pack contents.
func (r *Recorder) Seal() (*Pack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.steps) == 0 {
		return nil, ErrEmpty
	}
	r.sealed = true

	steps := make([]Step, len(r.steps))
	copy(steps, r.steps)
	return &Pack{
		RunID:       r.runID,
		ScenarioID:  r.scenario,
		Steps:       steps,
		Fingerprint: steps[len(steps)-1].Hash,
	}, nil
}
