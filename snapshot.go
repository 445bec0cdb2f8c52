package callsim

// snapshot.go holds the store of completed analysis runs.  A snapshot is
// immutable once created; the simulator reads link metrics from it and
// never writes back

import (
	"fmt"
	"github.com/google/uuid"
	"sync"
	"time"
)

// A Snapshot records the inputs and results of one analysis run
type Snapshot struct {
	ID                  string        `json:"id" yaml:"id"`
	Timestamp           time.Time     `json:"timestamp" yaml:"timestamp"`
	NetworkType         NetworkType   `json:"networktype" yaml:"networktype"`
	Codec               Codec         `json:"codec,omitempty" yaml:"codec,omitempty"`
	BlockingProbability float64       `json:"blockingprob" yaml:"blockingprob"`
	Links               []LinkMetrics `json:"links" yaml:"links"`
	Explanation         string        `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	ModelUsed           string        `json:"modelused,omitempty" yaml:"modelused,omitempty"`
}

// SnapshotStore retains up to a fixed number of snapshots, in creation
// order.  All methods are safe for concurrent use
type SnapshotStore struct {
	mu    sync.Mutex
	limit int
	snaps map[string]*Snapshot
	order []string
}

// CreateSnapshotStore is a constructor.  The limit argument bounds the
// number of live snapshots; adding past the bound is refused rather than
// silently evicting
func CreateSnapshotStore(limit int) *SnapshotStore {
	ss := new(SnapshotStore)
	ss.limit = limit
	ss.snaps = make(map[string]*Snapshot)
	ss.order = make([]string, 0, limit)
	return ss
}

// Add creates and retains a snapshot for an analysis result, assigning
// it a fresh id and timestamp.  An error is returned when the store is
// at its limit
func (ss *SnapshotStore) Add(params AnalysisParams, links []LinkMetrics) (*Snapshot, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if len(ss.order) >= ss.limit {
		return nil, fmt.Errorf("snapshot limit of %d reached, clear before re-running", ss.limit)
	}

	snap := &Snapshot{
		ID:                  uuid.NewString(),
		Timestamp:           time.Now(),
		NetworkType:         params.NetworkType,
		Codec:               params.Codec,
		BlockingProbability: params.BlockingProbability,
		Links:               links,
	}
	ss.snaps[snap.ID] = snap
	ss.order = append(ss.order, snap.ID)
	return snap, nil
}

// Get returns the snapshot with the given id, if present
func (ss *SnapshotStore) Get(id string) (*Snapshot, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	snap, present := ss.snaps[id]
	return snap, present
}

// List returns the retained snapshots in creation order
func (ss *SnapshotStore) List() []*Snapshot {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	out := make([]*Snapshot, 0, len(ss.order))
	for _, id := range ss.order {
		out = append(out, ss.snaps[id])
	}
	return out
}

// Remove deletes one snapshot, reporting whether it was present
func (ss *SnapshotStore) Remove(id string) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	_, present := ss.snaps[id]
	if !present {
		return false
	}
	delete(ss.snaps, id)
	for idx, oid := range ss.order {
		if oid == id {
			ss.order = append(ss.order[:idx], ss.order[idx+1:]...)
			break
		}
	}
	return true
}

// Clear drops every retained snapshot
func (ss *SnapshotStore) Clear() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.snaps = make(map[string]*Snapshot)
	ss.order = ss.order[:0]
}

// SetExplanation attaches a natural-language explanation produced by an
// external model to a snapshot.  The analysis results themselves stay
// immutable
func (ss *SnapshotStore) SetExplanation(id, explanation, modelUsed string) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	snap, present := ss.snaps[id]
	if !present {
		return false
	}
	snap.Explanation = explanation
	snap.ModelUsed = modelUsed
	return true
}
