package engine

import (
	"sort"

	"github.com/loupelabs/loupe/pkg/api"
)

// evidenceSet accumulates retrieved chunks over the lifetime of one query.
// It is insertion-ordered and deduplicates by chunk id: a re-retrieved
// chunk keeps its earliest position and the maximum score seen. The set
// only grows; chunks are never removed. It is not safe for concurrent use;
// the engine merges retrieval results only at iteration join points.
type evidenceSet struct {
	items []api.Evidence
	index map[string]int
}

func newEvidenceSet() *evidenceSet {
	return &evidenceSet{index: make(map[string]int)}
}

// Add merges ev into the set and reports whether the chunk id was new.
func (s *evidenceSet) Add(ev api.Evidence) bool {
	if pos, ok := s.index[ev.ChunkID]; ok {
		if ev.Score > s.items[pos].Score {
			s.items[pos].Score = ev.Score
		}
		return false
	}
	ev.Seq = len(s.items)
	s.index[ev.ChunkID] = len(s.items)
	s.items = append(s.items, ev)
	return true
}

func (s *evidenceSet) Len() int {
	return len(s.items)
}

// All returns the evidence in insertion order.
func (s *evidenceSet) All() []api.Evidence {
	out := make([]api.Evidence, len(s.items))
	copy(out, s.items)
	return out
}

// Top returns the n highest-scoring chunks, ties broken by earliest
// retrieval. n <= 0 or n >= Len returns everything.
func (s *evidenceSet) Top(n int) []api.Evidence {
	out := s.All()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
