package engine

import (
	"testing"

	"github.com/loupelabs/loupe/pkg/api"
)

func citedEvidence() []api.Evidence {
	return []api.Evidence{
		{ChunkID: "ch_a", Source: api.SourceRef{Collection: "docs", Document: "a.md"}},
		{ChunkID: "ch_b", Source: api.SourceRef{Collection: "docs", Document: "b.md"}},
		{ChunkID: "ch_c", Source: api.SourceRef{Collection: "wiki", Document: "c.md"}},
	}
}

func TestExtractCitationsFirstMentionOrder(t *testing.T) {
	text := "The answer [3] follows from the setup [1], as noted again [3]."
	got := extractCitations(text, citedEvidence())

	if len(got) != 2 {
		t.Fatalf("len(citations) = %d, want 2", len(got))
	}
	if got[0].ChunkID != "ch_c" || got[1].ChunkID != "ch_a" {
		t.Errorf("citations = [%s %s], want [ch_c ch_a] (first mention order)",
			got[0].ChunkID, got[1].ChunkID)
	}
}

func TestExtractCitationsIgnoresOutOfRange(t *testing.T) {
	text := "Supported by [2], but also [0], [7], and [99]."
	got := extractCitations(text, citedEvidence())

	if len(got) != 1 {
		t.Fatalf("len(citations) = %d, want 1", len(got))
	}
	if got[0].ChunkID != "ch_b" {
		t.Errorf("citations[0] = %s, want ch_b", got[0].ChunkID)
	}
}

func TestExtractCitationsNoMarkersCitesAll(t *testing.T) {
	got := extractCitations("An answer with no markers.", citedEvidence())

	if len(got) != 3 {
		t.Fatalf("len(citations) = %d, want 3 (all evidence)", len(got))
	}
	want := []string{"ch_a", "ch_b", "ch_c"}
	for i := range want {
		if got[i].ChunkID != want[i] {
			t.Errorf("citations[%d] = %s, want %s", i, got[i].ChunkID, want[i])
		}
	}
}

func TestExtractCitationsCarriesSource(t *testing.T) {
	got := extractCitations("See [3].", citedEvidence())

	if len(got) != 1 {
		t.Fatalf("len(citations) = %d, want 1", len(got))
	}
	if got[0].Source.Collection != "wiki" || got[0].Source.Document != "c.md" {
		t.Errorf("Source = %+v, want collection wiki document c.md", got[0].Source)
	}
}

func TestExtractCitationsEmptyEvidence(t *testing.T) {
	if got := extractCitations("Answer [1].", nil); len(got) != 0 {
		t.Errorf("citations = %v, want none for empty evidence", got)
	}
}
