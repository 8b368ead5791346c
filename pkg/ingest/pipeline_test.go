package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/loupelabs/loupe/pkg/catalog"
	catmem "github.com/loupelabs/loupe/pkg/catalog/memory"
	"github.com/loupelabs/loupe/pkg/vectordb"
)

// ingestEmbedder returns a fixed vector per text and records batch sizes.
type ingestEmbedder struct {
	batches [][]string
}

func (e *ingestEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.batches = append(e.batches, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (e *ingestEmbedder) Dimensions() int { return 2 }
func (e *ingestEmbedder) Model() string   { return "ingest-embed" }

func newTestPipeline(t *testing.T, cfg PipelineConfig) (*Pipeline, *ingestEmbedder, *vectordb.Memory, catalog.Catalog) {
	t.Helper()
	emb := &ingestEmbedder{}
	store := vectordb.NewMemory()
	cat := catmem.New()
	p, err := NewPipeline(emb, store, cat, cfg)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p, emb, store, cat
}

func TestIngestFilesStoresChunksAndRegistersCollection(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.md", "alpha beta gamma")
	p, _, store, cat := newTestPipeline(t, PipelineConfig{})

	n, err := p.IngestFiles(context.Background(), []string{path}, "My Docs", "test corpus")
	if err != nil {
		t.Fatalf("IngestFiles: %v", err)
	}
	if n != 1 {
		t.Fatalf("chunks stored = %d, want 1", n)
	}

	coll, err := cat.Get(context.Background(), "My_Docs")
	if err != nil {
		t.Fatalf("catalog Get: %v", err)
	}
	if coll.Description != "test corpus" {
		t.Errorf("Description = %q, want the supplied one", coll.Description)
	}

	matches, err := store.Search(context.Background(), "My_Docs", []float32{1, 0}, 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("len(matches) = %d, want 1", len(matches))
	}
	m := matches[0]
	if m.Content != "alpha beta gamma" {
		t.Errorf("Content = %q, want the chunk text", m.Content)
	}
	if m.Metadata["document"] != path || m.Metadata["position"] != "0" {
		t.Errorf("Metadata = %v, want document and position recorded", m.Metadata)
	}
	if m.Metadata["wider_text"] == "" {
		t.Error("wider_text metadata missing")
	}
}

func TestIngestFilesBatchesEmbeddings(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "aaaa bbbb cccc dddd eeee")
	p, emb, _, _ := newTestPipeline(t, PipelineConfig{ChunkSize: 10, ChunkOverlap: 0, EmbedBatchSize: 2})

	n, err := p.IngestFiles(context.Background(), []string{path}, "docs", "")
	if err != nil {
		t.Fatalf("IngestFiles: %v", err)
	}
	if n != 3 {
		t.Fatalf("chunks stored = %d, want 3", n)
	}
	if len(emb.batches) != 2 {
		t.Fatalf("embed calls = %d, want 2", len(emb.batches))
	}
	if len(emb.batches[0]) != 2 || len(emb.batches[1]) != 1 {
		t.Errorf("batch sizes = [%d %d], want [2 1]", len(emb.batches[0]), len(emb.batches[1]))
	}
}

func TestIngestFilesSkipsBadPathsLoadsRest(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.txt", "usable text")
	p, _, _, _ := newTestPipeline(t, PipelineConfig{})

	n, err := p.IngestFiles(context.Background(), []string{"/does/not/exist", good}, "docs", "")
	if err != nil {
		t.Fatalf("IngestFiles: %v (a bad path must not sink the batch)", err)
	}
	if n == 0 {
		t.Error("no chunks stored from the surviving path")
	}
}

func TestIngestFilesNothingLoadableFails(t *testing.T) {
	p, _, _, _ := newTestPipeline(t, PipelineConfig{})

	if _, err := p.IngestFiles(context.Background(), []string{"/does/not/exist"}, "docs", ""); err == nil {
		t.Error("IngestFiles succeeded with nothing loadable, want error")
	}
}

func TestIngestRequiresCollection(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "text")
	p, _, _, _ := newTestPipeline(t, PipelineConfig{})

	if _, err := p.IngestFiles(context.Background(), []string{path}, "", ""); err == nil {
		t.Error("IngestFiles succeeded without a collection, want error")
	}
}

func TestIngestTwiceReplacesChunks(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "stable content")
	p, _, store, _ := newTestPipeline(t, PipelineConfig{})

	for i := 0; i < 2; i++ {
		if _, err := p.IngestFiles(context.Background(), []string{path}, "docs", ""); err != nil {
			t.Fatalf("IngestFiles pass %d: %v", i+1, err)
		}
	}

	matches, err := store.Search(context.Background(), "docs", []float32{1, 0}, 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("len(matches) = %d, want 1 (re-ingest must replace, not duplicate)", len(matches))
	}
}

func TestIngestWebStoresPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<body><p>web page content here</p></body>`))
	}))
	defer srv.Close()

	p, _, store, cat := newTestPipeline(t, PipelineConfig{})
	n, err := p.IngestWeb(context.Background(), []string{srv.URL}, "web", "crawled pages")
	if err != nil {
		t.Fatalf("IngestWeb: %v", err)
	}
	if n == 0 {
		t.Fatal("no chunks stored")
	}

	if _, err := cat.Get(context.Background(), "web"); err != nil {
		t.Errorf("collection not registered: %v", err)
	}
	matches, err := store.Search(context.Background(), "web", []float32{1, 0}, 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) == 0 || !strings.Contains(matches[0].Content, "web page content here") {
		t.Errorf("matches = %+v, want the page text", matches)
	}
	if matches[0].Metadata["document"] != srv.URL {
		t.Errorf("document = %q, want the source url", matches[0].Metadata["document"])
	}
}

func TestChunkIDDeterministic(t *testing.T) {
	a := chunkID("doc.md", 3)
	b := chunkID("doc.md", 3)
	c := chunkID("doc.md", 4)

	if a != b {
		t.Errorf("same source produced different ids: %s vs %s", a, b)
	}
	if a == c {
		t.Error("different positions produced the same id")
	}
	if !strings.HasPrefix(a, "ch_") {
		t.Errorf("id = %q, want ch_ prefix", a)
	}
}
