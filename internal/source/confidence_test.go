package source

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/askroute/backend/internal/search/docs"
	"github.com/askroute/backend/internal/storage/sqlite"
	"github.com/askroute/backend/internal/vector/milvus"
)

func TestDocsConfidence(t *testing.T) {
	results := func(n int, topTitle string) []docs.Result {
		out := make([]docs.Result, n)
		for i := range out {
			out[i] = docs.Result{Title: "page"}
		}
		if n > 0 {
			out[0].Title = topTitle
		}
		return out
	}

	tests := []struct {
		name    string
		query   string
		results []docs.Result
		want    int
	}{
		{
			name:    "single hit",
			query:   "configure the thing",
			results: results(1, "unrelated page"),
			want:    57,
		},
		{
			name:    "hit count saturates at three",
			query:   "something obscure",
			results: results(5, "unrelated page"),
			want:    81,
		},
		{
			name:    "title match boosts",
			query:   "lambda cold starts",
			results: results(2, "Understanding Lambda performance"),
			want:    78,
		},
		{
			name:    "capped at 90",
			query:   "lambda cold starts",
			results: results(4, "Lambda cold start tuning"),
			want:    90,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, docsConfidence(tt.query, tt.results))
		})
	}
}

func TestFuseDeduplicatesAndCaps(t *testing.T) {
	entries := []sqlite.KnowledgeEntry{
		{ID: "a", Title: "first"},
		{ID: "b", Title: "second"},
	}
	hits := []milvus.SearchResult{
		{ChunkID: "b", Title: "second again"},
		{ChunkID: "c", Title: "third"},
		{ChunkID: "d", Title: "fourth"},
	}

	fused := fuse(entries, hits, 3)

	assert.Len(t, fused, 3)
	assert.Equal(t, "a", fused[0].ID)
	assert.Equal(t, "b", fused[1].ID)
	// FTS rank order stays in front; the duplicate vector hit is dropped.
	assert.Equal(t, "c", fused[2].ID)
}
