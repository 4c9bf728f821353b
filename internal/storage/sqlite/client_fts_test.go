//go:build sqlite_fts5

package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(filepath.Join(t.TempDir(), "knowledge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.InitSchema())
	return client
}

func TestSearchKnowledgeFindsInsertedEntry(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.InsertKnowledgeEntry(&KnowledgeEntry{
		ID:    "e1",
		Title: "Restarting redis",
		Body:  "How to restart the redis service safely",
	}))

	entries, err := client.SearchKnowledge("redis", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e1", entries[0].ID)
}

func TestSearchKnowledgeAfterUpsert(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.InsertKnowledgeEntry(&KnowledgeEntry{
		ID:    "e1",
		Title: "Restarting redis",
		Body:  "How to restart the redis service safely",
	}))

	// Same ID, new content. The index must follow the entry.
	require.NoError(t, client.InsertKnowledgeEntry(&KnowledgeEntry{
		ID:    "e1",
		Title: "Restarting postgres",
		Body:  "How to restart the postgresql service safely",
	}))

	entries, err := client.SearchKnowledge("postgresql", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e1", entries[0].ID)
	assert.Equal(t, "Restarting postgres", entries[0].Title)

	stale, err := client.SearchKnowledge("redis", 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestSearchKnowledgeIgnoresPunctuation(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.InsertKnowledgeEntry(&KnowledgeEntry{
		ID:    "e1",
		Title: "Connection pooling",
		Body:  "Tune the pool size before raising limits",
	}))

	entries, err := client.SearchKnowledge(`pooling? "limits"`, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e1", entries[0].ID)
}
