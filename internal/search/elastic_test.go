package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"returnbox_back_end/internal/models"
	"returnbox_back_end/internal/returns"
)

type fakeElastic struct {
	mu       sync.Mutex
	indexed  map[string]json.RawMessage
	lastBody map[string]interface{}
}

func (f *fakeElastic) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	body, _ := io.ReadAll(r.Body)
	switch {
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/returns/_doc/"):
		f.indexed[strings.TrimPrefix(r.URL.Path, "/returns/_doc/")] = body
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	case strings.HasSuffix(r.URL.Path, "/_search"):
		_ = json.Unmarshal(body, &f.lastBody)
		hits := []map[string]json.RawMessage{}
		for _, doc := range f.indexed {
			hits = append(hits, map[string]json.RawMessage{"_source": doc})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"hits": map[string]interface{}{"hits": hits}})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{}`))
	}
}

func newTestIndex(t *testing.T) (*Index, *fakeElastic) {
	t.Helper()
	fake := &fakeElastic{indexed: map[string]json.RawMessage{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewIndex(es, "returns"), fake
}

func TestIndexAndSearch(t *testing.T) {
	idx, fake := newTestIndex(t)
	ctx := context.Background()

	ret := models.ReturnRequest{
		ID: "r1", MerchantID: "m1", OrderID: "CMD-1", ProductName: "Veste", Status: models.ReturnStatusPending,
	}
	idx.ReturnChanged(ctx, returns.Change{Kind: returns.ChangeSubmitted, Return: ret})
	require.Contains(t, fake.indexed, "r1")

	found, err := idx.Search(ctx, "m1", "veste", models.ReturnStatusPending)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "CMD-1", found[0].OrderID)

	query := fake.lastBody["query"].(map[string]interface{})["bool"].(map[string]interface{})
	filters := query["filter"].([]interface{})
	assert.Len(t, filters, 2)
	assert.Contains(t, query, "must")
}

func TestDisabledIndex(t *testing.T) {
	var idx *Index
	idx.ReturnChanged(context.Background(), returns.Change{})
	_, err := idx.Search(context.Background(), "m1", "", "")
	assert.ErrorIs(t, err, ErrDisabled)

	assert.NoError(t, NewIndex(nil, "returns").EnsureIndex(context.Background()))
}
