package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter(t *testing.T) {
	evens := Filter([]int{1, 2, 3, 4}, func(n int) bool { return n%2 == 0 })
	assert.Equal(t, []int{2, 4}, evens)
	assert.Empty(t, Filter([]int{1}, func(int) bool { return false }))
}

func TestChunk(t *testing.T) {
	batches := Chunk([]int{1, 2, 3, 4, 5, 6, 7}, 3)
	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5, 6}, {7}}, batches)

	assert.Empty(t, Chunk([]int{}, 5))
	assert.Len(t, Chunk([]int{1, 2}, 0), 2)

	// appending to a batch must not clobber the next one
	batches = Chunk([]int{1, 2, 3, 4}, 2)
	_ = append(batches[0], 99)
	assert.Equal(t, []int{3, 4}, batches[1])
}

func TestDedupe(t *testing.T) {
	out := Dedupe([]string{"a", "b", "a", "c", "b"}, func(s string) string { return s })
	assert.Equal(t, []string{"a", "b", "c"}, out)
}

func TestHTTPClientGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "x", r.URL.Query().Get("q"))
		w.Write([]byte(`{"symbol":"SOL"}`))
	}))
	defer server.Close()

	client := NewHTTPClient()
	resp, err := client.Get(context.Background(), server.URL, url.Values{"q": {"x"}})
	require.NoError(t, err)

	var body struct {
		Symbol string `json:"symbol"`
	}
	require.NoError(t, resp.DecodeJSON(&body))
	assert.Equal(t, "SOL", body.Symbol)
}

func TestHTTPClientRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewHTTPClient(WithRetries(2, time.Millisecond))
	_, err := client.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewHTTPClient(WithRetries(3, time.Millisecond))
	resp, err := client.Get(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEstimateRemaining(t *testing.T) {
	assert.Equal(t, 30*time.Second, EstimateRemaining(10*time.Second, 5, 20))
	assert.Equal(t, time.Duration(0), EstimateRemaining(10*time.Second, 0, 20))
	assert.Equal(t, time.Duration(0), EstimateRemaining(10*time.Second, 20, 20))
}
