package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	mu       sync.Mutex
	profiles map[string]profile
	requests [][]string
	status   int
}

func newStubProvider(profiles map[string]profile) *stubProvider {
	return &stubProvider{profiles: profiles, status: http.StatusOK}
}

func (s *stubProvider) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/users", r.URL.Path)

		ids := r.URL.Query()["user_id"]
		s.mu.Lock()
		s.requests = append(s.requests, ids)
		status := s.status
		s.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}

		var out []profile
		for _, id := range ids {
			if p, ok := s.profiles[id]; ok {
				out = append(out, p)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

func TestResolveAuthors(t *testing.T) {
	stub := newStubProvider(map[string]profile{
		"user_a": {ID: "user_a", Username: "ann", ProfileImageURL: "https://img/ann.png"},
		"user_b": {ID: "user_b", Username: "ben", ProfileImageURL: "https://img/ben.png"},
	})
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	authors, err := client.ResolveAuthors(context.Background(), []string{"user_a", "user_b", "user_a"})
	require.NoError(t, err)

	require.Len(t, authors, 2)
	assert.Equal(t, "ann", authors["user_a"].Username)
	assert.Equal(t, "https://img/ben.png", authors["user_b"].ProfilePicture)

	// Duplicate ids collapse into one upstream call
	require.Len(t, stub.requests, 1)
	assert.ElementsMatch(t, []string{"user_a", "user_b"}, stub.requests[0])
}

func TestResolveAuthorsSplitsLargeBatches(t *testing.T) {
	profiles := make(map[string]profile)
	var ids []string
	for i := 0; i < maxBatchSize+10; i++ {
		id := fmt.Sprintf("user_%03d", i)
		profiles[id] = profile{ID: id, Username: fmt.Sprintf("u%03d", i)}
		ids = append(ids, id)
	}
	stub := newStubProvider(profiles)
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	authors, err := client.ResolveAuthors(context.Background(), ids)
	require.NoError(t, err)

	assert.Len(t, authors, maxBatchSize+10)
	require.Len(t, stub.requests, 2)
	assert.Len(t, stub.requests[0], maxBatchSize)
	assert.Len(t, stub.requests[1], 10)
}

func TestResolveAuthorsMissingProfile(t *testing.T) {
	stub := newStubProvider(map[string]profile{
		"user_a": {ID: "user_a", Username: "ann"},
	})
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	_, err := client.ResolveAuthors(context.Background(), []string{"user_a", "user_gone"})
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestResolveAuthorsEmptyUsername(t *testing.T) {
	stub := newStubProvider(map[string]profile{
		"user_a": {ID: "user_a", Username: ""},
	})
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	_, err := client.ResolveAuthors(context.Background(), []string{"user_a"})
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestResolveAuthorsUpstreamError(t *testing.T) {
	stub := newStubProvider(nil)
	stub.status = http.StatusInternalServerError
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	_, err := client.ResolveAuthors(context.Background(), []string{"user_a"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrProfileNotFound)
}

func TestResolveAuthorsNoIDs(t *testing.T) {
	stub := newStubProvider(nil)
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	authors, err := client.ResolveAuthors(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, authors)
	assert.Empty(t, stub.requests, "no upstream call for an empty id set")
}
