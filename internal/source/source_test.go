package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileFetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte("ID,Tags\n"), 0o644))

	rc, err := LocalFile{Path: path}.Fetch(context.Background())
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "ID,Tags\n", string(data))
}

func TestLocalFileFetchMissing(t *testing.T) {
	_, err := LocalFile{Path: filepath.Join(t.TempDir(), "nope.csv")}.Fetch(context.Background())
	assert.Error(t, err)
}

func TestHTTPSourceRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ID,Tags\n100,Sale\n"))
	}))
	defer srv.Close()

	s := NewHTTPSource(srv.URL, 5*time.Second, zap.NewNop())
	rc, err := s.Fetch(context.Background())
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "ID,Tags\n100,Sale\n", string(data))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPSourceGivesUpAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewHTTPSource(srv.URL, 5*time.Second, zap.NewNop())
	_, err := s.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}

func TestHTTPSourceFailsWithoutFinalBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewHTTPSource(srv.URL, 5*time.Second, zap.NewNop())

	// Three attempts sleep 100ms and 250ms between them; sleeping again
	// after the last failure would only delay the fatal error.
	start := time.Now()
	_, err := s.Fetch(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 700*time.Millisecond)
}

func TestHTTPSourceHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewHTTPSource(srv.URL, 5*time.Second, zap.NewNop())
	_, err := s.Fetch(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
