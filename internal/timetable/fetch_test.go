package timetable

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const fetchFixture = `{"modificationDate": "20250210", "periodicLessons": [], "blockLessons": []}`

func TestFetch_ConditionalRequests(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(fetchFixture))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())

	first, err := f.Fetch(context.Background(), srv.URL)
	assert.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, fetchFixture, string(first.Body))

	// The second request carries the stored ETag and reuses the cache.
	second, err := f.Fetch(context.Background(), srv.URL)
	assert.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, 2, hits)
}

func TestFetch_FallsBackToCacheOnNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(fetchFixture))
	}))

	f := NewFetcher(t.TempDir())

	first, err := f.Fetch(context.Background(), srv.URL)
	assert.NoError(t, err)
	assert.False(t, first.FromCache)

	srv.Close()

	res, err := f.Fetch(context.Background(), srv.URL)
	assert.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, first.Body, res.Body)
}

func TestFetch_FallsBackToCacheOnServerError(t *testing.T) {
	broken := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if broken {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(fetchFixture))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())

	_, err := f.Fetch(context.Background(), srv.URL)
	assert.NoError(t, err)

	broken = true
	res, err := f.Fetch(context.Background(), srv.URL)
	assert.NoError(t, err)
	assert.True(t, res.FromCache)
}

func TestFetch_ErrorsWithoutCache(t *testing.T) {
	f := NewFetcher(t.TempDir())

	// Nothing listens on port 1.
	_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/timetable.json")
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err = NewFetcher(t.TempDir()).Fetch(context.Background(), srv.URL)
	assert.Error(t, err)

	_, err = f.Fetch(context.Background(), "")
	assert.Error(t, err)
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("http://example.edu/export.json"))
	assert.True(t, IsRemote("https://example.edu/export.json"))
	assert.False(t, IsRemote("./timetable.json"))
	assert.False(t, IsRemote("/var/lib/uniscal/timetable.json"))
	assert.False(t, IsRemote(""))
}

func TestLoadSource_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timetable.json")
	assert.NoError(t, os.WriteFile(path, []byte(fetchFixture), 0o600))

	data, err := LoadSource(context.Background(), path, "")
	assert.NoError(t, err)
	assert.Equal(t, "20250210", data.ModificationDate)
}

func TestLoadSource_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(fetchFixture))
	}))
	defer srv.Close()

	data, err := LoadSource(context.Background(), srv.URL, t.TempDir())
	assert.NoError(t, err)
	assert.Equal(t, "20250210", data.ModificationDate)
}

func TestLoadSource_RemoteMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"modificationDate": `))
	}))
	defer srv.Close()

	data, err := LoadSource(context.Background(), srv.URL, t.TempDir())
	assert.Nil(t, data)
	assert.ErrorIs(t, err, ErrParse)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t,
		"https://example.edu/...(redacted)",
		redactURL("https://example.edu/api/student/12345/export?token=secret"),
	)
	assert.Equal(t, "...(redacted)", redactURL("not a url"))
}
