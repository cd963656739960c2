package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const basePlaylist = `#EXTM3U url-tvg="http://epg/TV.xml"
#EXTINF:-1 tvg-chno="1" group-title="News",CNN
#EXTVLCOPT:http-referrer=https://cnn.example/
http://streams/cnn.m3u8
#EXTINF:-1 tvg-chno="2" group-title="Sports",ESPN
http://streams/espn.m3u8
`

const eventsPlaylist = `#EXTM3U
#EXTINF:-1 group-title="Live Events",ESPN
http://events/espn-dup.m3u8
#EXTINF:-1 group-title="Live Events",UFC 300
http://events/ufc.m3u8
`

func newLoader(t *testing.T, fs afero.Fs) *Loader {
	t.Helper()
	if fs == nil {
		fs = afero.NewMemMapFs()
	}
	l := NewLoader(zap.NewNop(), http.DefaultClient, fs, "test-agent")
	l.policy.Backoff = nil
	l.policy.Attempts = 2
	return l
}

func TestLoader_LoadAll(t *testing.T) {
	var flaky atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.UserAgent())
		switch r.URL.Path {
		case "/base.m3u8":
			_, _ = w.Write([]byte(basePlaylist))
		case "/flaky.m3u8":
			if flaky.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte("#EXTM3U\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/events.m3u8", []byte(eventsPlaylist), 0o644))

	l := newLoader(t, fs)
	chs, err := l.LoadAll(context.Background(), []Source{
		{Name: "base", Location: srv.URL + "/base.m3u8"},
		{Name: "events", Location: "/data/events.m3u8"},
		{Name: "missing", Location: srv.URL + "/missing.m3u8"},
		{Name: "flaky", Location: srv.URL + "/flaky.m3u8"},
	})
	require.NoError(t, err)
	require.Len(t, chs, 3)

	assert.Equal(t, "CNN", chs[0].Name)
	assert.Equal(t, "News", chs[0].Group)
	assert.Equal(t, "base", chs[0].Source)
	assert.Equal(t, "https://cnn.example/", chs[0].Headers.Get("Referer"))

	assert.Equal(t, "ESPN", chs[1].Name)
	assert.Equal(t, "http://streams/espn.m3u8", chs[1].URL, "first occurrence wins")

	assert.Equal(t, "UFC 300", chs[2].Name)
	assert.Equal(t, "events", chs[2].Source)
	assert.EqualValues(t, 2, flaky.Load(), "502 is retried")
}

func TestLoader_Fetch_NotFoundIsFinal(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newLoader(t, nil).Fetch(context.Background(), Source{Name: "x", Location: srv.URL})
	assert.ErrorIs(t, err, ErrSourceStatus)
	assert.EqualValues(t, 1, hits.Load())
}

func TestLoader_Fetch_RetriesTransientStatus(t *testing.T) {
	for _, code := range []int{http.StatusServiceUnavailable, http.StatusTooManyRequests} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if hits.Add(1) == 1 {
					w.WriteHeader(code)
					return
				}
				_, _ = w.Write([]byte(basePlaylist))
			}))
			defer srv.Close()

			b, err := newLoader(t, nil).Fetch(context.Background(), Source{Name: "x", Location: srv.URL})
			require.NoError(t, err)
			assert.Equal(t, basePlaylist, string(b))
			assert.EqualValues(t, 2, hits.Load())
		})
	}
}

func TestLoader_Fetch_TransientStatusExhausted(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newLoader(t, nil).Fetch(context.Background(), Source{Name: "x", Location: srv.URL})
	assert.ErrorIs(t, err, ErrSourceStatus)
	assert.EqualValues(t, 2, hits.Load())
}

func TestLoader_LoadAll_AllFail(t *testing.T) {
	_, err := newLoader(t, nil).LoadAll(context.Background(), []Source{
		{Name: "a", Location: "/nope/a.m3u8"},
		{Name: "b", Location: "/nope/b.m3u8"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source a")
	assert.Contains(t, err.Error(), "source b")
}

func TestLoader_LoadAll_Empty(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/empty.m3u8", []byte("#EXTM3U\n"), 0o644))

	_, err := newLoader(t, fs).LoadAll(context.Background(), []Source{{Name: "e", Location: "/empty.m3u8"}})
	assert.ErrorIs(t, err, ErrNoChannels)
}
