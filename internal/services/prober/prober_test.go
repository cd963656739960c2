package prober

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	config "github.com/NordCoder/streamcheck/internal/config/streamcheck"
	"github.com/NordCoder/streamcheck/internal/domain/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func testCfg() config.Probe {
	return config.Probe{
		Timeout:      2 * time.Second,
		UserAgent:    "streamcheck-test",
		MaxRedirects: 3,
		VerifyTLS:    true,
		Concurrency:  4,
		Attempts:     3,
		RetryBase:    time.Millisecond,
	}
}

func newStreamServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var flaky atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		_, _ = w.Write([]byte("#EXTM3U\n"))
	})
	mux.HandleFunc("/forbidden.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/notacceptable.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotAcceptable)
	})
	mux.HandleFunc("/flaky.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		if flaky.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/ratelimited", func(w http.ResponseWriter, _ *http.Request) {
		if flaky.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/down.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok.m3u8", http.StatusFound)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/referer-only", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Referer") != "https://tvpass.org" || r.Header.Get("User-Agent") != "VLC/3.0" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &flaky
}

func TestProber_Probe(t *testing.T) {
	srv, flaky := newStreamServer(t)
	p := New(zap.NewNop(), NewHTTPClient(testCfg()), testCfg())

	cases := []struct {
		name     string
		path     string
		headers  http.Header
		status   channel.Status
		code     int
		attempts int
	}{
		{name: "ok", path: "/ok.m3u8", status: channel.StatusWorking, code: 200, attempts: 1},
		{name: "forbidden is final", path: "/forbidden.m3u8", status: channel.StatusDead, code: 403, attempts: 1},
		{name: "not found", path: "/missing.m3u8", status: channel.StatusDead, code: 404, attempts: 1},
		{name: "not acceptable", path: "/notacceptable.m3u8", status: channel.StatusDead, code: 406, attempts: 1},
		{name: "5xx retried until success", path: "/flaky.m3u8", status: channel.StatusWorking, code: 200, attempts: 3},
		{name: "429 retried until success", path: "/ratelimited", status: channel.StatusWorking, code: 200, attempts: 3},
		{name: "5xx exhausted", path: "/down.m3u8", status: channel.StatusDead, code: 502, attempts: 3},
		{name: "redirect followed", path: "/moved", status: channel.StatusWorking, code: 200, attempts: 1},
		{name: "redirect loop", path: "/loop", status: channel.StatusDead, code: 302, attempts: 1},
		{
			name:     "player headers sent",
			path:     "/referer-only",
			headers:  http.Header{"Referer": {"https://tvpass.org"}, "User-Agent": {"VLC/3.0"}},
			status:   channel.StatusWorking,
			code:     200,
			attempts: 1,
		},
		{name: "player headers missing", path: "/referer-only", status: channel.StatusDead, code: 403, attempts: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			flaky.Store(0)
			res := p.Probe(context.Background(), channel.Channel{Name: tc.name, URL: srv.URL + tc.path, Headers: tc.headers})

			assert.Equal(t, tc.status, res.Status)
			assert.Equal(t, tc.code, res.Code)
			assert.Equal(t, tc.attempts, res.Attempts)
			assert.False(t, res.CheckedAt.IsZero())
		})
	}
}

func TestProber_Probe_NetworkFailures(t *testing.T) {
	srv, _ := newStreamServer(t)

	cfg := testCfg()
	cfg.Timeout = 100 * time.Millisecond
	cfg.Attempts = 2
	p := New(zap.NewNop(), NewHTTPClient(cfg), cfg)

	t.Run("timeout", func(t *testing.T) {
		res := p.Probe(context.Background(), channel.Channel{Name: "slow", URL: srv.URL + "/slow"})
		assert.Equal(t, channel.StatusDead, res.Status)
		assert.Equal(t, 0, res.Code)
		assert.Equal(t, channel.ReasonTimeout, res.Reason)
		assert.Equal(t, 2, res.Attempts)
		assert.Equal(t, "Timeout (N/A)", res.ErrorLabel())
	})

	t.Run("connection refused", func(t *testing.T) {
		closed := httptest.NewServer(http.NotFoundHandler())
		addr := closed.URL
		closed.Close()

		res := p.Probe(context.Background(), channel.Channel{Name: "gone", URL: addr + "/x.m3u8"})
		assert.Equal(t, channel.StatusDead, res.Status)
		assert.Equal(t, channel.ReasonConnection, res.Reason)
	})

	t.Run("unsupported scheme is final", func(t *testing.T) {
		res := p.Probe(context.Background(), channel.Channel{Name: "rtmp", URL: "rtmp://example.com/live"})
		assert.Equal(t, channel.StatusDead, res.Status)
		assert.Equal(t, channel.ReasonBadURL, res.Reason)
		assert.Equal(t, 1, res.Attempts)
	})

	t.Run("bad url", func(t *testing.T) {
		res := p.Probe(context.Background(), channel.Channel{Name: "empty", URL: "  "})
		assert.Equal(t, channel.StatusDead, res.Status)
		assert.Equal(t, channel.ReasonBadURL, res.Reason)
		assert.Equal(t, 0, res.Attempts)
	})
}

func TestProber_ProbeAll(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/dead" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	transport := &http.Transport{}
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport, Timeout: time.Second}

	p := New(zap.NewNop(), client, testCfg())

	var chs []channel.Channel
	for i := 0; i < 20; i++ {
		path := "/live"
		if i%4 == 0 {
			path = "/dead"
		}
		chs = append(chs, channel.Channel{Name: string(rune('A' + i)), URL: srv.URL + path})
	}

	results := p.ProbeAll(context.Background(), chs)
	require.Len(t, results, len(chs))

	dead := 0
	for i, r := range results {
		assert.Equal(t, chs[i].Name, r.Channel.Name, "order must be kept")
		if !r.Working() {
			dead++
			assert.Equal(t, 404, r.Code)
		}
	}
	assert.Equal(t, 5, dead)
	assert.Equal(t, int32(20), hits.Load())
}

func TestProber_ProbeAll_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(zap.NewNop(), http.DefaultClient, testCfg())
	results := p.ProbeAll(ctx, []channel.Channel{{Name: "a", URL: "http://127.0.0.1:1/a"}, {Name: "b", URL: "http://127.0.0.1:1/b"}})

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, channel.StatusDead, r.Status)
		assert.Equal(t, channel.ReasonCanceled, r.Reason)
		assert.Equal(t, 0, r.Attempts)
	}
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "http://example.com/a.m3u8", normalizeURL(" example.com/a.m3u8 "))
	assert.Equal(t, "https://example.com", normalizeURL("https://example.com"))
	assert.Equal(t, "rtmp://example.com/live", normalizeURL("rtmp://example.com/live"))
	assert.Equal(t, "", normalizeURL(""))
}
