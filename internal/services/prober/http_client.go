package prober

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	config "github.com/NordCoder/streamcheck/internal/config/streamcheck"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewHTTPClient builds the client shared by probes and playlist downloads.
func NewHTTPClient(cfg config.Probe) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.Concurrency,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.VerifyTLS,
			MinVersion:         tls.VersionTLS12,
		},
	}

	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(transport),
	}

	maxRedirects := cfg.MaxRedirects
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return http.ErrUseLastResponse
		}
		// carry player headers across hops
		if len(via) > 0 {
			for _, k := range []string{"User-Agent", "Referer", "Origin"} {
				if v := via[0].Header.Get(k); v != "" && req.Header.Get(k) == "" {
					req.Header.Set(k, v)
				}
			}
		}
		return nil
	}
	return client
}
