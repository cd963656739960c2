// Package prober checks IPTV stream URLs over HTTP and classifies them as
// working or dead.
package prober

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	config "github.com/NordCoder/streamcheck/internal/config/streamcheck"
	"github.com/NordCoder/streamcheck/internal/domain/channel"
	"github.com/NordCoder/streamcheck/internal/obs"
	"github.com/NordCoder/streamcheck/internal/obs/retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Prober struct {
	log         *zap.Logger
	client      Doer
	userAgent   string
	concurrency int
	policy      retry.Policy
	now         func() time.Time
}

func New(log *zap.Logger, client Doer, cfg config.Probe) *Prober {
	conc := cfg.Concurrency
	if conc <= 0 {
		conc = 1
	}
	return &Prober{
		log:         obs.Component(log, "prober"),
		client:      client,
		userAgent:   cfg.UserAgent,
		concurrency: conc,
		policy:      retry.ProbePolicy(cfg.Attempts, cfg.RetryBase),
		now:         time.Now,
	}
}

// statusError carries a non-final HTTP status through retry.Do.
type statusError struct{ code int }

func (e statusError) Error() string { return "http status " + strconv.Itoa(e.code) }

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Probe checks a single channel. It never fails: every problem is folded into
// a dead result.
func (p *Prober) Probe(ctx context.Context, ch channel.Channel) channel.Result {
	ctx, span := otel.Tracer("prober").Start(ctx, "prober.probe",
		trace.WithAttributes(attribute.String("channel.name", ch.Name)),
	)
	defer span.End()

	mInFlight.Inc()
	defer mInFlight.Dec()

	start := p.now()
	res := channel.Result{Channel: ch, CheckedAt: start.UTC()}

	target := normalizeURL(ch.URL)
	if u, err := url.Parse(target); err != nil || u.Host == "" {
		res.Status, res.Reason = channel.StatusDead, channel.ReasonBadURL
		p.finish(span, &res, start)
		return res
	}

	var (
		code    int
		lastErr error
	)
	_ = retry.Do(ctx, func() error {
		res.Attempts++
		if res.Attempts > 1 {
			mRetries.Inc()
		}
		code, lastErr = p.once(ctx, target, ch.Headers)
		switch {
		case lastErr != nil && ctx.Err() != nil:
			return retry.Permanent(lastErr)
		case lastErr != nil:
			return lastErr
		case retryableStatus(code):
			return statusError{code: code}
		case code >= 200 && code < 300:
			return nil
		default:
			return retry.Permanent(statusError{code: code})
		}
	}, p.policy)

	res.Code = code
	switch {
	case lastErr == nil && code >= 200 && code < 300:
		res.Status = channel.StatusWorking
	case lastErr == nil && code > 0:
		res.Status = channel.StatusDead
	default:
		res.Status, res.Code = channel.StatusDead, 0
		res.Reason = reasonFor(ctx, lastErr)
	}

	if !res.Working() {
		obs.WithTrace(ctx, p.log).Debug("stream dead",
			zap.String("channel", ch.Name),
			zap.String("url", ch.URL),
			zap.Int("code", res.Code),
			zap.Int("attempts", res.Attempts),
			zap.Error(lastErr),
		)
	}
	p.finish(span, &res, start)
	return res
}

func (p *Prober) finish(span trace.Span, res *channel.Result, start time.Time) {
	res.Latency = p.now().Sub(start)

	mProbes.Inc()
	mLatency.Observe(res.Latency.Seconds())
	mResults.WithLabelValues(string(res.Status), strconv.Itoa(res.Code)).Inc()

	span.SetAttributes(
		attribute.String("probe.status", string(res.Status)),
		attribute.Int("probe.code", res.Code),
		attribute.Int("probe.attempts", res.Attempts),
	)
	if !res.Working() {
		span.SetStatus(codes.Error, res.ErrorLabel())
	}
}

// ProbeAll checks channels with bounded concurrency. Results keep the input
// order. Channels not started before ctx is done are reported as canceled.
func (p *Prober) ProbeAll(ctx context.Context, chs []channel.Channel) []channel.Result {
	results := make([]channel.Result, len(chs))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, ch := range chs {
		if ctx.Err() != nil {
			results[i] = channel.Result{
				Channel:   ch,
				Status:    channel.StatusDead,
				Reason:    channel.ReasonCanceled,
				CheckedAt: p.now().UTC(),
			}
			continue
		}
		g.Go(func() error {
			results[i] = p.Probe(ctx, ch)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Prober) once(ctx context.Context, target string, headers http.Header) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	for k, vs := range headers {
		for i, v := range vs {
			if i == 0 {
				req.Header.Set(k, v)
			} else {
				req.Header.Add(k, v)
			}
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if unsupportedScheme(err) {
			return 0, retry.Permanent(err)
		}
		return 0, err
	}
	// live streams never end; the status line is all we need
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func reasonFor(ctx context.Context, err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return channel.ReasonCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return channel.ReasonTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return channel.ReasonTimeout
	}
	if unsupportedScheme(err) {
		return channel.ReasonBadURL
	}
	return channel.ReasonConnection
}

// unsupportedScheme reports an rtmp:// style URL the HTTP client cannot fetch.
func unsupportedScheme(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue) && ue.Err != nil && strings.Contains(ue.Err.Error(), "unsupported protocol scheme")
}

func normalizeURL(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return t
	}
	if strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://") || strings.Contains(t, "://") {
		return t
	}
	return "http://" + t
}
