// Package source downloads or reads M3U8 playlists and turns them into channels.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/NordCoder/streamcheck/internal/domain/channel"
	"github.com/NordCoder/streamcheck/internal/obs"
	"github.com/NordCoder/streamcheck/internal/obs/retry"
	"github.com/NordCoder/streamcheck/internal/playlist"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	ErrSourceStatus = errors.New("unexpected playlist status")
	ErrNoChannels   = errors.New("no channels loaded")
)

const maxPlaylistSize = 32 << 20

type Source struct {
	Name     string
	Location string
}

func (s Source) remote() bool {
	l := strings.ToLower(s.Location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

type Loader struct {
	log       *zap.Logger
	client    Doer
	fs        afero.Fs
	userAgent string
	policy    retry.Policy
}

func NewLoader(log *zap.Logger, client Doer, fs afero.Fs, userAgent string) *Loader {
	return &Loader{
		log:       obs.Component(log, "source"),
		client:    client,
		fs:        fs,
		userAgent: userAgent,
		policy: retry.Policy{
			Name:     "source_fetch",
			Attempts: 3,
			Backoff:  retry.ExpoJitter{Base: 500 * time.Millisecond, Max: 5 * time.Second, Jitter: 0.2},
		},
	}
}

// Fetch returns the raw playlist bytes behind src.
func (l *Loader) Fetch(ctx context.Context, src Source) ([]byte, error) {
	if !src.remote() {
		b, err := afero.ReadFile(l.fs, src.Location)
		if err != nil {
			return nil, fmt.Errorf("read playlist %s: %w", src.Location, err)
		}
		return b, nil
	}

	var body []byte
	err := retry.Do(ctx, func() error {
		b, err := l.get(ctx, src.Location)
		if err != nil {
			return err
		}
		body = b
		return nil
	}, l.policy)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (l *Loader) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request %s: %w", url, err))
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("%w: %s returned %d", ErrSourceStatus, url, resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, err
		}
		return nil, retry.Permanent(err)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return b, nil
}

// Load fetches and parses one playlist.
func (l *Loader) Load(ctx context.Context, src Source) (*playlist.Playlist, error) {
	b, err := l.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	p, err := playlist.Parse(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("parse playlist %s: %w", src.Name, err)
	}
	return p, nil
}

// LoadAll loads every source and flattens them into channels unique by name.
// Failing sources are skipped; an error is returned only when none loaded.
func (l *Loader) LoadAll(ctx context.Context, sources []Source) ([]channel.Channel, error) {
	ctx, span := otel.Tracer("source").Start(ctx, "source.load_all")
	defer span.End()

	var (
		out    []channel.Channel
		seen   = make(map[string]string)
		failed []error
	)
	for _, src := range sources {
		p, err := l.Load(ctx, src)
		if err != nil {
			span.RecordError(err)
			obs.WithTrace(ctx, l.log).Warn("playlist source failed",
				zap.String("source", src.Name), zap.String("location", src.Location), zap.Error(err))
			failed = append(failed, fmt.Errorf("source %s: %w", src.Name, err))
			continue
		}
		added := 0
		for _, e := range p.Entries {
			name := strings.TrimSpace(e.Name)
			if name == "" || strings.TrimSpace(e.URL) == "" {
				continue
			}
			if from, dup := seen[name]; dup {
				l.log.Debug("duplicate channel skipped",
					zap.String("channel", name), zap.String("source", src.Name), zap.String("first_source", from))
				continue
			}
			seen[name] = src.Name
			out = append(out, channel.Channel{
				Name:    name,
				URL:     strings.TrimSpace(e.URL),
				Group:   e.Group(),
				Source:  src.Name,
				Headers: e.Headers(),
			})
			added++
		}
		l.log.Info("playlist loaded", zap.String("source", src.Name), zap.Int("entries", len(p.Entries)), zap.Int("added", added))
	}

	span.SetAttributes(attribute.Int("channels", len(out)), attribute.Int("sources.failed", len(failed)))
	if len(failed) == len(sources) && len(sources) > 0 {
		return nil, errors.Join(failed...)
	}
	if len(out) == 0 {
		return nil, ErrNoChannels
	}
	return out, nil
}
