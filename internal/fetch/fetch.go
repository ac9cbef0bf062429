package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// ErrDownload marks a source clip that could not be retrieved.
var ErrDownload = errors.New("download failed")

// Fetcher streams remote clips to local paths. Response bodies go straight
// to disk, never into memory. Each download is a single attempt.
type Fetcher struct {
	logger zerolog.Logger
	client *resty.Client
}

// New creates a fetcher with the given per-download timeout. A zero
// timeout means no limit.
func New(logger zerolog.Logger, timeout time.Duration) *Fetcher {
	return &Fetcher{
		logger: logger.With().Str("component", "fetch").Logger(),
		client: resty.New().SetTimeout(timeout),
	}
}

// Fetch downloads url into dest. Any failure, transport or HTTP status,
// wraps ErrDownload. A partial file may remain at dest; the surrounding
// workspace sweeps it up.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) error {
	if url == "" {
		return fmt.Errorf("%w: no source url", ErrDownload)
	}

	f.logger.Info().Str("url", url).Str("dest", dest).Msg("downloading source clip")
	start := time.Now()

	resp, err := f.client.R().
		SetContext(ctx).
		SetOutput(dest).
		Get(url)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: %s returned %s", ErrDownload, url, resp.Status())
	}

	f.logger.Info().
		Str("dest", dest).
		Int64("bytes", resp.Size()).
		Dur("elapsed", time.Since(start)).
		Msg("download complete")
	return nil
}
