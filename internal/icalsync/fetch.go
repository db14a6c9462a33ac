package icalsync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"jupiter/internal/domain"
)

// maxCalendarBytes bounds how much of a remote calendar is read.
const maxCalendarBytes = 16 << 20

// Fetcher downloads a remote calendar.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher retries transport errors and 5xx answers with exponential backoff.
// Any other non-200 answer fails at once.
type HTTPFetcher struct {
	Client          *http.Client
	Attempts        int
	Timeout         time.Duration
	InitialInterval time.Duration
}

func (f HTTPFetcher) newBackoff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	if f.InitialInterval > 0 {
		bo.InitialInterval = f.InitialInterval
	}
	attempts := f.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx)
}

func (f HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	var body []byte
	op := func() error {
		reqCtx := ctx
		if f.Timeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, f.Timeout)
			defer cancel()
		}
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: %v", domain.ErrExternalFetch, err))
		}
		req.Header.Set("Accept", "text/calendar")
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: GET %s: %v", domain.ErrExternalFetch, url, err)
		}
		defer resp.Body.Close()
		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: GET %s: status %d", domain.ErrExternalFetch, url, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("%w: GET %s: status %d", domain.ErrExternalFetch, url, resp.StatusCode))
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxCalendarBytes))
		if err != nil {
			return fmt.Errorf("%w: GET %s: %v", domain.ErrExternalFetch, url, err)
		}
		return nil
	}
	if err := backoff.Retry(op, f.newBackoff(ctx)); err != nil {
		return nil, err
	}
	return body, nil
}
