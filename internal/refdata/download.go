package refdata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/starford/taxonid/internal/checksum"
	"github.com/starford/taxonid/internal/storage"
)

const maxRetries = 3

// HTTPError represents a non-2xx download response.
type HTTPError struct {
	URL        string
	StatusCode int
	retryAfter string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

// DownloadIfMissing fetches rawURL into dir unless a file of the same base
// name is already there. force re-downloads regardless. It returns the local path.
func (p *Preparer) DownloadIfMissing(ctx context.Context, rawURL, dir string, force bool) (string, error) {
	name, err := fileName(rawURL)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(dir, name)

	_, statErr := os.Stat(dest)
	switch {
	case statErr == nil && !force:
		p.logger.Debug("refdata: file present", slog.String("path", dest))
		return dest, nil
	case statErr == nil:
		p.logger.Warn("refdata: re-downloading file", slog.String("file", name))
	default:
		p.logger.Warn("refdata: file does not exist, will try to download", slog.String("file", name))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("refdata: mkdir %s: %w", dir, err)
	}
	if err := p.download(ctx, rawURL, dir, name); err != nil {
		return "", err
	}
	p.logger.Info("refdata: downloaded", slog.String("url", rawURL), slog.String("path", dest))
	return dest, nil
}

func fileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("refdata: parse url %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("refdata: url %q has no file name", rawURL)
	}
	return name, nil
}

// download streams rawURL into dir/name. Retries on 429 (with Retry-After)
// and 5xx with exponential backoff. Max 3 retries.
func (p *Preparer) download(ctx context.Context, rawURL, dir, name string) error {
	fsys, err := storage.NewFS(dir)
	if err != nil {
		return fmt.Errorf("refdata: %w", err)
	}

	var lastErr *HTTPError
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := p.backoffDelay(attempt, lastErr)
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("refdata: build request: %w", err)
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("refdata: GET %s: %w", rawURL, err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			body := checksum.NewReader(resp.Body)
			err := fsys.WriteFrom(name, body, 0o644)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("refdata: save %s: %w", name, err)
			}
			p.logger.Info("refdata: saved",
				slog.String("file", name),
				slog.Int64("bytes", body.Size()),
				slog.String("sha256", body.Sum()))
			return nil
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		httpErr := &HTTPError{URL: rawURL, StatusCode: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests {
			httpErr.retryAfter = resp.Header.Get("Retry-After")
			lastErr = httpErr
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = httpErr
			continue
		}
		return httpErr
	}
	return lastErr
}

// backoffDelay returns the wait duration before a retry attempt.
func (p *Preparer) backoffDelay(attempt int, lastErr *HTTPError) time.Duration {
	if lastErr != nil && lastErr.StatusCode == http.StatusTooManyRequests && lastErr.retryAfter != "" {
		if secs, err := strconv.Atoi(lastErr.retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return p.backoff << (attempt - 1)
}
