// Package fetch downloads web pages and decodes their bodies to UTF-8.
//
// The character set is taken from the Content-Type header when present and
// otherwise sniffed from BOMs and <meta> tags, the way browsers do. Transient
// failures are retried with backoff and a circuit breaker stops hammering a
// failing upstream.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/termlens/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/resilience"
)

// Error describes a failed fetch. It always unwraps to
// apperrors.ErrFetchFailed so callers can classify it without inspecting
// the cause.
type Error struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{apperrors.ErrFetchFailed}
	}
	return []error{apperrors.ErrFetchFailed, e.Err}
}

// Temporary reports whether retrying the request might succeed.
func (e *Error) Temporary() bool {
	if e.StatusCode != 0 {
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	}
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, apperrors.ErrUnsupportedContent) ||
		errors.Is(e.Err, apperrors.ErrInvalidInput) {
		return false
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) {
		return true
	}
	return errors.Is(e.Err, io.ErrUnexpectedEOF) || errors.Is(e.Err, context.DeadlineExceeded)
}

// Page is a fetched document decoded to UTF-8.
type Page struct {
	URL         string `json:"url"`
	FinalURL    string `json:"final_url"`
	ContentType string `json:"content_type"`
	Charset     string `json:"charset"`
	Body        string `json:"body"`
}

// IsHTML reports whether the page should be passed through markup stripping.
func (p *Page) IsHTML() bool {
	return p.ContentType == "" || strings.Contains(p.ContentType, "html") || strings.Contains(p.ContentType, "xml")
}

// Fetcher downloads pages over HTTP.
type Fetcher struct {
	client   *http.Client
	cfg      config.FetchConfig
	breaker  *resilience.CircuitBreaker
	logger   *slog.Logger
	retryCfg resilience.RetryConfig
}

// New creates a Fetcher. breaker may be nil to disable circuit breaking.
func New(cfg config.FetchConfig, breaker *resilience.CircuitBreaker) *Fetcher {
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 10
	}
	client := &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return NewWithClient(cfg, client, breaker)
}

// NewWithClient is like New but uses the given HTTP client.
func NewWithClient(cfg config.FetchConfig, client *http.Client, breaker *resilience.CircuitBreaker) *Fetcher {
	return &Fetcher{
		client:  client,
		cfg:     cfg,
		breaker: breaker,
		logger:  slog.Default().With("component", "fetcher"),
		retryCfg: resilience.RetryConfig{
			MaxAttempts:  cfg.RetryAttempts,
			InitialDelay: cfg.RetryDelay,
			MaxDelay:     5 * time.Second,
			ShouldRetry: func(err error) bool {
				var fe *Error
				return errors.As(err, &fe) && fe.Temporary()
			},
		},
	}
}

// ValidateURL checks that raw is an absolute http or https URL.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "url must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "url has no host")
	}
	return u, nil
}

// Fetch downloads rawURL, retrying transient failures. Any failure is
// returned as *Error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}
	target := u.String()

	var page *Page
	attempt := func() error {
		p, err := f.fetchOnce(ctx, target)
		if err != nil {
			return err
		}
		page = p
		return nil
	}
	err = resilience.Retry(ctx, "fetch "+u.Host, f.retryCfg, func() error {
		if f.breaker == nil {
			return attempt()
		}
		return f.breaker.Execute(attempt)
	})
	if err != nil {
		var fe *Error
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &Error{URL: target, Err: err}
	}
	f.logger.Debug("page fetched",
		"url", target,
		"final_url", page.FinalURL,
		"charset", page.Charset,
		"bytes", len(page.Body),
	)
	return page, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, target string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{URL: target, Err: err}
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &Error{URL: target, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !isTextual(mediaType) {
		return nil, &Error{URL: target, Err: fmt.Errorf("%w: %s", apperrors.ErrUnsupportedContent, mediaType)}
	}

	limit := f.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, &Error{URL: target, Err: fmt.Errorf("reading body: %w", err)}
	}

	body, name, err := Decode(raw, contentType)
	if err != nil {
		return nil, &Error{URL: target, Err: err}
	}
	return &Page{
		URL:         target,
		FinalURL:    resp.Request.URL.String(),
		ContentType: mediaType,
		Charset:     name,
		Body:        body,
	}, nil
}

// Decode converts raw to UTF-8. The encoding is chosen from contentType,
// a BOM, or a <meta charset> declaration, falling back to windows-1252 the
// way browsers do. It returns the decoded text and the encoding name.
func Decode(raw []byte, contentType string) (string, string, error) {
	_, name, _ := charset.DetermineEncoding(raw, contentType)
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return "", "", fmt.Errorf("decoding %s body: %w", name, err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", "", fmt.Errorf("decoding %s body: %w", name, err)
	}
	return string(decoded), name, nil
}

func isTextual(mediaType string) bool {
	switch {
	case mediaType == "":
		return true
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case mediaType == "application/xhtml+xml", mediaType == "application/xml":
		return true
	default:
		return false
	}
}
