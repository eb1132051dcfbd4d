// Package fetch implements a plain-HTTP page retriever for vendors whose
// pages render server-side. It shares the PageRetriever contract with the
// browser retriever and exists so deployments without a Chromium runtime
// can still synchronize rule-compatible vendors.
package fetch

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"github.com/partpicker/pricesync/internal/domain"
)

const maxBodyBytes = 4 << 20 // vendor product pages are small; cap defensively

// Retriever fetches vendor pages over plain HTTP with gzip and charset
// handling. Safe for concurrent use.
type Retriever struct {
	client  *http.Client
	timeout time.Duration
}

// NewRetriever creates an HTTP retriever with the given per-fetch timeout.
func NewRetriever(timeout time.Duration) *Retriever {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Retriever{
		client:  &http.Client{Transport: transport, Timeout: timeout},
		timeout: timeout,
	}
}

// Fetch downloads one vendor page under the given identity.
func (r *Retriever) Fetch(ctx context.Context, rawURL string, identity domain.Identity) (*domain.RenderedPage, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidURL, rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	if identity.UserAgent != "" {
		req.Header.Set("User-Agent", identity.UserAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrFetchTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: http status %d", domain.ErrNavigationBlocked, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: http status %d", domain.ErrNetwork, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrFetchTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}

	html, err := decodeToUTF8(data, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}

	return &domain.RenderedPage{
		URL:       resp.Request.URL.String(),
		HTML:      html,
		FetchedAt: time.Now(),
		Elapsed:   time.Since(start),
	}, nil
}

func decodeToUTF8(data []byte, contentType string) (string, error) {
	enc, _, _ := charset.DetermineEncoding(data, contentType)
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		if utf8.Valid(data) {
			return string(data), nil
		}
		return "", err
	}
	return string(decoded), nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
