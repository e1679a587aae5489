package credential

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"asistencia/internal/metrics"
)

// Prober reports current reachability and the local network address. It is a
// pre-flight check; the fetch itself still carries its own timeout.
type Prober interface {
	Online(ctx context.Context) (addr string, ok bool)
}

// UDPProbe resolves reachability with an unconnected UDP socket. No packet is
// sent; hosts without a route fail the dial immediately.
type UDPProbe struct {
	Target string
}

// Online implements Prober.
func (p UDPProbe) Online(ctx context.Context) (string, bool) {
	target := p.Target
	if target == "" {
		target = "8.8.8.8:53"
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", target)
	if err != nil {
		return "", false
	}
	defer conn.Close()
	return conn.LocalAddr().String(), true
}

// Responses under this size are treated as blocked or empty.
const minBodyBytes = 200

const maxBodyBytes = 2 << 20

// The credential site serves a captcha interstitial to obvious bots, so the
// fetch presents a fixed set of browser-like headers.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Linux; Android 13) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "es-MX,es;q=0.9,en;q=0.8",
	"Cache-Control":   "no-cache",
	"Connection":      "keep-alive",
}

// Fetcher retrieves credential pages from the institutional endpoint.
type Fetcher struct {
	HTTP *http.Client
}

// NewFetcher creates a fetcher with the given request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{HTTP: &http.Client{Timeout: timeout}}
}

// Page performs a single GET and returns the response body. Any non-2xx
// status or a body under the minimum length fails with ErrFetchFailed.
func (f *Fetcher) Page(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := f.HTTP.Do(req)
	metrics.CredentialFetchSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: estado %s", ErrFetchFailed, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if len(body) < minBodyBytes {
		return "", fmt.Errorf("%w: respuesta bloqueada o vacía (%d bytes)", ErrFetchFailed, len(body))
	}
	return string(body), nil
}
