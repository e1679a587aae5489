// Package credential turns raw scanned QR payloads into normalized student
// identifiers, scraping the institutional credential page when the payload is
// a URL instead of a plain id.
package credential

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Profile holds the fields scraped from a credential page.
type Profile struct {
	Boleta     string `json:"boleta"`
	FullName   string `json:"full_name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Program    string `json:"program"`
	School     string `json:"school"`
	Hash       string `json:"hash,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`
}

// Scanned is the result of extracting one payload. Profile is nil when the
// payload was a plain identifier.
type Scanned struct {
	Raw         string
	FetchedFrom string
	Profile     *Profile
	Boleta      string
}

// Options configure the extractor for one institution.
type Options struct {
	// Endpoint is the canonical credential URL prefix; the page hash is
	// appended to it.
	Endpoint string
	// AllowedDomains are the hosts (or parent domains) credential URLs may
	// point at.
	AllowedDomains []string
	// InstitutionTag is appended to scraped school names that lack it.
	InstitutionTag string
}

// Extractor resolves scanned payloads.
type Extractor struct {
	opts  Options
	fetch *Fetcher
	probe Prober
	cache ProfileCache
}

// NewExtractor builds an extractor. probe and cache may be nil.
func NewExtractor(opts Options, fetch *Fetcher, probe Prober, cache ProfileCache) *Extractor {
	return &Extractor{opts: opts, fetch: fetch, probe: probe, cache: cache}
}

var boletaRe = regexp.MustCompile(`^\d{10}$`)

var digitRunRe = regexp.MustCompile(`\d+`)

// firstExactDigitRun returns the first run of exactly n digits in s.
func firstExactDigitRun(s string, n int) (string, bool) {
	for _, run := range digitRunRe.FindAllString(s, -1) {
		if len(run) == n {
			return run, true
		}
	}
	return "", false
}

// Extract resolves a raw decoded payload into a student identifier plus an
// optional scraped profile. It is a pure transform except for the single
// outbound fetch; no retries happen here.
func (e *Extractor) Extract(ctx context.Context, raw string) (*Scanned, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: lectura vacía", ErrInvalidCredential)
	}

	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		return e.extractRemote(ctx, raw, u)
	}

	boleta, ok := firstExactDigitRun(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%w: sin boleta de 10 dígitos", ErrInvalidCredential)
	}
	return &Scanned{Raw: raw, Boleta: boleta}, nil
}

func (e *Extractor) hostAllowed(host string) bool {
	host = strings.ToLower(host)
	if h, _, found := strings.Cut(host, ":"); found {
		host = h
	}
	for _, domain := range e.opts.AllowedDomains {
		domain = strings.ToLower(domain)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func (e *Extractor) extractRemote(ctx context.Context, raw string, u *url.URL) (*Scanned, error) {
	if u.Scheme != "https" || !e.hostAllowed(u.Host) {
		return nil, fmt.Errorf("%w: %s", ErrUntrustedSource, u.Host)
	}

	target := raw
	hash := u.Query().Get("h")
	if hash != "" {
		target = e.opts.Endpoint + hash
	}
	cacheKey := target

	var profile *Profile
	if e.cache != nil {
		if p, ok := e.cache.Get(ctx, cacheKey); ok {
			profile = p
		}
	}

	if profile == nil {
		if e.probe != nil {
			if _, online := e.probe.Online(ctx); !online {
				return nil, ErrNetworkUnavailable
			}
		}
		page, err := e.fetch.Page(ctx, target)
		if err != nil {
			return nil, err
		}
		profile, err = parsePage(page, e.opts.InstitutionTag)
		if err != nil {
			return nil, err
		}
		profile.Hash = hash
		profile.SourceURL = target
		if e.cache != nil {
			e.cache.Put(ctx, cacheKey, profile)
		}
	}

	// The visible plain-text id wins over the scraped one when the payload
	// carries both; the pipeline compares them to catch tampered codes.
	boleta := profile.Boleta
	if visible, ok := firstExactDigitRun(raw, 10); ok {
		boleta = visible
	}
	if !boletaRe.MatchString(boleta) {
		return nil, fmt.Errorf("%w: boleta %q fuera de formato", ErrInvalidCredential, boleta)
	}
	return &Scanned{Raw: raw, FetchedFrom: target, Profile: profile, Boleta: boleta}, nil
}
