package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"

	"sjsage522/pricemonitor/helpers"
	"sjsage522/pricemonitor/logger"
	perrors "sjsage522/pricemonitor/pkg/errors"
)

const (
	defaultWarmupTimeout = 10 * time.Second
	defaultPageTimeout   = 15 * time.Second
	defaultCaptchaMarker = "captcha"

	// maxBodyBytes caps how much of a page is read; the rest is discarded
	maxBodyBytes = 4 << 20
)

// Pacing is the part of the pacer the fetch client waits on
type Pacing interface {
	SettleAfterWarmup()
	DelayBeforeFetch()
}

// ClientOptions configures a Client
type ClientOptions struct {
	// WarmupURL overrides the entry page; empty means the target's site root
	WarmupURL string
	// SessionCookies are planted for every host before its first request
	SessionCookies map[string]string

	WarmupTimeout time.Duration
	PageTimeout   time.Duration
	CaptchaMarker string

	// DebugResponseFile receives the last target body when set
	DebugResponseFile string

	Transport http.RoundTripper
}

// Client fetches product pages through one cookie session for the process lifetime
type Client struct {
	warmup  *http.Client
	page    *http.Client
	jar     http.CookieJar
	headers *helpers.HeaderRandomizer
	pacing  Pacing
	opts    ClientOptions
	log     *logger.Logger

	seedMu sync.Mutex
	seeded map[string]bool
}

// NewClient creates a fetch client. Both request kinds share the cookie jar and transport.
func NewClient(headers *helpers.HeaderRandomizer, pacing Pacing, opts ClientOptions) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	if opts.WarmupTimeout <= 0 {
		opts.WarmupTimeout = defaultWarmupTimeout
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = defaultPageTimeout
	}
	if opts.CaptchaMarker == "" {
		opts.CaptchaMarker = defaultCaptchaMarker
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		warmup:  &http.Client{Jar: jar, Transport: transport, Timeout: opts.WarmupTimeout},
		page:    &http.Client{Jar: jar, Transport: transport, Timeout: opts.PageTimeout},
		jar:     jar,
		headers: headers,
		pacing:  pacing,
		opts:    opts,
		log:     logger.ForFetcher(),
		seeded:  make(map[string]bool),
	}, nil
}

// Cookies returns the session cookies the jar would send to target
func (c *Client) Cookies(target string) []*http.Cookie {
	u, err := url.Parse(target)
	if err != nil {
		return nil
	}
	return c.jar.Cookies(u)
}

// seedCookies plants the configured cookies once per host
func (c *Client) seedCookies(u *url.URL) {
	if len(c.opts.SessionCookies) == 0 {
		return
	}

	c.seedMu.Lock()
	defer c.seedMu.Unlock()
	if c.seeded[u.Host] {
		return
	}

	cookies := make([]*http.Cookie, 0, len(c.opts.SessionCookies))
	for name, value := range c.opts.SessionCookies {
		cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	c.jar.SetCookies(&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}, cookies)
	c.seeded[u.Host] = true
}

// warmUp visits the entry page to collect cookies. It never fails the fetch.
func (c *Client) warmUp(ctx context.Context, target string) bool {
	entry := c.opts.WarmupURL
	if entry == "" {
		root, err := helpers.SiteRoot(target)
		if err != nil {
			c.log.Warn().Err(err).Str("url", target).Msg("Failed to derive warm-up URL")
			return false
		}
		entry = root
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry, nil)
	if err != nil {
		c.log.Warn().Err(err).Str("warmup_url", entry).Msg("Failed to create warm-up request")
		return false
	}
	req.Header = c.headers.NextHeaders()

	resp, err := c.warmup.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("warmup_url", entry).Msg("Failed to visit homepage")
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	c.log.Debug().Str("warmup_url", entry).Int("status", resp.StatusCode).Msg("Visited homepage")
	return true
}

// Fetch warms up the session, waits, then retrieves and classifies target
func (c *Client) Fetch(ctx context.Context, target string) (*RawDocument, error) {
	targetURL, err := url.Parse(target)
	if err != nil || targetURL.Host == "" {
		return nil, perrors.NewNetwork(target, "invalid URL", err)
	}
	c.seedCookies(targetURL)

	if c.warmUp(ctx, target) {
		c.pacing.SettleAfterWarmup()
	}
	c.pacing.DelayBeforeFetch()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, perrors.NewNetwork(target, "failed to create request", err)
	}
	req.Header = c.headers.NextHeaders()

	resp, err := c.page.Do(req)
	if err != nil {
		return nil, perrors.NewNetwork(target, "failed to fetch URL", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, perrors.NewBlocked(target)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, perrors.NewHTTP(target, resp.StatusCode)
	}

	body, err := readUTF8(resp)
	if err != nil {
		return nil, perrors.NewNetwork(target, "failed to read response body", err)
	}

	c.dumpDebug(body)

	if strings.Contains(strings.ToLower(body), c.opts.CaptchaMarker) {
		return nil, perrors.NewBotChallenge(target)
	}

	return &RawDocument{
		URL:      target,
		FinalURL: resp.Request.URL.String(),
		Status:   resp.StatusCode,
		Body:     body,
	}, nil
}

// dumpDebug keeps the last fetched page on disk for offline inspection
func (c *Client) dumpDebug(body string) {
	if c.opts.DebugResponseFile == "" {
		return
	}
	if err := os.WriteFile(c.opts.DebugResponseFile, []byte(body), 0644); err != nil {
		c.log.Warn().Err(err).Str("file", c.opts.DebugResponseFile).Msg("Failed to write debug response")
	}
}

// readUTF8 reads at most maxBodyBytes of the body and converts it to UTF-8 if the page declares another charset
func readUTF8(resp *http.Response) (string, error) {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}

	encoding, name, _ := charset.DetermineEncoding(bodyBytes, resp.Header.Get("Content-Type"))
	if strings.EqualFold(name, "utf-8") {
		return string(bodyBytes), nil
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, encoding.NewDecoder().Reader(bytes.NewReader(bodyBytes))); err != nil {
		return "", fmt.Errorf("failed to convert body to UTF-8: %w", err)
	}
	return buf.String(), nil
}
