package portal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ Authenticator = (*BrowserAuthenticator)(nil)

// Login form selectors on the identity provider pages.
const (
	usernameSelector = `input[name="identifier"]`
	passwordSelector = `input[type="password"]`
)

// BrowserAuthenticator logs in by driving a headless Chromium through the
// identity provider's two-step form. A full login takes several seconds.
type BrowserAuthenticator struct {
	portalURL string
	bin       string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewBrowserAuthenticator creates an authenticator for the portal home page
// at portalURL. bin optionally points at a Chromium binary; when empty rod
// looks one up (downloading it if needed). The whole login is bounded by
// timeout.
func NewBrowserAuthenticator(portalURL, bin string, timeout time.Duration, logger *zap.Logger) *BrowserAuthenticator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &BrowserAuthenticator{
		portalURL: portalURL,
		bin:       bin,
		timeout:   timeout,
		logger:    logger,
	}
}

// Login opens the portal, submits the username then the password, waits for
// the redirect back to the portal home page, and returns every cookie held by
// the browser.
func (a *BrowserAuthenticator) Login(ctx context.Context, username, password string) ([]*http.Cookie, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	l := launcher.New().Context(ctx).Headless(true)
	if a.bin != "" {
		l = l.Bin(a.bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	defer browser.Close() //nolint:errcheck // best-effort teardown

	page, err := browser.Page(proto.TargetCreateTarget{URL: a.portalURL})
	if err != nil {
		return nil, fmt.Errorf("open portal: %w", err)
	}

	if err := submitField(page, usernameSelector, username); err != nil {
		return nil, fmt.Errorf("submit username: %w", err)
	}
	if err := submitField(page, passwordSelector, password); err != nil {
		return nil, fmt.Errorf("submit password: %w", err)
	}
	if err := waitForURL(ctx, page, a.portalURL); err != nil {
		return nil, fmt.Errorf("wait for redirect to portal: %w", err)
	}

	browserCookies, err := browser.GetCookies()
	if err != nil {
		return nil, fmt.Errorf("read browser cookies: %w", err)
	}
	a.logger.Debug("browser login finished", zap.Int("cookies", len(browserCookies)))
	return convertCookies(browserCookies), nil
}

// submitField waits for selector, types value into it and presses Enter.
func submitField(page *rod.Page, selector, value string) error {
	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("find %s: %w", selector, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return el.Type(input.Enter)
}

func waitForURL(ctx context.Context, page *rod.Page, target string) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if info, err := page.Info(); err == nil && sameURL(info.URL, target) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// sameURL compares scheme, host and path, ignoring query, fragment and a
// trailing slash.
func sameURL(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(ua.Scheme, ub.Scheme) &&
		strings.EqualFold(ua.Host, ub.Host) &&
		strings.TrimSuffix(ua.Path, "/") == strings.TrimSuffix(ub.Path, "/")
}

func convertCookies(in []*proto.NetworkCookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(in))
	for _, c := range in {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if !c.Session && c.Expires > 0 {
			hc.Expires = c.Expires.Time()
		}
		out = append(out, hc)
	}
	return out
}
