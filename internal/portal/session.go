package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/HerbHall/cnmwatch/internal/metrics"
	"github.com/HerbHall/cnmwatch/internal/version"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Authenticator performs the interactive portal login and returns the
// cookies that make up the resulting session.
type Authenticator interface {
	Login(ctx context.Context, username, password string) ([]*http.Cookie, error)
}

// SessionConfig configures a Session.
type SessionConfig struct {
	PortalURL         string
	AuthURL           string
	Username          string
	Password          string //nolint:gosec // G101: config field name, not a credential
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Session owns the long-lived HTTP client and its cookie jar. The portal
// signals an expired session only by redirecting to the identity provider,
// so there is no expiry timer; callers hand each response to
// EnsureAuthenticated. A Session is used by a single goroutine.
type Session struct {
	portal   *url.URL
	auth     *url.URL
	username string
	password string

	authenticator Authenticator
	client        *http.Client
	limiter       *rate.Limiter
	logger        *zap.Logger
}

// NewSession creates a Session with an empty cookie jar.
func NewSession(cfg SessionConfig, authenticator Authenticator, logger *zap.Logger) (*Session, error) {
	portalURL, err := url.Parse(cfg.PortalURL)
	if err != nil || portalURL.Host == "" {
		return nil, fmt.Errorf("invalid portal URL %q", cfg.PortalURL)
	}
	authURL, err := url.Parse(cfg.AuthURL)
	if err != nil || authURL.Host == "" {
		return nil, fmt.Errorf("invalid auth URL %q", cfg.AuthURL)
	}
	if authenticator == nil {
		return nil, errors.New("authenticator is required")
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 4
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Session{
		portal:        portalURL,
		auth:          authURL,
		username:      cfg.Username,
		password:      cfg.Password,
		authenticator: authenticator,
		client: &http.Client{
			Timeout: timeout,
			Jar:     jar,
			// Redirects are inspected, never followed: a redirect to the
			// identity provider is the only session-expired signal.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}, nil
}

// PortalURL returns the portal home page URL.
func (s *Session) PortalURL() *url.URL {
	u := *s.portal
	return &u
}

// Get issues a GET for rawURL with the session cookies.
func (s *Session) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "cnmwatch/"+version.Short())
	return s.client.Do(req)
}

// IsAuthRedirect reports whether resp is a redirect to the identity provider.
func (s *Session) IsAuthRedirect(resp *http.Response) bool {
	if resp == nil || resp.StatusCode < 300 || resp.StatusCode > 399 {
		return false
	}
	loc, err := resp.Location()
	if err != nil {
		return false
	}
	if s.auth.Port() != "" {
		return strings.EqualFold(loc.Host, s.auth.Host)
	}
	host := strings.ToLower(loc.Hostname())
	authHost := strings.ToLower(s.auth.Hostname())
	return host == authHost || strings.HasSuffix(host, "."+authHost)
}

// EnsureAuthenticated logs in if resp is an auth redirect and reports
// whether it did. Any other response leaves the session untouched.
func (s *Session) EnsureAuthenticated(ctx context.Context, resp *http.Response) (bool, error) {
	if !s.IsAuthRedirect(resp) {
		return false, nil
	}
	s.logger.Info("portal session missing or expired",
		zap.String("location", resp.Header.Get("Location")),
	)
	if err := s.Login(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Login runs the Authenticator and replaces every cookie in the jar with the
// ones it returns. Browser cookies are installed as host cookies for the
// portal so they are sent on every portal request.
func (s *Session) Login(ctx context.Context) error {
	start := time.Now()
	s.logger.Info("logging in to portal", zap.String("portal", s.portal.String()))

	cookies, err := s.authenticator.Login(ctx, s.username, s.password)
	if err == nil && len(cookies) == 0 {
		err = errors.New("login produced no cookies")
	}
	metrics.Logins.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return &AuthError{Err: err}
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return &AuthError{Err: fmt.Errorf("create cookie jar: %w", err)}
	}
	installed := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		cc := *c
		cc.Domain = ""
		if cc.Path == "" {
			cc.Path = "/"
		}
		installed = append(installed, &cc)
	}
	jar.SetCookies(s.portal, installed)
	s.client.Jar = jar

	s.logger.Info("portal login complete",
		zap.Int("cookies", len(installed)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Cookies returns the cookies the session would send to the portal.
func (s *Session) Cookies() []*http.Cookie {
	return s.client.Jar.Cookies(s.portal)
}
