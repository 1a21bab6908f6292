package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const validSession = "valid"

// testPortal fakes the portal: requests without a valid sid cookie are
// redirected to a separate identity provider server.
type testPortal struct {
	portal *httptest.Server
	idp    *httptest.Server

	firewallHits atomic.Int32
	firewall     func(w http.ResponseWriter, r *http.Request)
	wireless     func(w http.ResponseWriter, r *http.Request)
}

func newTestPortal(t *testing.T) *testPortal {
	t.Helper()
	tp := &testPortal{
		firewall: func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/Networks/Meraki/firewall/api/")
			fmt.Fprintf(w, `{"serialNumber":%q,"firewallStatus":3,"networkName":"Stake Center"}`, id)
		},
		wireless: func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"ssids":[{"name":"Guest","daysUntilExpiry":40},{"name":"lehi","daysUntilExpiry":2}]}`)
		},
	}

	tp.idp = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(tp.idp.Close)

	mux := http.NewServeMux()
	mux.HandleFunc("/Networks/Meraki/firewall/api/", func(w http.ResponseWriter, r *http.Request) {
		tp.firewallHits.Add(1)
		if !authorized(r) {
			http.Redirect(w, r, tp.idp.URL+"/oauth2/authorize", http.StatusFound)
			return
		}
		tp.firewall(w, r)
	})
	mux.HandleFunc("/Networks/Meraki/wireless/api/", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			http.Redirect(w, r, tp.idp.URL+"/oauth2/authorize", http.StatusFound)
			return
		}
		tp.wireless(w, r)
	})
	tp.portal = httptest.NewServer(mux)
	t.Cleanup(tp.portal.Close)
	return tp
}

func authorized(r *http.Request) bool {
	c, err := r.Cookie("sid")
	return err == nil && c.Value == validSession
}

func (tp *testPortal) client(t *testing.T, auth Authenticator, timeout time.Duration) *Client {
	t.Helper()
	s, err := NewSession(SessionConfig{
		PortalURL:         tp.portal.URL + "/",
		AuthURL:           tp.idp.URL,
		Username:          "clerk",
		Password:          "secret",
		RequestTimeout:    timeout,
		RequestsPerSecond: 1000,
		Burst:             10,
	}, auth, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	c, err := NewClient(s, ClientConfig{}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func validLogin() *fakeAuthenticator {
	return &fakeAuthenticator{cookies: []*http.Cookie{{Name: "sid", Value: validSession}}}
}

func TestFetchStatus_LogsInOnRedirectAndRetriesOnce(t *testing.T) {
	tp := newTestPortal(t)
	auth := validLogin()
	c := tp.client(t, auth, 0)

	status, err := c.FetchStatus(context.Background(), "Q2XX-0001")
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if auth.calls != 1 {
		t.Errorf("logins = %d, want 1", auth.calls)
	}
	if got := tp.firewallHits.Load(); got != 2 {
		t.Errorf("firewall requests = %d, want 2", got)
	}
	if status.NetworkID != "Q2XX-0001" || status.SerialNumber != "Q2XX-0001" {
		t.Errorf("ids = %q/%q", status.NetworkID, status.SerialNumber)
	}
	if status.FirewallStatus != 3 || status.NetworkName != "Stake Center" {
		t.Errorf("status = %+v", status)
	}
	if status.PasswordExpiryDays == nil || *status.PasswordExpiryDays != 2 {
		t.Errorf("PasswordExpiryDays = %v, want 2", status.PasswordExpiryDays)
	}
}

func TestFetchStatus_ReusesSession(t *testing.T) {
	tp := newTestPortal(t)
	auth := validLogin()
	c := tp.client(t, auth, 0)

	for i := 0; i < 3; i++ {
		if _, err := c.FetchStatus(context.Background(), "Q2XX-0001"); err != nil {
			t.Fatalf("FetchStatus #%d: %v", i+1, err)
		}
	}
	if auth.calls != 1 {
		t.Errorf("logins = %d, want 1", auth.calls)
	}
}

func TestFetchStatus_SecondRedirectFails(t *testing.T) {
	tp := newTestPortal(t)
	auth := &fakeAuthenticator{cookies: []*http.Cookie{{Name: "sid", Value: "rejected"}}}
	c := tp.client(t, auth, 0)

	_, err := c.FetchStatus(context.Background(), "Q2XX-0001")
	if !errors.Is(err, ErrAuthRedirect) {
		t.Fatalf("FetchStatus error = %v, want ErrAuthRedirect", err)
	}
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.NetworkID != "Q2XX-0001" || fetchErr.Op != "firewall" {
		t.Errorf("FetchError = %+v", fetchErr)
	}
	if auth.calls != 1 {
		t.Errorf("logins = %d, want exactly 1", auth.calls)
	}
	if got := tp.firewallHits.Load(); got != 2 {
		t.Errorf("firewall requests = %d, want 2", got)
	}
}

func TestFetchStatus_LoginFailure(t *testing.T) {
	tp := newTestPortal(t)
	auth := &fakeAuthenticator{err: errors.New("timed out waiting for portal")}
	c := tp.client(t, auth, 0)

	_, err := c.FetchStatus(context.Background(), "Q2XX-0001")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("FetchStatus error = %v, want *AuthError", err)
	}
	if got := tp.firewallHits.Load(); got != 1 {
		t.Errorf("firewall requests = %d, want 1 (no retry after failed login)", got)
	}
}

func TestFetchStatus_HTTPErrors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(tp *testPortal)
		wantOp   string
		wantCode int
	}{
		{
			name: "firewall server error",
			setup: func(tp *testPortal) {
				tp.firewall = func(w http.ResponseWriter, _ *http.Request) {
					http.Error(w, "upstream unavailable", http.StatusInternalServerError)
				}
			},
			wantOp:   "firewall",
			wantCode: http.StatusInternalServerError,
		},
		{
			name: "firewall not found",
			setup: func(tp *testPortal) {
				tp.firewall = func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) }
			},
			wantOp:   "firewall",
			wantCode: http.StatusNotFound,
		},
		{
			name: "wireless server error",
			setup: func(tp *testPortal) {
				tp.wireless = func(w http.ResponseWriter, _ *http.Request) {
					http.Error(w, "boom", http.StatusBadGateway)
				}
			},
			wantOp:   "wireless",
			wantCode: http.StatusBadGateway,
		},
		{
			name: "firewall malformed body",
			setup: func(tp *testPortal) {
				tp.firewall = func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, "<html>login</html>") }
			},
			wantOp: "firewall",
		},
		{
			name: "wireless malformed body",
			setup: func(tp *testPortal) {
				tp.wireless = func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, `{"ssids":`) }
			},
			wantOp: "wireless",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := newTestPortal(t)
			tt.setup(tp)
			c := tp.client(t, validLogin(), 0)

			status, err := c.FetchStatus(context.Background(), "Q2XX-0001")
			if status != nil {
				t.Errorf("status = %+v, want nil on error", status)
			}
			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("error = %v, want *FetchError", err)
			}
			if fetchErr.Op != tt.wantOp {
				t.Errorf("Op = %q, want %q", fetchErr.Op, tt.wantOp)
			}
			if fetchErr.StatusCode != tt.wantCode {
				t.Errorf("StatusCode = %d, want %d", fetchErr.StatusCode, tt.wantCode)
			}
		})
	}
}

func TestFetchStatus_SSIDExpiry(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *int
	}{
		{"ssid absent", `{"ssids":[{"name":"Guest","daysUntilExpiry":4}]}`, nil},
		{"no ssids", `{}`, nil},
		{"null expiry", `{"ssids":[{"name":"Lehi","daysUntilExpiry":null}]}`, nil},
		{"missing expiry", `{"ssids":[{"name":"Lehi"}]}`, nil},
		{"zero days", `{"ssids":[{"name":"Lehi","daysUntilExpiry":0}]}`, intp(0)},
		{"negative clamps to zero", `{"ssids":[{"name":"Lehi","daysUntilExpiry":-3}]}`, intp(0)},
		{"far future", `{"ssids":[{"name":"LEHI","daysUntilExpiry":90}]}`, intp(90)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := newTestPortal(t)
			tp.wireless = func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, tt.body) }
			c := tp.client(t, validLogin(), 0)

			status, err := c.FetchStatus(context.Background(), "Q2XX-0001")
			if err != nil {
				t.Fatalf("FetchStatus: %v", err)
			}
			got := status.PasswordExpiryDays
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("PasswordExpiryDays = %d, want nil", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("PasswordExpiryDays = %v, want %d", got, *tt.want)
			}
		})
	}
}

func TestFetchStatus_RequestTimeout(t *testing.T) {
	tp := newTestPortal(t)
	tp.firewall = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}
	c := tp.client(t, validLogin(), 100*time.Millisecond)

	start := time.Now()
	_, err := c.FetchStatus(context.Background(), "Q2XX-0001")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("FetchStatus took %v, want timeout near 100ms", elapsed)
	}
}

func TestFetchStatus_CancelledContext(t *testing.T) {
	tp := newTestPortal(t)
	c := tp.client(t, validLogin(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.FetchStatus(ctx, "Q2XX-0001"); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	s := newTestSession(t, "https://cnm.example.org/", "https://id.example.org", &fakeAuthenticator{})
	c, err := NewClient(s, ClientConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	got, err := c.endpoint(c.cfg.FirewallPath, "Q2XX 1/2")
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	want := "https://cnm.example.org/Networks/Meraki/firewall/api/Q2XX%201%2F2"
	if got != want {
		t.Errorf("endpoint = %q, want %q", got, want)
	}
	if c.cfg.SSIDName != DefaultSSIDName {
		t.Errorf("SSIDName = %q, want %q", c.cfg.SSIDName, DefaultSSIDName)
	}

	if _, err := NewClient(s, ClientConfig{BaseURL: "::bad"}, zap.NewNop()); err == nil {
		t.Error("expected error for invalid base URL")
	}
}

func intp(v int) *int { return &v }
