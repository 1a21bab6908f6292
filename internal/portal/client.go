package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/HerbHall/cnmwatch/internal/metrics"
	"github.com/HerbHall/cnmwatch/pkg/models"
	"go.uber.org/zap"
)

// Default endpoint paths. %s is the network id.
const (
	DefaultFirewallPath = "/Networks/Meraki/firewall/api/%s"
	DefaultWirelessPath = "/Networks/Meraki/wireless/api/%s"
	DefaultSSIDName     = "Lehi"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL defaults to the session's portal URL.
	BaseURL      string
	FirewallPath string
	WirelessPath string
	// SSIDName is the wireless network whose password expiry is tracked.
	SSIDName string
}

// Client fetches network status from the portal through a Session.
type Client struct {
	session *Session
	base    *url.URL
	cfg     ClientConfig
	logger  *zap.Logger
}

// firewallResponse is the firewall status endpoint payload.
type firewallResponse struct {
	SerialNumber   string `json:"serialNumber"`
	FirewallStatus int    `json:"firewallStatus"`
	NetworkName    string `json:"networkName"`
}

// wirelessResponse is the wireless configuration endpoint payload.
type wirelessResponse struct {
	SSIDs []ssidEntry `json:"ssids"`
}

type ssidEntry struct {
	Name            string `json:"name"`
	DaysUntilExpiry *int   `json:"daysUntilExpiry"`
}

// NewClient creates a Client. Empty config fields take the defaults.
func NewClient(session *Session, cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	base := session.PortalURL()
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
		}
		base = u
	}
	if cfg.FirewallPath == "" {
		cfg.FirewallPath = DefaultFirewallPath
	}
	if cfg.WirelessPath == "" {
		cfg.WirelessPath = DefaultWirelessPath
	}
	if cfg.SSIDName == "" {
		cfg.SSIDName = DefaultSSIDName
	}
	return &Client{session: session, base: base, cfg: cfg, logger: logger}, nil
}

// FetchStatus returns the current status of networkID. An auth redirect on
// the firewall endpoint triggers one login and one retry; anything else that
// is not a 2xx response fails with a *FetchError.
func (c *Client) FetchStatus(ctx context.Context, networkID string) (*models.NetworkStatus, error) {
	status, err := c.fetchStatus(ctx, networkID)
	metrics.Fetches.WithLabelValues(metrics.Result(err)).Inc()
	return status, err
}

func (c *Client) fetchStatus(ctx context.Context, networkID string) (*models.NetworkStatus, error) {
	var fw firewallResponse
	if err := c.getFirewall(ctx, networkID, &fw); err != nil {
		return nil, err
	}

	status := &models.NetworkStatus{
		NetworkID:      networkID,
		SerialNumber:   fw.SerialNumber,
		FirewallStatus: fw.FirewallStatus,
		NetworkName:    fw.NetworkName,
	}

	target, err := c.endpoint(c.cfg.WirelessPath, networkID)
	if err != nil {
		return nil, &FetchError{NetworkID: networkID, Op: "wireless", Err: err}
	}
	var wl wirelessResponse
	if err := c.getJSON(ctx, networkID, "wireless", target, &wl); err != nil {
		return nil, err
	}
	entry := findSSID(wl.SSIDs, c.cfg.SSIDName)
	switch {
	case entry == nil:
		c.logger.Warn("SSID not found in wireless configuration",
			zap.String("network_id", networkID),
			zap.String("ssid", c.cfg.SSIDName),
		)
	case entry.DaysUntilExpiry == nil:
		c.logger.Warn("SSID has no password expiry",
			zap.String("network_id", networkID),
			zap.String("ssid", c.cfg.SSIDName),
		)
	default:
		days := max(*entry.DaysUntilExpiry, 0)
		status.PasswordExpiryDays = &days
	}

	return status, nil
}

// getFirewall is the only request that handles auth redirects: it runs
// first each poll and re-establishes the session for the requests after it.
func (c *Client) getFirewall(ctx context.Context, networkID string, out *firewallResponse) error {
	target, err := c.endpoint(c.cfg.FirewallPath, networkID)
	if err != nil {
		return &FetchError{NetworkID: networkID, Op: "firewall", Err: err}
	}

	resp, err := c.session.Get(ctx, target)
	if err != nil {
		return &FetchError{NetworkID: networkID, Op: "firewall", Err: err}
	}

	loggedIn, err := c.session.EnsureAuthenticated(ctx, resp)
	if loggedIn {
		drain(resp)
		if err != nil {
			return &FetchError{NetworkID: networkID, Op: "firewall", Err: err}
		}
		resp, err = c.session.Get(ctx, target)
		if err != nil {
			return &FetchError{NetworkID: networkID, Op: "firewall", Err: err}
		}
		if c.session.IsAuthRedirect(resp) {
			drain(resp)
			return &FetchError{NetworkID: networkID, Op: "firewall", StatusCode: resp.StatusCode, Err: ErrAuthRedirect}
		}
	}

	return decodeResponse(resp, networkID, "firewall", out)
}

func (c *Client) getJSON(ctx context.Context, networkID, op, target string, out any) error {
	resp, err := c.session.Get(ctx, target)
	if err != nil {
		return &FetchError{NetworkID: networkID, Op: op, Err: err}
	}
	return decodeResponse(resp, networkID, op, out)
}

func (c *Client) endpoint(pathFmt, networkID string) (string, error) {
	rel, err := url.Parse(fmt.Sprintf(pathFmt, url.PathEscape(networkID)))
	if err != nil {
		return "", err
	}
	return c.base.ResolveReference(rel).String(), nil
}

// decodeResponse closes resp after decoding a 2xx JSON body into out.
func decodeResponse(resp *http.Response, networkID, op string, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &FetchError{
			NetworkID:  networkID,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{NetworkID: networkID, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain body for connection reuse
	resp.Body.Close()
}

func findSSID(entries []ssidEntry, name string) *ssidEntry {
	for i := range entries {
		if strings.EqualFold(entries[i].Name, name) {
			return &entries[i]
		}
	}
	return nil
}
