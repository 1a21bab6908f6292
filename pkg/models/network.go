package models

// FirewallStatusOnline is the only firewall status code the portal documents.
// Every other value is treated as "not online".
const FirewallStatusOnline = 3

// NetworkStatus is a complete snapshot of one monitored network as reported
// by the portal during a single poll.
type NetworkStatus struct {
	NetworkID      string `json:"network_id"`
	SerialNumber   string `json:"serial_number,omitempty"`
	FirewallStatus int    `json:"firewall_status"`
	NetworkName    string `json:"network_name"`
	// PasswordExpiryDays counts down to the guest SSID password expiry.
	// Nil when the portal does not list the SSID for this network.
	PasswordExpiryDays *int `json:"password_expiry_days,omitempty"`
}

// Online reports whether the firewall status equals FirewallStatusOnline.
func (s NetworkStatus) Online() bool {
	return s.FirewallStatus == FirewallStatusOnline
}

// SameExpiry reports whether two optional expiry counters hold the same value.
// Two nil counters are equal.
func SameExpiry(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
