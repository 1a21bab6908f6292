package notify

import (
	"fmt"

	"github.com/HerbHall/cnmwatch/pkg/models"
)

// Message is one outbound notification.
type Message struct {
	Subject string
	Body    string
}

func offlineMessage(s models.NetworkStatus) Message {
	return Message{
		Subject: fmt.Sprintf("[CNM] ❌ %s is offline", s.NetworkName),
		Body: fmt.Sprintf("The firewall %s at %s is offline (%d).",
			s.NetworkID, s.NetworkName, s.FirewallStatus),
	}
}

func onlineMessage(s models.NetworkStatus) Message {
	return Message{
		Subject: fmt.Sprintf("[CNM] ✅ %s is back online", s.NetworkName),
		Body: fmt.Sprintf("The firewall %s at %s is online (%d).",
			s.NetworkID, s.NetworkName, s.FirewallStatus),
	}
}

// passwordExpiringMessage expects s.PasswordExpiryDays to be set.
func passwordExpiringMessage(s models.NetworkStatus, ssid string) Message {
	body := fmt.Sprintf("The %s SSID password for %s at %s ", ssid, s.NetworkID, s.NetworkName)
	switch days := derefDays(s.PasswordExpiryDays); days {
	case 0:
		body += "has expired."
	case 1:
		body += "will expire in 1 day."
	default:
		body += fmt.Sprintf("will expire in %d days.", days)
	}
	return Message{
		Subject: fmt.Sprintf("[CNM] ⚠ %s %s SSID password expiring", s.NetworkName, ssid),
		Body:    body,
	}
}

func errorMessage(err error) Message {
	return Message{
		Subject: "[CNM] Monitoring error",
		Body:    fmt.Sprintf("An error occurred while monitoring CNM: %v", err),
	}
}

func derefDays(days *int) int {
	if days == nil || *days < 0 {
		return 0
	}
	return *days
}
