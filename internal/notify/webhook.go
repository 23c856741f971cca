package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/provider-matching/internal/models"
)

// WebhookNotifier delivers booking events over an open provider socket when
// one exists and falls back to posting the event to a backend webhook.
type WebhookNotifier struct {
	Endpoint string
	Client   *http.Client
	WS       *Registry
}

func NewWebhookNotifier(endpoint string, ws *Registry) *WebhookNotifier {
	return &WebhookNotifier{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}, WS: ws}
}

func (n *WebhookNotifier) BookingChanged(e models.BookingEvent) error {
	if n.WS != nil {
		if err := n.WS.BookingChanged(e); err == nil {
			return nil
		}
	}
	if n.Endpoint == "" {
		return ErrNoSession
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	resp, err := n.Client.Post(n.Endpoint, "application/json", bytes.NewReader(b))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
