package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"weaponwatch-server-go/internal/config"
	"weaponwatch-server-go/internal/models"
)

// Pusher sends one composed message through the push gateway. Best effort,
// fire and forget; the caller never fails a transition on a push error.
type Pusher interface {
	Push(ctx context.Context, msg models.PushMessage) error
}

// ExpoPusher talks to the Expo push HTTP API the mobile clients register with.
type ExpoPusher struct {
	url    string
	client *http.Client
}

func NewExpoPusher(cfg *config.Config) *ExpoPusher {
	return &ExpoPusher{
		url:    cfg.PushGatewayURL,
		client: &http.Client{Timeout: cfg.PushTimeout},
	}
}

func (p *ExpoPusher) Push(ctx context.Context, msg models.PushMessage) error {
	payload, err := json.Marshal([]models.PushMessage{msg})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push gateway returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
