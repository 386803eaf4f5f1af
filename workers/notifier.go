// workers/notifier.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Notifier delivers queued notification tasks to the notification service
// (email templating and sending live over there; this side only ships the
// event and its context).
type Notifier struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewNotifier(baseURL, token string) *Notifier {
	return &Notifier{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// HandlerFor adapts one notification event into a TaskHandler so the task
// worker can deliver it with its own retry policy.
func (n *Notifier) HandlerFor(event string) TaskHandler {
	return func(ctx context.Context, payload map[string]interface{}) error {
		return n.send(ctx, event, payload)
	}
}

func (n *Notifier) send(ctx context.Context, event string, payload map[string]interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"event":   event,
		"payload": payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification %s: %w", event, err)
	}

	url := fmt.Sprintf("%s/api/v1/notifications", n.BaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", n.Token)

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("notification service unreachable: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notification service returned %d: %s", resp.StatusCode, string(respBody))
	}

	log.Printf("✉️ Notification %s delivered", event)
	return nil
}
