package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// LogNotifier writes notifications to the structured log. It is the default
// sender when no outbound transport is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send implements Notifier.
func (n *LogNotifier) Send(ctx context.Context, recipientID string, kind EventKind, actorID string, snapshot AssignmentSnapshot) error {
	n.logger.InfoContext(ctx, "notification",
		"recipient_id", recipientID,
		"event_kind", string(kind),
		"actor_id", actorID,
		"assignment_id", snapshot.ID,
		"roster", snapshot.RosterName,
		"start_date", snapshot.StartDate.Format("2006-01-02"),
		"end_date", snapshot.EndDate.Format("2006-01-02"),
	)
	return nil
}

// WebhookNotifier posts each notification as JSON to a configured endpoint,
// where an external relay turns it into email or SMS.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier constructs a WebhookNotifier for the given endpoint.
func NewWebhookNotifier(url string, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{url: url, client: client}
}

type webhookPayload struct {
	RecipientID  string `json:"recipient_id"`
	EventKind    string `json:"event_kind"`
	ActorID      string `json:"actor_id,omitempty"`
	AssignmentID string `json:"assignment_id"`
	RosterID     string `json:"roster_id"`
	RosterName   string `json:"roster_name"`
	OwnerID      string `json:"owner_id"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
}

// Send implements Notifier.
func (n *WebhookNotifier) Send(ctx context.Context, recipientID string, kind EventKind, actorID string, snapshot AssignmentSnapshot) error {
	payload := webhookPayload{
		RecipientID:  recipientID,
		EventKind:    string(kind),
		ActorID:      actorID,
		AssignmentID: snapshot.ID,
		RosterID:     snapshot.RosterID,
		RosterName:   snapshot.RosterName,
		OwnerID:      snapshot.OwnerID,
		StartDate:    snapshot.StartDate.Format("2006-01-02"),
		EndDate:      snapshot.EndDate.Format("2006-01-02"),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
