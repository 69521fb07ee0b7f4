package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/streamvault/backend/internal/errors"
	"github.com/streamvault/backend/internal/wishlist"
)

const notifyTimeout = 5 * time.Second

// WebhookNotifier POSTs wishlist match summaries to a configured URL.
// Delivery is best effort; the wishlist engine logs failures and moves on.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
}

// New creates a webhook notifier. Returns nil when url is empty, which
// disables notifications.
func New(url string) *WebhookNotifier {
	if url == "" {
		return nil
	}
	return &WebhookNotifier{
		url: url,
		httpClient: &http.Client{
			Timeout: notifyTimeout,
		},
	}
}

type matchPayload struct {
	Event        string `json:"event"`
	Title        string `json:"title"`
	MatchedName  string `json:"matched_name"`
	ScorePercent int    `json:"score_percent"`
	AutoDownload bool   `json:"auto_download"`
}

// NotifyMatch implements wishlist.Notifier
func (n *WebhookNotifier) NotifyMatch(ctx context.Context, m wishlist.MatchNotification) error {
	payload := matchPayload{
		Event:        "wishlist_match",
		Title:        m.Title,
		MatchedName:  m.MatchedName,
		ScorePercent: int(m.Score * 100),
		AutoDownload: m.AutoDownload,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return apperrors.ExternalTimeout("notification webhook").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned status %d", resp.StatusCode)
	}
	return nil
}
