// Package notify delivers payloads to remote agents with bounded retry and
// classifies replies as acknowledged or unacknowledged. Every component that
// must reach another agent goes through a Notifier.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/xoobay/agent-commerce/internal/a2a"
)

// RetryConfig defines retry behavior for outbound notifications.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible defaults for retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     8 * time.Second,
	}
}

// Result is the outcome of a delivery attempt series. An unacknowledged
// delivery is not a Go error: callers decide whether a Nack is fatal.
type Result struct {
	Acked  bool
	Reply  string
	Reason string
}

type Notifier struct {
	client *a2a.Client
	retry  RetryConfig
	source string
}

func NewNotifier(source string, timeout time.Duration, retry RetryConfig) *Notifier {
	return &Notifier{
		client: a2a.NewClient(timeout),
		retry:  retry,
		source: source,
	}
}

// Notify sends a payload to a remote agent, retrying with exponential backoff
// until the reply is acknowledged or attempts are exhausted.
func (n *Notifier) Notify(ctx context.Context, targetURL string, payload string) Result {
	backoff := n.retry.InitialBackoff
	lastReason := ""

	for attempt := 1; attempt <= n.retry.MaxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return Result{Acked: false, Reason: ctx.Err().Error()}
			}
			backoff *= 2
			if backoff > n.retry.MaxBackoff {
				backoff = n.retry.MaxBackoff
			}
		}

		reply, err := n.client.Ask(ctx, targetURL, payload)
		if err != nil {
			lastReason = err.Error()
			slog.WarnContext(ctx, "notification_attempt_failed",
				"source", n.source,
				"target", targetURL,
				"attempt", attempt,
				"max_retries", n.retry.MaxRetries,
				"error", err,
			)
			continue
		}

		if acked, reason := classifyReply(reply); acked {
			return Result{Acked: true, Reply: reply}
		} else {
			lastReason = reason
			slog.WarnContext(ctx, "notification_not_acknowledged",
				"source", n.source,
				"target", targetURL,
				"attempt", attempt,
				"reason", reason,
			)
		}
	}

	slog.ErrorContext(ctx, "notification_exhausted",
		"source", n.source,
		"target", targetURL,
		"max_retries", n.retry.MaxRetries,
		"last_reason", lastReason,
	)
	return Result{Acked: false, Reason: lastReason}
}

// affirmative markers accepted in free-text replies when no structured
// success field is present.
var affirmativeMarkers = []string{"success", "received", "confirmed", "acknowledged", "agreed", "ok"}

// classifyReply interprets a reply as an acknowledgement. A structured
// success field wins; failing that, an affirmative marker in the text counts.
func classifyReply(reply string) (bool, string) {
	if raw, err := a2a.ExtractJSON(reply); err == nil {
		var parsed struct {
			Success *bool  `json:"success"`
			Status  string `json:"status"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			if parsed.Success != nil {
				if *parsed.Success {
					return true, ""
				}
				reason := parsed.Error
				if reason == "" {
					reason = "reply signaled failure"
				}
				return false, reason
			}
			switch parsed.Status {
			case "received", "agreed", "disagreed", "alive":
				return true, ""
			}
		}
	}

	lower := strings.ToLower(reply)
	for _, marker := range affirmativeMarkers {
		if strings.Contains(lower, marker) {
			return true, ""
		}
	}
	return false, "no acknowledgement in reply"
}
