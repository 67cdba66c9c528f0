package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/openfleet/maestro/internal/model"
)

// Webhook contains activities for sending job completion notifications.
type Webhook struct {
	client *http.Client
}

// NewWebhook creates a new Webhook activity struct.
func NewWebhook() *Webhook {
	return &Webhook{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// SendJobWebhookParams holds parameters for the SendJobWebhook activity.
type SendJobWebhookParams struct {
	URL      string     `json:"url"`
	Template string     `json:"template"` // "generic" or "slack"
	Summary  JobSummary `json:"summary"`
}

// SendJobWebhook POSTs a notification for a finished job.
func (a *Webhook) SendJobWebhook(ctx context.Context, params SendJobWebhookParams) error {
	var body []byte
	var err error

	switch params.Template {
	case "slack":
		body, err = buildSlackPayload(params.Summary)
	default:
		body, err = buildGenericPayload(params.Summary)
	}
	if err != nil {
		return temporal.NewNonRetryableApplicationError("build webhook payload", "MARSHAL_ERROR", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, params.URL, bytes.NewReader(body))
	if err != nil {
		return temporal.NewNonRetryableApplicationError("create webhook request", "REQUEST_ERROR", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook POST to %s: %w", params.URL, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("webhook returned %d", resp.StatusCode),
			"CLIENT_ERROR", nil)
	}
	return fmt.Errorf("webhook returned %d", resp.StatusCode)
}

// GenericWebhookPayload is the default JSON payload for webhooks.
type GenericWebhookPayload struct {
	Event   string     `json:"event"`
	Summary JobSummary `json:"summary"`
}

func buildGenericPayload(sum JobSummary) ([]byte, error) {
	return json.Marshal(GenericWebhookPayload{
		Event:   "job." + sum.Status,
		Summary: sum,
	})
}

// buildSlackPayload creates a Slack Block Kit message.
func buildSlackPayload(sum JobSummary) ([]byte, error) {
	emoji := ":white_check_mark:"
	switch sum.Status {
	case model.JobStatusFailed:
		emoji = ":rotating_light:"
	case model.JobStatusPartial:
		emoji = ":warning:"
	}

	counts := make([]string, 0, len(sum.TaskCounts))
	for status, n := range sum.TaskCounts {
		counts = append(counts, fmt.Sprintf("%s: %d", status, n))
	}
	sort.Strings(counts)

	fields := []map[string]interface{}{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Schedule:* %s", sum.ScheduleName),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Status:* %s", sum.Status),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Started:* %s", sum.StartTime.Format(time.RFC3339)),
		},
	}
	for _, c := range counts {
		fields = append(fields, map[string]interface{}{
			"type": "mrkdwn",
			"text": c,
		})
	}

	blocks := []map[string]interface{}{
		{
			"type": "header",
			"text": map[string]string{
				"type": "plain_text",
				"text": "Firmware update job finished",
			},
		},
		{
			"type": "section",
			"text": map[string]string{
				"type": "mrkdwn",
				"text": fmt.Sprintf("%s *Job %s* (%s)", emoji, sum.JobID, sum.Status),
			},
		},
		{
			"type":   "section",
			"fields": fields,
		},
	}

	if sum.Message != "" {
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]string{
				"type": "mrkdwn",
				"text": fmt.Sprintf("```%s```", sum.Message),
			},
		})
	}

	return json.Marshal(map[string]interface{}{
		"blocks": blocks,
	})
}
