// Package alert delivers operational alerts raised by the scraping core,
// most importantly circuit-open transitions.
package alert

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/proletto/opportunity-engine/internal/scraper"
)

// slackAPI is the subset of the Slack client the sink needs.
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackSink posts alerts to a Slack channel with severity coloring.
type SlackSink struct {
	client  slackAPI
	channel string
}

// NewSlackSink builds a SlackSink from a bot token and channel ID.
func NewSlackSink(token, channel string) *SlackSink {
	return &SlackSink{
		client:  slack.New(token),
		channel: channel,
	}
}

// Alert posts the message as a colored attachment. The caller is expected
// to log and otherwise ignore delivery failures.
func (s *SlackSink) Alert(ctx context.Context, message string, level scraper.AlertLevel) error {
	attachment := slack.Attachment{
		Color: levelColor(level),
		Text:  fmt.Sprintf("%s %s", levelIcon(level), message),
	}
	_, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("post slack alert: %w", err)
	}
	return nil
}

func levelColor(level scraper.AlertLevel) string {
	switch level {
	case scraper.AlertWarning:
		return "#ffcc00"
	case scraper.AlertError:
		return "#ff0000"
	default:
		return "#36a64f"
	}
}

func levelIcon(level scraper.AlertLevel) string {
	switch level {
	case scraper.AlertWarning:
		return ":warning:"
	case scraper.AlertError:
		return ":rotating_light:"
	default:
		return ":information_source:"
	}
}
