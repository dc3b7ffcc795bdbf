package slacknotify

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"car_feedback/internal/domain"
)

// Notifier posts a batch digest to one Slack channel.
type Notifier struct {
	api     *slack.Client
	channel string
}

func New(token, channel string, options ...slack.Option) *Notifier {
	return &Notifier{api: slack.New(token, options...), channel: channel}
}

func (n *Notifier) NotifyBatch(ctx context.Context, b domain.Batch) error {
	_, _, err := n.api.PostMessageContext(ctx, n.channel, slack.MsgOptionText(Digest(b), false))
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	return nil
}

// Digest is the plain mrkdwn summary posted after a run.
func Digest(b domain.Batch) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Feedback batch %s* (%s)\n", b.ID, b.Source)
	fmt.Fprintf(&sb, "Reviews: %d analyzed, %d failed\n", b.Summary.Total(), b.FailedCount())

	parts := make([]string, 0, len(domain.Sentiments))
	for _, s := range domain.Sentiments {
		parts = append(parts, fmt.Sprintf("%s %d", s, b.Summary.SentimentCounts[s]))
	}
	sb.WriteString("Sentiment: " + strings.Join(parts, ", ") + "\n")

	ranked := b.Summary.RankedIssues()
	if len(ranked) == 0 {
		sb.WriteString("Top issues: none")
		return sb.String()
	}
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}
	issues := make([]string, len(ranked))
	for i, ic := range ranked {
		issues[i] = fmt.Sprintf("%s (%d)", ic.Issue, ic.Count)
	}
	sb.WriteString("Top issues: " + strings.Join(issues, ", "))
	return sb.String()
}
