package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"car_feedback/internal/domain"
)

const barWidth = 24

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle = lipgloss.NewStyle().Width(16)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5B8DEF")).
			Padding(0, 1)

	sentimentColors = map[domain.Sentiment]lipgloss.Color{
		domain.SentimentPositive: lipgloss.Color("#3FB950"),
		domain.SentimentNegative: lipgloss.Color("#F85149"),
		domain.SentimentNeutral:  lipgloss.Color("#AAAAAA"),
	}
)

// Summary renders a batch digest for the terminal: sentiment bars then the issue table.
func Summary(b domain.Batch) string {
	s := b.Summary
	total := s.Total()

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Batch "+b.ID) + "\n")
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("%s, %d reviews, %d failed", b.Source, len(b.Results), b.FailedCount())) + "\n\n")

	sb.WriteString(titleStyle.Render("Sentiment") + "\n")
	for _, v := range domain.Sentiments {
		n := s.SentimentCounts[v]
		bar := lipgloss.NewStyle().Foreground(sentimentColors[v]).Render(strings.Repeat("█", scaled(n, total)))
		sb.WriteString(fmt.Sprintf("%s %s %d\n", labelStyle.Render(string(v)), bar, n))
	}

	sb.WriteString("\n" + titleStyle.Render("Issues") + "\n")
	ranked := s.RankedIssues()
	if len(ranked) == 0 {
		sb.WriteString(mutedStyle.Render("none detected"))
	}
	for i, ic := range ranked {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%s %d", labelStyle.Render(string(ic.Issue)), ic.Count))
	}
	return boxStyle.Render(sb.String())
}

func scaled(n, total int) int {
	if total == 0 || n == 0 {
		return 0
	}
	w := n * barWidth / total
	if w == 0 {
		w = 1
	}
	return w
}
