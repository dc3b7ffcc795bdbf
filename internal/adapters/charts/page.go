package charts

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"car_feedback/internal/domain"
)

// Renderer draws a batch summary as a standalone HTML page:
// a sentiment pie and an issue frequency bar chart.
type Renderer struct {
	title string
}

func NewRenderer() *Renderer { return &Renderer{title: "Customer Feedback Overview"} }

func (r *Renderer) Render(w io.Writer, s domain.BatchSummary) error {
	page := components.NewPage()
	page.PageTitle = r.title
	page.AddCharts(sentimentPie(s), issueBar(s))
	if err := page.Render(w); err != nil {
		return &domain.ExportError{Format: "html", Err: err}
	}
	return nil
}

func sentimentPie(s domain.BatchSummary) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Sentiment Distribution",
			Subtitle: fmt.Sprintf("%d reviews analyzed", s.Total()),
		}),
		charts.WithLegendOpts(opts.Legend{Bottom: "0"}),
	)

	data := make([]opts.PieData, 0, len(domain.Sentiments))
	for _, v := range domain.Sentiments {
		data = append(data, opts.PieData{Name: string(v), Value: s.SentimentCounts[v]})
	}
	pie.AddSeries("sentiment", data, charts.WithLabelOpts(opts.Label{Formatter: "{b}: {c} ({d}%)"}))
	return pie
}

func issueBar(s domain.BatchSummary) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Issue Frequency"}),
	)

	table := s.IssueTable()
	names := make([]string, len(table))
	data := make([]opts.BarData, len(table))
	for i, row := range table {
		names[i] = string(row.Issue)
		data[i] = opts.BarData{Value: row.Count}
	}
	bar.SetXAxis(names).AddSeries("issues", data)
	return bar
}
