package render

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/jd-d/ai-monitor/internal/event"
	"github.com/jd-d/ai-monitor/internal/globaltime"
)

const longDateLayout = "2 January 2006"

// ArticleHistorySection renders the event's per-article audit trail as
// an HTML section: one table row per entry, newest entry first. Order
// follows recency of addition, not the date values themselves.
func ArticleHistorySection(e *event.Event) string {
	var b strings.Builder

	b.WriteString("<section class=\"update-history\">\n")
	b.WriteString("<h2>Update history</h2>\n")
	b.WriteString("<table>\n")
	b.WriteString("<thead>\n<tr><th>Date</th><th>Title</th><th>Sources</th><th>Score</th></tr>\n</thead>\n")
	b.WriteString("<tbody>\n")

	if e != nil {
		for i := len(e.ArticleHistory) - 1; i >= 0; i-- {
			writeArticleRow(&b, e.ArticleHistory[i])
		}
	}

	b.WriteString("</tbody>\n")
	b.WriteString("</table>\n")
	b.WriteString("</section>\n")
	return b.String()
}

func writeArticleRow(b *strings.Builder, entry event.ArticleEntry) {
	b.WriteString("<tr>")
	fmt.Fprintf(b, "<td>%s</td>", html.EscapeString(formatLongDate(entry.Date)))
	fmt.Fprintf(b, "<td>%s</td>", html.EscapeString(entry.Title))
	b.WriteString("<td>")
	for i, source := range entry.Sources {
		if i > 0 {
			b.WriteString("<br>")
		}
		escaped := html.EscapeString(source)
		fmt.Fprintf(b, "<a href=%q>%s</a>", escaped, escaped)
	}
	b.WriteString("</td>")
	fmt.Fprintf(b, "<td>%s</td>", html.EscapeString(formatScore(entry.Score)))
	b.WriteString("</tr>\n")
}

// formatLongDate turns "2025-09-25" into "25 September 2025". Dates
// that do not parse are rendered as-is.
func formatLongDate(date string) string {
	parsed, err := time.Parse(globaltime.DateLayout, strings.TrimSpace(date))
	if err != nil {
		return date
	}
	return parsed.Format(longDateLayout)
}

func formatScore(score float64) string {
	formatted := fmt.Sprintf("%.2f", score)
	formatted = strings.TrimRight(formatted, "0")
	return strings.TrimRight(formatted, ".")
}
