package approval

import (
	"fmt"
	"html"

	"github.com/Kerhoff/chorebot/internal/models"
)

// Captions and notices are rendered as Telegram HTML.

func submissionCaption(child *models.User, label string, points int, date string) string {
	return fmt.Sprintf("📸 <b>%s</b> completed: %s\nDate: %s\nPoints: %d",
		html.EscapeString(child.Name), html.EscapeString(label), date, points)
}

func decisionCaption(parent, child *models.User, label string, verdict models.Verdict) string {
	mark, word := "✅", "Approved"
	if verdict == models.VerdictReject {
		mark, word = "❌", "Rejected"
	}
	return fmt.Sprintf("%s %s by %s\n<b>%s</b>: %s",
		mark, word, html.EscapeString(parent.Name), html.EscapeString(child.Name), html.EscapeString(label))
}

func childVerdictNotice(label string, verdict models.Verdict) string {
	if verdict == models.VerdictApprove {
		return fmt.Sprintf("✅ \"%s\" was approved. Well done!", html.EscapeString(label))
	}
	return fmt.Sprintf("❌ \"%s\" was rejected. Please do it again and send new proof.", html.EscapeString(label))
}

const (
	captionReplaced  = "🔁 Replaced by a newer submission"
	captionWithdrawn = "↩️ Withdrawn by the child"
	captionResolved  = "ℹ️ Already resolved"
)
