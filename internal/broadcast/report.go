package broadcast

import (
	"fmt"
	"strings"

	"multipost-bot/internal/locales"

	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// FormatReport renders the aggregate fan-out outcome for the initiating user:
// localized counts followed by one line per recipient, in the same order the
// recipients were processed.
func FormatReport(localizer *i18n.Localizer, report *Report) string {
	var b strings.Builder

	b.WriteString(locales.GetMessage(localizer, "MsgBroadcastComplete", map[string]interface{}{
		"Success": report.Success,
		"Failed":  report.Failed,
		"Total":   report.Total,
	}, nil))
	b.WriteString("\n")

	for _, result := range report.Results {
		if result.Err != nil {
			fmt.Fprintf(&b, "\n❌ %s: %v", result.Recipient.Title, result.Err)
		} else {
			fmt.Fprintf(&b, "\n✅ %s", result.Recipient.Title)
		}
	}

	if report.Failed > 0 {
		b.WriteString("\n\n")
		b.WriteString(locales.GetMessage(localizer, "MsgBroadcastFailedNote", nil, nil))
	}

	return b.String()
}
