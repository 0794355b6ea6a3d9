package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/fluxshell/notifd/internal/history"
)

// plainFormatter renders entries as indented terminal text.
type plainFormatter struct {
	opts Options
}

func (f *plainFormatter) Format(w io.Writer, entries []history.Entry) error {
	for i, e := range entries {
		if err := f.formatEntry(w, i+1, e); err != nil {
			return err
		}
	}
	return nil
}

func (f *plainFormatter) formatEntry(w io.Writer, index int, e history.Entry) error {
	var sb strings.Builder

	if f.opts.ShowIndex {
		fmt.Fprintf(&sb, "[%d] ", index)
	}
	if e.AppName != "" {
		fmt.Fprintf(&sb, "<%s> ", e.AppName)
	}
	sb.WriteString(e.Summary)
	if f.opts.ShowTime && !e.RetiredAt.IsZero() {
		fmt.Fprintf(&sb, " (%s", humanize.Time(e.RetiredAt))
		if f.opts.ShowReason && e.Reason != "" {
			fmt.Fprintf(&sb, ", %s", e.Reason)
		}
		sb.WriteString(")")
	} else if f.opts.ShowReason && e.Reason != "" {
		fmt.Fprintf(&sb, " (%s)", e.Reason)
	}
	sb.WriteString("\n")

	// A negative BodyMaxLen omits bodies entirely.
	if e.Body != "" && f.opts.BodyMaxLen >= 0 {
		body := sanitizeBody(e.Body, f.opts.BodyMaxLen)
		if body != "" {
			sb.WriteString("    " + body + "\n")
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// sanitizeBody flattens body text for single-line display.
func sanitizeBody(body string, maxLen int) string {
	body = strings.ReplaceAll(body, "\n", " ")
	body = strings.ReplaceAll(body, "\r", "")
	for strings.Contains(body, "  ") {
		body = strings.ReplaceAll(body, "  ", " ")
	}
	body = strings.TrimSpace(body)

	if maxLen > 0 && len(body) > maxLen {
		if maxLen <= 3 {
			return body[:maxLen]
		}
		return body[:maxLen-3] + "..."
	}
	return body
}
