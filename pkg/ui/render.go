package ui

import (
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog/log"
)

// RenderMarkdown produces the styled terminal rendering of a message
// body. A fresh renderer per call keeps this safe to run from
// concurrent commands. Failures return "", and callers fall back to
// the plain body.
func RenderMarkdown(body string, width int, theme string) string {
	opts := []glamour.TermRendererOption{
		glamour.WithWordWrap(width),
		glamour.WithEmoji(),
	}
	switch theme {
	case "", "auto":
		opts = append(opts, glamour.WithAutoStyle())
	default:
		opts = append(opts, glamour.WithStandardStyle(theme))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		log.Warn().Err(err).Msg("failed to build markdown renderer")
		return ""
	}
	out, err := r.Render(body)
	if err != nil {
		log.Warn().Err(err).Msg("failed to render markdown")
		return ""
	}
	return out
}

// LocalStamp converts a server timestamp to a local HH:MM display
// string. Unparseable values pass through unchanged.
func LocalStamp(ts string) string {
	if ts == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("15:04")
}
