package ui

import (
	"charm.land/glamour/v2"
)

// maxReadableWidth caps word wrap on wide terminals.
const maxReadableWidth = 100

// RenderMarkdown renders converted issue text for the terminal. It returns
// md unchanged when color is disabled or rendering fails.
func RenderMarkdown(md string) string {
	if !ShouldUseColor() {
		return md
	}
	out, err := RenderMarkdownWidth(md, TerminalWidth(80), HasDarkBackground())
	if err != nil {
		return md
	}
	return out
}

// RenderMarkdownWidth renders md wrapped at width with the dark or light
// glamour style.
func RenderMarkdownWidth(md string, width int, dark bool) (string, error) {
	if width > maxReadableWidth {
		width = maxReadableWidth
	}
	style := "light"
	if dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}
