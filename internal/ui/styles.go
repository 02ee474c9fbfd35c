// Package ui renders trackport's terminal output: run summaries, warning
// lists and markdown previews, in the Ayu theme with light/dark support.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Ayu palette, adaptive to the terminal background.
var (
	colorGreen  = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	colorYellow = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	colorRed    = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	colorGray   = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	colorBlue   = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
)

var (
	passStyle     = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle     = lipgloss.NewStyle().Foreground(colorYellow)
	failStyle     = lipgloss.NewStyle().Foreground(colorRed)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorGray)
	accentStyle   = lipgloss.NewStyle().Foreground(colorBlue)
	categoryStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
)

// Summary icons.
const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconSkip = "-"
)

// TreeChild prefixes one entry under a warning heading.
const TreeChild = "⎿ "

const (
	treeIndent = "  "
	separator  = "──────────────────────────────────────────"
)

// RenderPass styles s as a success.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderFail styles s as a failure.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderMuted styles s as secondary text.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// RenderAccent highlights s.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderCategory renders an upper-case section heading.
func RenderCategory(s string) string {
	return categoryStyle.Render(strings.ToUpper(s))
}

// RenderSeparator renders a muted horizontal rule.
func RenderSeparator() string { return mutedStyle.Render(separator) }

func RenderPassIcon() string { return passStyle.Render(IconPass) }
func RenderWarnIcon() string { return warnStyle.Render(IconWarn) }
func RenderFailIcon() string { return failStyle.Render(IconFail) }
func RenderSkipIcon() string { return mutedStyle.Render(IconSkip) }

// StatusIcon picks the pass, warn or fail icon for a count of problems.
// failed wins over warnings.
func StatusIcon(warnings, failed int) string {
	switch {
	case failed > 0:
		return RenderFailIcon()
	case warnings > 0:
		return RenderWarnIcon()
	default:
		return RenderPassIcon()
	}
}
