package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/registry-portal/internal/theme"
)

// Layout manages the terminal frame: navbar on top, an optional alert
// banner, the content area and the status bar.
type Layout struct {
	Width           int
	Height          int
	NavbarHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		NavbarHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height left for content once the navbar, the
// status bar and a banner of bannerHeight lines are drawn.
func (l Layout) ContentHeight(bannerHeight int) int {
	h := l.Height - l.NavbarHeight - l.StatusBarHeight - bannerHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderBar renders a full-width bar with left and right aligned parts.
func (l Layout) RenderBar(style lipgloss.Style, left, right string) string {
	leftRendered := style.Render(left)

	var rightRendered string
	if right != "" {
		rightRendered = style.Render(right)
	}

	gap := l.Width -
		lipgloss.Width(leftRendered) -
		lipgloss.Width(rightRendered)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftRendered,
		filler,
		rightRendered,
	)
}

// RenderStatusBar renders the bottom bar with keyboard hints, or with the
// latest failure when errMsg is set.
func (l Layout) RenderStatusBar(hints, errMsg string) string {
	if errMsg != "" {
		return l.RenderBar(theme.ErrorBarStyle, errMsg, "")
	}
	return l.RenderBar(theme.StatusBarStyle, hints, "")
}

// Compose joins the frame parts vertically. An empty banner is skipped.
func (l Layout) Compose(navbar, banner, content, statusBar string) string {
	parts := []string{navbar}
	if banner != "" {
		parts = append(parts, banner)
	}
	parts = append(parts, content, statusBar)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
