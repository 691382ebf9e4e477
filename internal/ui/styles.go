// Package ui provides terminal styling for jirabot CLI output.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Ayu theme color palette
// Dark: https://terminalcolors.com/themes/ayu/dark/
// Light: https://terminalcolors.com/themes/ayu/light/
var (
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300", // ayu light bright green
		Dark:  "#c2d94c", // ayu dark bright green
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171", // ayu light bright red
		Dark:  "#f07178", // ayu dark bright red
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99", // ayu light muted
		Dark:  "#6c7680", // ayu dark muted
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6", // ayu light bright blue
		Dark:  "#59c2ff", // ayu dark bright blue
	}
)

var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)

	// SpeakerStyle labels who said a line in the simulator transcript.
	SpeakerStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

	// ReplyStyle indents bot replies under their speaker label.
	ReplyStyle = lipgloss.NewStyle().PaddingLeft(2)
)

const (
	IconPass = "✓"
	IconFail = "✗"
)

// Enabled toggles styling. When false every Render* helper returns its
// input unchanged.
var Enabled = true

func render(style lipgloss.Style, s string) string {
	if !Enabled {
		return s
	}
	return style.Render(s)
}

// RenderPass renders text with pass (green) styling
func RenderPass(s string) string {
	return render(PassStyle, s)
}

// RenderFail renders text with fail (red) styling
func RenderFail(s string) string {
	return render(FailStyle, s)
}

// RenderMuted renders text with muted (gray) styling
func RenderMuted(s string) string {
	return render(MutedStyle, s)
}

// RenderAccent renders text with accent (blue) styling
func RenderAccent(s string) string {
	return render(AccentStyle, s)
}

// RenderSpeaker renders a transcript label such as "jirabot:".
func RenderSpeaker(name string) string {
	return render(SpeakerStyle, name+":")
}

// RenderReply renders one bot reply. Multi-line replies stay aligned under
// the first line.
func RenderReply(text string) string {
	if !Enabled {
		lines := strings.Split(text, "\n")
		for i := range lines {
			lines[i] = "  " + lines[i]
		}
		return strings.Join(lines, "\n")
	}
	return ReplyStyle.Render(text)
}
