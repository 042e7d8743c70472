// Package cli provides the styled interactive review console.
package cli

import "github.com/charmbracelet/lipgloss"

// Review console palette.
var (
	PrimaryColor = lipgloss.Color("#7C6FF0") // indigo
	SuccessColor = lipgloss.Color("#4ECDC4") // teal, approvals
	WarningColor = lipgloss.Color("#FFE66D") // yellow, pending review
	ErrorColor   = lipgloss.Color("#FF6B6B") // red, denials
	SubtleColor  = lipgloss.Color("#666666")
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor).MarginBottom(1)
	PromptStyle  = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor)
	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ErrorColor)
	SubtleStyle  = lipgloss.NewStyle().Foreground(SubtleColor)

	// BoxStyle frames one case card in the review queue.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SubtleColor).
			Padding(1, 2)
)

const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	ScaleIcon   = "⚖️"
	RobotIcon   = "🤖"
)

func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

func FormatWarning(message string) string {
	return WarningStyle.Render(message)
}

func FormatTitle(title string) string {
	return TitleStyle.Render(ScaleIcon + " " + title)
}

func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " → ")
}

// RenderBox draws content inside a bordered card with a title line.
func RenderBox(title, content string) string {
	heading := TitleStyle.UnsetMargins().Render(title)
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, heading, content))
}
