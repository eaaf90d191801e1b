package status

import "github.com/charmbracelet/lipgloss"

var (
	colorPass    = lipgloss.Color("#22C55E")
	colorWarn    = lipgloss.Color("#EAB308")
	colorFail    = lipgloss.Color("#EF4444")
	colorUnknown = lipgloss.Color("#6B7280")
	colorPrimary = lipgloss.Color("#4A9EFF")
	colorDim     = lipgloss.Color("#9CA3AF")
	colorWhite   = lipgloss.Color("#F9FAFB")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(colorDim)

	currentStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			MarginTop(1)

	summaryBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)

	highStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorFail)
	mediumStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorWarn)
	lowStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorPass)
	unknownStyle = lipgloss.NewStyle().Foreground(colorUnknown)
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorFail)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
)
