package review

import "github.com/charmbracelet/lipgloss"

// theme groups reusable styles for review UI regions.
type theme struct {
	header       lipgloss.Style
	headerMeta   lipgloss.Style
	divider      lipgloss.Style
	tab          lipgloss.Style
	tabActive    lipgloss.Style
	sender       lipgloss.Style
	timestamp    lipgloss.Style
	placeholder  lipgloss.Style
	summaryBox   lipgloss.Style
	summaryTitle lipgloss.Style
	confirmBox   lipgloss.Style
	errorBox     lipgloss.Style
	status       lipgloss.Style
	statusBusy   lipgloss.Style
	statusOK     lipgloss.Style
	statusErr    lipgloss.Style
	hint         lipgloss.Style
	viewport     lipgloss.Style
}

func defaultTheme() theme {
	return theme{
		header: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("22")),
		headerMeta: lipgloss.NewStyle().
			Foreground(lipgloss.Color("151")),
		divider: lipgloss.NewStyle().
			Foreground(lipgloss.Color("65")),
		tab: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Padding(0, 1),
		tabActive: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("16")).
			Background(lipgloss.Color("114")).
			Padding(0, 1),
		sender: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")),
		timestamp: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
		placeholder: lipgloss.NewStyle().
			Foreground(lipgloss.Color("109")).
			Italic(true),
		summaryBox: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("44")).
			Padding(0, 1),
		summaryTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("16")).
			Background(lipgloss.Color("44")).
			Padding(0, 1),
		confirmBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Foreground(lipgloss.Color("229")).
			Padding(0, 1),
		errorBox: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("203")).
			Foreground(lipgloss.Color("203")).
			Padding(0, 1),
		status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Bold(true),
		statusBusy: lipgloss.NewStyle().
			Foreground(lipgloss.Color("222")).
			Bold(true),
		statusOK: lipgloss.NewStyle().
			Foreground(lipgloss.Color("114")).
			Bold(true),
		statusErr: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true),
		hint: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
		viewport: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("65")).
			Padding(0, 1),
	}
}
