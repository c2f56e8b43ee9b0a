package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// RoomInfo is the post-create summary shown to a host.
type RoomInfo struct {
	RoomID   string
	Title    string
	RoomLink string
}

func NewRoomInfo(roomID, title, roomLink string) *RoomInfo {
	return &RoomInfo{
		RoomID:   roomID,
		Title:    title,
		RoomLink: roomLink,
	}
}

func (r *RoomInfo) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Room Created!\n\n%s Title:      %s\n%s Room ID:    %s\n%s Share Link: %s",
		IconSuccess,
		IconScreen, r.Title,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconWeb, MutedStyle.Render(r.RoomLink),
	)

	return boxStyle.Render(content)
}

// Render outputs the box directly to stdout
func (r *RoomInfo) Render() {
	fmt.Println(r.View())
}

// SessionSummary is the table printed after a session ends.
type SessionSummary struct {
	RoomID   string
	Role     string
	Duration string
	Outcome  string
}

func SessionSummaryView(summary SessionSummary) string {
	headers := []string{"Metric", "Value"}
	rows := [][]string{
		{"Room", summary.RoomID},
		{"Role", summary.Role},
		{"Duration", summary.Duration},
		{"Outcome", summary.Outcome},
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func RenderSessionSummary(summary SessionSummary) {
	fmt.Println(SessionSummaryView(summary))
}
