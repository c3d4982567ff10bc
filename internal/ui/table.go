package ui

import (
	"fmt"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/utils"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// PeerRow is one line of the roster table.
type PeerRow struct {
	Name       string
	PeerID     string
	Role       string
	Channel    string
	Connection string
	Secured    bool
	Linked     bool
}

// RosterView renders the room roster with link state using lipgloss/table.
func RosterView(rows []PeerRow) string {
	if len(rows) == 0 {
		return MutedStyle.Render("Nobody else is here yet")
	}

	headers := []string{"Name", "Peer", "Role", "Channel", "Connection", "E2E"}

	var cells [][]string
	for _, r := range rows {
		role, channel, conn := r.Role, r.Channel, r.Connection
		if !r.Linked {
			role, channel, conn = "-", "-", "-"
		}
		secured := "no"
		if r.Secured {
			secured = IconLock
		}
		cells = append(cells, []string{
			utils.TruncateString(r.Name, 24),
			utils.TruncateString(r.PeerID, 13),
			role,
			channel,
			conn,
			secured,
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(cells...).
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

func RenderRoster(rows []PeerRow) {
	fmt.Println(RosterView(rows))
}
