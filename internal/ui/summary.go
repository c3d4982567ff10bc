package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/Prajwalkadam29/Decentralized-Chat-App/internal/utils"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// SessionSummary is printed when a chat session ends.
type SessionSummary struct {
	Room             string
	Duration         time.Duration
	PeersSeen        int
	MessagesSent     int
	MessagesReceived int
	FilesSent        int
	FilesReceived    int
	BytesSent        int64
	BytesReceived    int64
}

// WriteSummary renders the summary with go-pretty.
func WriteSummary(w io.Writer, s SessionSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Session Summary")
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})

	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Room", s.Room},
		{"Duration", utils.FormatDuration(s.Duration)},
		{"Peers seen", s.PeersSeen},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Messages sent", s.MessagesSent},
		{"Messages received", s.MessagesReceived},
		{"Files sent", fmt.Sprintf("%d (%s)", s.FilesSent, utils.FormatSize(s.BytesSent))},
		{"Files received", fmt.Sprintf("%d (%s)", s.FilesReceived, utils.FormatSize(s.BytesReceived))},
	})
	t.Render()
}
