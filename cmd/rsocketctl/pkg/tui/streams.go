package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ciychodianda/rsocket-go/rsocket"
)

// renderStreams renders the live stream table as a lipgloss-styled table.
func renderStreams(streams []rsocket.StreamInfo, width int) string {
	if len(streams) == 0 {
		return dimStyle.Render("  No active streams.")
	}

	colID := colWidth(width, 0.14)
	colKind := colWidth(width, 0.24)
	colLocal := colWidth(width, 0.16)
	colRemote := colWidth(width, 0.16)
	colOut := colWidth(width, 0.15)
	colIn := colWidth(width, 0.15)

	header := strings.Join([]string{
		headerCellStyle.Width(colID).Render("STREAM ID"),
		headerCellStyle.Width(colKind).Render("KIND"),
		headerCellStyle.Width(colLocal).Render("LOCAL"),
		headerCellStyle.Width(colRemote).Render("REMOTE"),
		headerCellStyle.Width(colOut).Render("OUT DEMAND"),
		headerCellStyle.Width(colIn).Render("IN DEMAND"),
	}, "")

	var rows []string
	rows = append(rows, header)
	for i, s := range streams {
		style := rowStyle
		if i%2 == 0 {
			style = altRowStyle
		}
		row := strings.Join([]string{
			style.Width(colID).Render(fmt.Sprintf("0x%08x", uint32(s.ID))),
			style.Width(colKind).Render(s.Kind.String()),
			halfStyle(s.LocalHalf).Width(colLocal).Render(halfLabel(s.LocalHalf)),
			halfStyle(s.RemoteHalf).Width(colRemote).Render(halfLabel(s.RemoteHalf)),
			style.Width(colOut).Render(fmt.Sprintf("%d", s.OutboundDemand)),
			style.Width(colIn).Render(fmt.Sprintf("%d", s.InboundDemand)),
		}, "")
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}

func halfLabel(h rsocket.HalfState) string {
	if h == rsocket.HalfOpen {
		return "open"
	}
	return "closed"
}

func halfStyle(h rsocket.HalfState) lipgloss.Style {
	if h == rsocket.HalfOpen {
		return halfOpenStyle
	}
	return halfClosedStyle
}

func colWidth(total int, fraction float64) int {
	w := int(float64(total) * fraction)
	if w < 8 {
		w = 8
	}
	return w
}
