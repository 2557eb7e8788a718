package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/botrelay/internal/relay"
)

// DeviceTable renders a server status as a device list box.
func DeviceTable(status *relay.Status, width int) string {
	width = max(width, MinTerminalWidth)

	lines := []string{
		"",
		HeaderParamKeyStyle.Render("Server:") + " " + HeaderParamValueStyle.Render("ws://"+status.Address),
		"",
	}

	if status.Count == 0 {
		lines = append(lines, WarningTitleStyle.Render("  "+WarningMarker+"  No devices connected"))
	} else {
		lines = append(lines, SuccessTitleStyle.Render(fmt.Sprintf("  %s  Connected devices: %d", SuccessMarker, status.Count)), "")
		for i, id := range status.Connections {
			lines = append(lines, DeviceIndexStyle.Render(fmt.Sprintf("device %d", i+1))+
				DeviceAddrStyle.Render(DeviceMarker+" "+id))
		}
	}
	lines = append(lines, "")

	color := SuccessColor
	if status.Count == 0 {
		color = WarningColor
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Width(width - 2).
		Render(strings.Join(lines, "\n"))
}
