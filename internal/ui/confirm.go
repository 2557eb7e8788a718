package ui

import (
	"bufio"
	"io"
	"strings"
)

// Confirm prints question and reads a yes/no answer from in. Anything but
// "y" or "yes" (including EOF) is a no.
func Confirm(in io.Reader, out io.Writer, question string) bool {
	_, _ = io.WriteString(out, WarningTitleStyle.Render(WarningMarker+"  "+question)+" [y/N]: ")

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		_, _ = io.WriteString(out, "\n")
		return false
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
