package executor

import (
	"strconv"
	"strings"
)

// Marker constants shared with the injected trailer commands.
// Format: ##end_of_execution## and ##active_line N##
const (
	EndMarker        = "##end_of_execution##"
	activeLinePrefix = "##active_line"
	markerSuffix     = "##"
)

// HasEndMarker reports whether line contains the end-of-execution marker.
func HasEndMarker(line string) bool {
	return strings.Contains(line, EndMarker)
}

// StripEndMarker removes the first end-of-execution marker from line.
func StripEndMarker(line string) string {
	return strings.Replace(line, EndMarker, "", 1)
}

// ActiveLineMarker returns the marker text announcing that line n is about
// to run.
func ActiveLineMarker(n int) string {
	return activeLinePrefix + " " + strconv.Itoa(n) + markerSuffix
}

// ParseActiveLine extracts n from a line holding exactly an active line
// marker.
func ParseActiveLine(line string) (int, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, activeLinePrefix) || !strings.HasSuffix(line, markerSuffix) {
		return 0, false
	}
	body := strings.TrimSpace(line[len(activeLinePrefix) : len(line)-len(markerSuffix)])
	n, err := strconv.Atoi(body)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
