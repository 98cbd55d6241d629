package flasher

import "regexp"

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

// StripANSI removes terminal colour and cursor sequences from a line.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
