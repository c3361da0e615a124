package service

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	labelValueRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9 \t\-.]*?[ \t]*[:=]`)
	blockEndRe   = regexp.MustCompile(`[.?!:]$`)
	spaceRunRe   = regexp.MustCompile(`\s+`)
)

// NormalizeText rejoins lines that a PDF text layer broke mid-phrase and
// collapses whitespace. A line that starts with "Label:" or a digit always
// begins a new logical line, so label/value pairs and table rows survive.
func NormalizeText(raw string) string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(spaceRunRe.ReplaceAllString(line, " "))
		if line == "" {
			continue
		}
		if n := len(lines); n > 0 && continuesLine(line, lines[n-1]) {
			lines[n-1] += " " + line
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func continuesLine(line, prev string) bool {
	if labelValueRe.MatchString(line) || blockEndRe.MatchString(prev) {
		return false
	}
	first, _ := utf8.DecodeRuneInString(line)
	switch {
	case unicode.IsDigit(first):
		return false
	case unicode.IsLower(first):
		return true
	case strings.ContainsRune(",;&)-", first):
		return true
	}
	last, _ := utf8.DecodeLastRuneInString(prev)
	return strings.ContainsRune(",&-/", last)
}
