package render

import (
	"strings"
	"unicode/utf8"
)

// breakAfter holds the punctuation a line may end on.
var breakAfter = map[rune]struct{}{
	'.': {}, '!': {}, '?': {}, ';': {}, ':': {}, ',': {}, ')': {}, ']': {}, '-': {}, '…': {},
	'。': {}, '！': {}, '？': {}, '；': {}, '：': {}, '，': {}, '、': {}, '）': {},
}

// wrapText breaks text into lines of at most maxCPL runes, preferring
// spaces and punctuation as break points.
func wrapText(text string, maxCPL int) string {
	text = strings.Join(strings.Fields(text), " ")
	var lines []string
	for utf8.RuneCountInString(text) > maxCPL {
		runes := []rune(text)
		pos := findSplitPosition(runes, maxCPL)
		lines = append(lines, strings.TrimSpace(string(runes[:pos])))
		text = strings.TrimSpace(string(runes[pos:]))
	}
	if text != "" {
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n")
}

// findSplitPosition returns the rune index to split at, scanning backwards
// from maxLen for a space or a break punctuation mark. Without either the
// line is cut hard at maxLen.
func findSplitPosition(runes []rune, maxLen int) int {
	if len(runes) <= maxLen {
		return len(runes)
	}
	for i := min(maxLen, len(runes)-1); i > 0; i-- {
		r := runes[i]
		if r == ' ' {
			return i
		}
		if _, ok := breakAfter[r]; ok && i < maxLen {
			return i + 1
		}
	}
	return maxLen
}
