package domain

import "strings"

// LogCategory classifies a backend log line by the marker it carries.
type LogCategory string

const (
	LogCategoryError      LogCategory = "error"
	LogCategorySuccess    LogCategory = "success"
	LogCategoryBotCycle   LogCategory = "bot"
	LogCategoryGeneration LogCategory = "generation"
	LogCategoryPublish    LogCategory = "publish"
	LogCategoryInfo       LogCategory = "info"
)

// categoryMarkers is checked in order; the first marker found wins.
var categoryMarkers = []struct {
	marker   string
	category LogCategory
}{
	{"❌", LogCategoryError},
	{"✅", LogCategorySuccess},
	{"🤖", LogCategoryBotCycle},
	{"🧠", LogCategoryGeneration},
	{"📤", LogCategoryPublish},
}

// LogEntry is one immutable line emitted by a backend operation, formatted as
// "[HH:MM:SS] <marker> text".
type LogEntry string

// Category returns the category implied by the line's marker symbol.
func (l LogEntry) Category() LogCategory {
	for _, m := range categoryMarkers {
		if strings.Contains(string(l), m.marker) {
			return m.category
		}
	}
	return LogCategoryInfo
}

// Clock returns the HH:MM:SS prefix, or "" when the line has none.
func (l LogEntry) Clock() string {
	if !l.hasClock() {
		return ""
	}
	return string(l[1:9])
}

// Message returns the line without its timestamp prefix.
func (l LogEntry) Message() string {
	if !l.hasClock() {
		return string(l)
	}
	return string(l[11:])
}

func (l LogEntry) hasClock() bool {
	return len(l) >= 11 && l[0] == '[' && l[9] == ']' && l[10] == ' '
}
