package reconcile

import (
	"fmt"
	"strings"
)

// Mode selects how a transcript becomes order items.
type Mode string

const (
	// ModeSplit makes one item per comma-separated part.
	ModeSplit Mode = "split"
	// ModeVerbatim keeps the whole transcript as a single item.
	ModeVerbatim Mode = "verbatim"
)

// ParseMode validates a configured mode. Empty means split.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeSplit:
		return ModeSplit, nil
	case ModeVerbatim:
		return ModeVerbatim, nil
	}
	return "", fmt.Errorf("unknown order mode %q", s)
}

// ParseItems splits a transcript on commas, trims each part and drops empty
// parts. Order is preserved. This is purely syntactic; no menu lookup happens.
func ParseItems(transcript string) []string {
	parts := strings.Split(transcript, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}

// Items derives items for mode.
func (m Mode) Items(transcript string) []string {
	if m == ModeVerbatim {
		if t := strings.TrimSpace(transcript); t != "" {
			return []string{t}
		}
		return nil
	}
	return ParseItems(transcript)
}
