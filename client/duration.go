package client

import (
	"log"
	"time"
)

const defaultCustomMinutes = 10

// challengeMinutes maps a challenge-type label to its allotted minutes.
var challengeMinutes = map[string]int{
	"SQL Bullet Surge - Easy":      8,
	"SQL Bullet Surge - Medium":    12,
	"SQL Bullet Surge - Hard":      15,
	"Python Rapid Sprint - Easy":   30,
	"Python Rapid Sprint - Medium": 60,
	"Python Rapid Sprint - Hard":   90,
	"Power Hour":                   60,
}

// ChallengeDuration derives the allotted time for a challenge-type label.
// "Custom Challenge" and any unrecognized label fall back to the
// caller-supplied minutes (default 10) rather than failing; unknown labels
// are logged for diagnostics, never rejected.
func ChallengeDuration(label string, customMinutes int) time.Duration {
	if minutes, ok := challengeMinutes[label]; ok {
		return time.Duration(minutes) * time.Minute
	}

	if customMinutes <= 0 {
		customMinutes = defaultCustomMinutes
	}
	if label != "Custom Challenge" {
		log.Printf("Unknown challenge type %q, falling back to %d minutes", label, customMinutes)
	}
	return time.Duration(customMinutes) * time.Minute
}
