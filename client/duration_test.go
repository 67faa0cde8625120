package client

import (
	"testing"
	"time"
)

func TestChallengeDurationKnownTypes(t *testing.T) {
	tests := []struct {
		label string
		want  time.Duration
	}{
		{"SQL Bullet Surge - Easy", 8 * time.Minute},
		{"SQL Bullet Surge - Medium", 12 * time.Minute},
		{"SQL Bullet Surge - Hard", 15 * time.Minute},
		{"Python Rapid Sprint - Easy", 30 * time.Minute},
		{"Python Rapid Sprint - Medium", 60 * time.Minute},
		{"Python Rapid Sprint - Hard", 90 * time.Minute},
		{"Power Hour", 60 * time.Minute},
	}
	for _, tt := range tests {
		if got := ChallengeDuration(tt.label, 99); got != tt.want {
			t.Errorf("ChallengeDuration(%q) = %v, want %v", tt.label, got, tt.want)
		}
	}
}

func TestChallengeDurationCustom(t *testing.T) {
	if got := ChallengeDuration("Custom Challenge", 7); got != 7*time.Minute {
		t.Errorf("custom challenge with 7 minutes = %v, want 7m", got)
	}
	if got := ChallengeDuration("Custom Challenge", 0); got != 10*time.Minute {
		t.Errorf("custom challenge with no minutes = %v, want default 10m", got)
	}
}

func TestChallengeDurationUnknownFallsBack(t *testing.T) {
	if got := ChallengeDuration("Rust Speedrun - Insane", 7); got != 7*time.Minute {
		t.Errorf("unknown label = %v, want fallback 7m", got)
	}
	if got := ChallengeDuration("Rust Speedrun - Insane", -3); got != 10*time.Minute {
		t.Errorf("unknown label with bad minutes = %v, want default 10m", got)
	}
}
