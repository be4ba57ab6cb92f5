package main

import (
	"testing"
	"time"
)

func TestWrapTextBreaksOnWords(t *testing.T) {
	got := wrapText("plan three sessions this week", 12)
	want := "plan three\nsessions\nthis week"
	if got != want {
		t.Fatalf("unexpected wrap:\n%s", got)
	}
	if wrapText("keep\n\nparagraphs", 40) != "keep\n\nparagraphs" {
		t.Fatalf("expected blank lines to survive wrapping")
	}
}

func TestCycleStringWraps(t *testing.T) {
	if got := cycleString(activityLevels, "active", 1); got != "" {
		t.Fatalf("expected wrap to unset, got %q", got)
	}
	if got := cycleString(activityLevels, "", -1); got != "active" {
		t.Fatalf("expected wrap to active, got %q", got)
	}
	if got := cycleString(activityLevels, "unknown", 1); got != "sedentary" {
		t.Fatalf("expected unknown value to restart the cycle, got %q", got)
	}
}

func TestShortTimeZero(t *testing.T) {
	if shortTime(time.Time{}) != "--:--" {
		t.Fatalf("expected placeholder for zero time")
	}
}
