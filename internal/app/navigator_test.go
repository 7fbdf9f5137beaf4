package app

import "testing"

func TestNavigatorBounds(t *testing.T) {
	nav := NewNavigator(3)

	if got := nav.Retreat(); got != 0 {
		t.Fatalf("retreat at 0 should stay at 0, got %d", got)
	}
	nav.Advance()
	nav.Advance()
	if got := nav.Advance(); got != 2 {
		t.Fatalf("advance at last index should stay at 2, got %d", got)
	}
	if got := nav.JumpTo(10); got != 2 {
		t.Fatalf("jump past end should clamp to 2, got %d", got)
	}
	if got := nav.JumpTo(-4); got != 0 {
		t.Fatalf("jump before start should clamp to 0, got %d", got)
	}
	if got := nav.JumpTo(1); got != 1 {
		t.Fatalf("jump to 1, got %d", got)
	}
}

func TestNavigatorEmpty(t *testing.T) {
	nav := NewNavigator(0)
	if nav.Advance() != 0 || nav.Retreat() != 0 {
		t.Fatalf("empty navigator must stay at 0")
	}
}
