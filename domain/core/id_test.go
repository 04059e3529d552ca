package core

import (
	"testing"
)

func TestNewID_Unique(t *testing.T) {
	a := NewID()
	b := NewID()
	if a.IsEmpty() || b.IsEmpty() {
		t.Fatal("expected non-empty IDs")
	}
	if a == b {
		t.Errorf("expected unique IDs, got %s twice", a)
	}
}

func TestParseRunSetID_Empty(t *testing.T) {
	if _, err := ParseRunSetID("  "); err == nil {
		t.Error("expected error for blank run set ID")
	}
	id, err := ParseRunSetID("abc")
	if err != nil || id.String() != "abc" {
		t.Errorf("unexpected parse result %q, %v", id, err)
	}
}

func TestParseTimestamp_Layouts(t *testing.T) {
	cases := []string{
		"2025-03-01T10:20:30Z",
		"2025-03-01T10:20:30.123456Z",
		"2025-03-01T10:20:30",
		"2025-03-01",
	}
	for _, c := range cases {
		ts, ok := ParseTimestamp(c)
		if !ok {
			t.Errorf("expected %q to parse", c)
			continue
		}
		if ts.Time().Year() != 2025 {
			t.Errorf("unexpected year for %q: %d", c, ts.Time().Year())
		}
	}
	if _, ok := ParseTimestamp("yesterday"); ok {
		t.Error("expected free text to be rejected")
	}
}

func TestHash_Short(t *testing.T) {
	h := NewHash([]byte("runs"))
	if len(h.Short()) != 12 {
		t.Errorf("expected 12 chars, got %d", len(h.Short()))
	}
	if !h.Equals(NewHash([]byte("runs"))) {
		t.Error("expected stable hash")
	}
}
