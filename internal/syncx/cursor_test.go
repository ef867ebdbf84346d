package syncx

import (
	"testing"

	"github.com/google/uuid"
)

var cursorID = uuid.MustParse("c1d9b7dc-a1b2-4c3d-9e8f-7a6b5c4d3e2f")

func TestCursorEncoding(t *testing.T) {
	if got := EncodeCursor(Cursor{}); got != "" {
		t.Errorf("EncodeCursor(zero) = %q, want empty", got)
	}

	c := Cursor{Ms: 1730635200000, UID: cursorID}
	enc := EncodeCursor(c)
	if enc != "MTczMDYzNTIwMDAwMHxjMWQ5YjdkYy1hMWIyLTRjM2QtOWU4Zi03YTZiNWM0ZDNlMmY" {
		t.Errorf("EncodeCursor() = %q", enc)
	}
	got, ok := DecodeCursor(enc)
	if !ok || got != c {
		t.Errorf("DecodeCursor(%q) = (%+v, %v), want (%+v, true)", enc, got, ok, c)
	}
}

func TestDecodeCursorRejects(t *testing.T) {
	for name, in := range map[string]string{
		"empty":         "",
		"bad base64":    "not-base64!!!",
		"no separator":  "MTIzNDU2Nzg5MA",
		"bad timestamp": "YWJjfGMxZDliN2RjLWExYjItNGMzZC05ZThmLTdhNmI1YzRkM2UyZg",
		"bad uuid":      "MTIzNDU2fG5vdC1hLXV1aWQ",
	} {
		t.Run(name, func(t *testing.T) {
			if got, ok := DecodeCursor(in); ok {
				t.Errorf("DecodeCursor(%q) = %+v, want rejection", in, got)
			}
		})
	}
}

func TestCursorBefore(t *testing.T) {
	c := Cursor{Ms: 1730635200000, UID: cursorID}

	tests := []struct {
		name string
		ms   int64
		id   string
		want bool
	}{
		{"later timestamp", 1730635200001, "00000000-0000-0000-0000-000000000000", true},
		{"earlier timestamp", 1730635199999, "ffffffff-ffff-ffff-ffff-ffffffffffff", false},
		{"same timestamp higher id", 1730635200000, "d0000000-0000-0000-0000-000000000000", true},
		{"same position", 1730635200000, cursorID.String(), false},
		{"same timestamp lower id", 1730635200000, "a0000000-0000-0000-0000-000000000000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Before(tt.ms, tt.id); got != tt.want {
				t.Errorf("Before(%d, %s) = %v, want %v", tt.ms, tt.id, got, tt.want)
			}
		})
	}
}
