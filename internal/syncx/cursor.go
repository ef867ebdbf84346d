package syncx

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Cursor represents a position in a locally ordered record listing
// Format: base64("<created_at_ms>|<uuid>")
// Records sort by (created_at_ms, id) so pages are stable while records are edited
type Cursor struct {
	Ms  int64     // Unix milliseconds timestamp
	UID uuid.UUID // Record id (tiebreak within the same millisecond)
}

// EncodeCursor creates a base64-encoded cursor string
// Returns empty string for zero-value cursor
func EncodeCursor(c Cursor) string {
	if c.Ms == 0 && c.UID == uuid.Nil {
		return ""
	}
	raw := fmt.Sprintf("%d|%s", c.Ms, c.UID.String())
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor string
// Returns zero-value cursor and false if invalid or empty
func DecodeCursor(s string) (Cursor, bool) {
	if s == "" {
		return Cursor{}, false
	}

	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, false
	}

	msPart, idPart, found := strings.Cut(string(b), "|")
	if !found {
		return Cursor{}, false
	}

	ms, err := strconv.ParseInt(msPart, 10, 64)
	if err != nil {
		return Cursor{}, false
	}

	id, err := uuid.Parse(idPart)
	if err != nil {
		return Cursor{}, false
	}

	return Cursor{Ms: ms, UID: id}, true
}

// Before reports whether position (ms, id) sorts strictly after the cursor,
// i.e. whether a record at that position belongs on the next page.
func (c Cursor) Before(ms int64, id string) bool {
	if ms != c.Ms {
		return ms > c.Ms
	}
	return id > c.UID.String()
}
