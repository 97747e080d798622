package session

import (
	"fmt"
	"unicode/utf16"
)

// ColorFor derives a stable display color from a display name.
func ColorFor(name string) string {
	var hash int32
	for _, unit := range utf16.Encode([]rune(name)) {
		hash = int32(unit) + ((hash << 5) - hash)
	}
	h := int64(hash)
	if h < 0 {
		h = -h
	}
	return fmt.Sprintf("hsl(%d, 70%%, 50%%)", h%360)
}
