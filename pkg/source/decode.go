package source

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decode converts file bytes to text. A UTF-8 or UTF-16 byte order mark is
// honoured and stripped; content without one is passed through unchanged so
// non-UTF-8 bytes inside Lua strings survive.
func Decode(data []byte) (string, error) {
	dec := unicode.BOMOverride(encoding.Nop.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", fmt.Errorf("failed to decode source: %w", err)
	}
	return string(out), nil
}
