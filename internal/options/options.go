package options

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

type driverKey struct{}

// WithDriver forces decoding with the named driver instead of resolving one
// from the telegram header.
func WithDriver(ctx context.Context, name string) context.Context {
	name = strings.TrimSpace(name)
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, driverKey{}, name)
}

// Driver returns the forced driver name, if any.
func Driver(ctx context.Context) string {
	if v, ok := ctx.Value(driverKey{}).(string); ok {
		return v
	}
	return ""
}

// CleanHex removes whitespace, the '|' and '_' separators used when pasting
// annotated telegrams, and a leading 0x. The result is upper case.
func CleanHex(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if unicode.IsSpace(r) || r == '|' || r == '_' {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return strings.TrimPrefix(b.String(), "0X")
}

// DecodeHex parses a telegram given as hex text.
func DecodeHex(input string) ([]byte, error) {
	clean := CleanHex(input)
	if clean == "" {
		return nil, fmt.Errorf("empty telegram")
	}
	if len(clean)%2 != 0 {
		return nil, fmt.Errorf("hex telegram must contain an even number of digits, got %d", len(clean))
	}
	decoded := make([]byte, len(clean)/2)
	if _, err := hex.Decode(decoded, []byte(clean)); err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return decoded, nil
}
