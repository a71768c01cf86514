// internal/letters/align.go
package letters

import (
	"fmt"
	"strings"
	"unicode"
)

// Alignment selects how a message is fitted onto the configured units.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignRight  Alignment = "right"
	AlignCenter Alignment = "center"
)

// ParseAlignment accepts "left", "right" or "center".
func ParseAlignment(s string) (Alignment, error) {
	switch a := Alignment(strings.ToLower(strings.TrimSpace(s))); a {
	case AlignLeft, AlignRight, AlignCenter:
		return a, nil
	}
	return "", fmt.Errorf("letters: unknown alignment %q", s)
}

// Align fits message onto n units. Unknown alignments behave like left.
// The result always has exactly n characters (n < 0 is treated as 0).
func Align(a Alignment, message string, n int) string {
	switch a {
	case AlignRight:
		return Right(message, n)
	case AlignCenter:
		return Center(message, n)
	default:
		return Left(message, n)
	}
}

// Left keeps the first n characters, padding spaces on the right.
func Left(message string, n int) string {
	r := []rune(message)
	if n <= 0 {
		return ""
	}
	if len(r) > n {
		r = r[:n]
	}
	return clean(string(r) + strings.Repeat(" ", n-len(r)))
}

// Right keeps the last n characters, padding spaces on the left.
func Right(message string, n int) string {
	r := []rune(message)
	if n <= 0 {
		return ""
	}
	if len(r) > n {
		r = r[len(r)-n:]
	}
	return clean(strings.Repeat(" ", n-len(r)) + string(r))
}

// Center keeps the middle n characters or pads evenly.
// When the padding is odd the left side gets the smaller half.
func Center(message string, n int) string {
	r := []rune(message)
	if n <= 0 {
		return ""
	}
	if len(r) > n {
		start := (len(r) - n) / 2
		return clean(string(r[start : start+n]))
	}
	left := (n - len(r)) / 2
	right := n - len(r) - left
	return clean(strings.Repeat(" ", left) + string(r) + strings.Repeat(" ", right))
}

// clean uppercases rune by rune so the character count never changes.
func clean(s string) string {
	return strings.Map(unicode.ToUpper, s)
}
