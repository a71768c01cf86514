// internal/letters/letters.go
package letters

import (
	"errors"
	"unicode"
)

// ErrUnmappedCharacter is returned when a character has no flap on the units.
var ErrUnmappedCharacter = errors.New("letters: unmapped character")

// NotFound is the index reported for characters outside the alphabet.
const NotFound = -1

// alphabet is the flap order of every unit. Index 0 is the blank flap.
// Protocol-locked: the units address flaps by position in this table.
var alphabet = [...]rune{
	' ', 'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M', 'N',
	'O', 'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z', '$', '&', '#',
	'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', ':', '.', '-', '?', '!',
}

// suggestedOffsets[i] is the nominal rotor offset at which a unit whose
// magnetic zero sits on alphabet[i] shows the blank flap.
var suggestedOffsets = [len(alphabet)]int{
	0, 1993, 1947, 1902, 1857, 1812, 1766, 1721, 1676, 1630, 1585, 1540, 1495, 1449, 1404,
	1359, 1313, 1268, 1223, 1178, 1132, 1087, 1042, 996, 951, 906, 860, 815, 770, 725,
	679, 634, 589, 543, 498, 453, 408, 362, 317, 272, 226, 181, 136, 91, 45,
}

// Count is the number of flaps per unit.
const Count = len(alphabet)

// IndexOf returns the flap index for c, case-insensitively.
// The first match wins. Characters outside the alphabet yield NotFound.
func IndexOf(c rune) int {
	u := unicode.ToUpper(c)
	for i, l := range alphabet {
		if u == l {
			return i
		}
	}
	return NotFound
}

// Lookup is IndexOf with an error for callers that branch on errors.Is.
func Lookup(c rune) (int, error) {
	if i := IndexOf(c); i != NotFound {
		return i, nil
	}
	return NotFound, ErrUnmappedCharacter
}

// Letter returns the character for a flap index.
// Out-of-range indices map to the blank flap.
func Letter(index int) rune {
	if index < 0 || index >= len(alphabet) {
		return ' '
	}
	return alphabet[index]
}

// SuggestedOffset returns the default offset for a unit calibrated with its
// magnetic zero on the given letter index. Out-of-range indices yield 0.
func SuggestedOffset(index int) int {
	if index < 0 || index >= len(suggestedOffsets) {
		return 0
	}
	return suggestedOffsets[index]
}

// Valid reports whether index addresses a flap.
func Valid(index int) bool {
	return index >= 0 && index < len(alphabet)
}
