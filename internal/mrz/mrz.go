// Package mrz locates the two machine-readable lines in recognized text and
// slices them into raw, uncleaned field values.
//
// Supported layouts:
//   - TD3 (passport): 2 lines x 44 chars
//   - TD2 (visa/ID):  2 lines x 36 chars
//
// Check digits are sliced past but never validated.
package mrz

import (
	"strings"
	"unicode"
)

// Filler is the MRZ padding and separator glyph.
const Filler = '<'

const (
	td3LineLength = 44
	td2LineLength = 36

	// Lines shorter than this are never MRZ candidates.
	minLineLength = 30
	// Lines at least this long are treated as TD3.
	td3Threshold = 40
)

// RawBundle holds the field values exactly as recognized. An empty string
// means the slot was not recognized.
type RawBundle struct {
	DocumentCode   string
	IssuerCode     string
	Surname        string
	GivenNames     string
	PassportNumber string
	Nationality    string
	BirthDateCode  string
	Sex            string
	ExpiryDateCode string
	OptionalData   string

	Line1 string
	Line2 string
}

// RawMRZ returns both lines joined by a newline, or "" when neither line was captured.
func (b *RawBundle) RawMRZ() string {
	if b.Line1 == "" && b.Line2 == "" {
		return ""
	}
	return b.Line1 + "\n" + b.Line2
}

// FindLines returns the last two lines of text that are long enough to be
// MRZ lines. Spaces and non-ASCII characters are removed and letters
// uppercased first, since OCR engines tend to split filler runs. Parse slices
// by byte offset, so every kept line is pure ASCII.
func FindLines(text string) (line1, line2 string, ok bool) {
	var candidates []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.ToUpper(strings.Map(asciiNonSpace, raw))
		if len(line) >= minLineLength {
			candidates = append(candidates, line)
		}
	}

	if len(candidates) < 2 {
		return "", "", false
	}

	n := len(candidates)
	return candidates[n-2], candidates[n-1], true
}

func asciiNonSpace(r rune) rune {
	if r > unicode.MaxASCII || unicode.IsSpace(r) {
		return -1
	}
	return r
}

// Parse slices two MRZ lines into a RawBundle. Short lines are padded with
// fillers so that truncated OCR output still yields whatever fields it covers.
func Parse(line1, line2 string) *RawBundle {
	length := td2LineLength
	optionalEnd := 35
	if len(line1) >= td3Threshold || len(line2) >= td3Threshold {
		length = td3LineLength
		optionalEnd = 42
	}

	l1 := padLine(line1, length)
	l2 := padLine(line2, length)

	b := &RawBundle{
		Line1: line1,
		Line2: line2,
	}

	// Line 1: document code, issuing state, then SURNAME<<GIVEN<NAMES
	b.DocumentCode = l1[0:2]
	b.IssuerCode = l1[2:5]
	nameParts := strings.SplitN(l1[5:], "<<", 2)
	b.Surname = nameParts[0]
	if len(nameParts) == 2 {
		b.GivenNames = nameParts[1]
	}

	// Line 2: number, check, nationality, birth, check, sex, expiry, check, optional
	b.PassportNumber = l2[0:9]
	b.Nationality = l2[10:13]
	b.BirthDateCode = l2[13:19]
	b.Sex = l2[20:21]
	b.ExpiryDateCode = l2[21:27]
	b.OptionalData = l2[28:optionalEnd]

	return b
}

// Read runs FindLines and Parse over recognized text.
func Read(text string) (*RawBundle, bool) {
	line1, line2, ok := FindLines(text)
	if !ok {
		return nil, false
	}
	return Parse(line1, line2), true
}

// padLine pads or truncates a line to the expected length
func padLine(line string, length int) string {
	if len(line) >= length {
		return line[:length]
	}
	return line + strings.Repeat(string(Filler), length-len(line))
}
