/**
 * MRZ field normalization
 *
 * Every cleaner is total: malformed input degrades to an absent field
 * (empty string or nil date), never an error. Cleaners are fixed points on
 * their own output.
 */

package normalize

import (
	"strings"

	"github.com/adverant/nexus/passport-worker/internal/mrz"
	"github.com/adverant/nexus/passport-worker/internal/passport"
)

// Two-digit years below the pivot belong to the 2000s.
const yearPivot = 80

const maxGivenNameTokens = 2

// Record cleans every field of a raw bundle.
func Record(b *mrz.RawBundle) *passport.Record {
	return &passport.Record{
		Surname:        Surname(b.Surname),
		GivenNames:     GivenNames(b.GivenNames),
		PassportNumber: PassportNumber(b.PassportNumber),
		Nationality:    Code(b.Nationality),
		BirthDate:      Date(b.BirthDateCode),
		Sex:            Code(b.Sex),
		ExpiryDate:     Date(b.ExpiryDateCode),
		Issuer:         Code(b.IssuerCode),
		Optional:       Code(b.OptionalData),
		RawMRZ:         b.RawMRZ(),
	}
}

// Surname turns fillers into spaces, keeps only A-Z and single spaces.
func Surname(s string) string {
	return strings.Join(nameTokens(s), " ")
}

// GivenNames cleans like Surname and then removes OCR artifacts that come
// from misread filler runs:
//   - tokens of two or more letters drawn only from K, X, V, Y, E
//   - a trailing run of tokens built only from NK, KE, K and E
//
// At most the first two remaining tokens are kept.
func GivenNames(s string) string {
	tokens := nameTokens(s)

	kept := tokens[:0]
	for _, tok := range tokens {
		if len(tok) >= 2 && onlyFillerMisreads(tok) {
			continue
		}
		kept = append(kept, tok)
	}

	kept = trimTrailingArtifacts(kept)
	if len(kept) > maxGivenNameTokens {
		// Truncation can expose a new trailing artifact.
		kept = trimTrailingArtifacts(kept[:maxGivenNameTokens])
	}

	return strings.Join(kept, " ")
}

// Date decodes YYMMDD. Anything other than exactly six ASCII digits is absent.
func Date(code string) *passport.Date {
	if len(code) != 6 {
		return nil
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return nil
		}
	}

	yy := twoDigits(code[0:2])
	year := 1900 + yy
	if yy < yearPivot {
		year = 2000 + yy
	}

	return &passport.Date{
		Year:  year,
		Month: twoDigits(code[2:4]),
		Day:   twoDigits(code[4:6]),
	}
}

// Code uppercases and keeps only A-Z and 0-9, so fillers, spaces and any
// stray non-MRZ bytes are dropped. Used for nationality, sex, issuer and
// optional data.
func Code(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// PassportNumber strips fillers, including ones OCR left between digits.
func PassportNumber(s string) string {
	return Code(s)
}

// nameTokens uppercases, maps fillers to spaces, drops anything outside
// A-Z and splits on the remaining spaces.
func nameTokens(s string) []string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r == ' ' || r == mrz.Filler:
			b.WriteByte(' ')
		}
	}
	return strings.Fields(b.String())
}

func onlyFillerMisreads(tok string) bool {
	for i := 0; i < len(tok); i++ {
		switch tok[i] {
		case 'K', 'X', 'V', 'Y', 'E':
		default:
			return false
		}
	}
	return true
}

// isTrailingArtifact reports whether tok is a concatenation of NK, KE, K and E.
// KE is K followed by E, so only NK needs a two-letter step.
func isTrailingArtifact(tok string) bool {
	if tok == "" {
		return false
	}
	for i := 0; i < len(tok); {
		switch {
		case strings.HasPrefix(tok[i:], "NK"):
			i += 2
		case tok[i] == 'K' || tok[i] == 'E':
			i++
		default:
			return false
		}
	}
	return true
}

func trimTrailingArtifacts(tokens []string) []string {
	for len(tokens) > 0 && isTrailingArtifact(tokens[len(tokens)-1]) {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

func twoDigits(s string) int {
	return int(s[0]-'0')*10 + int(s[1]-'0')
}
