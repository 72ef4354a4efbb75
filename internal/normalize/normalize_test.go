package normalize

import (
	"fmt"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/passport-worker/internal/mrz"
	"github.com/adverant/nexus/passport-worker/internal/passport"
)

func TestSurname(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"DOE<<<<<<<", "DOE"},
		{"", ""},
		{"<<<<", ""},
		{"van<der<berg", "VAN DER BERG"},
		{"O'NEIL<<", "ONEIL"},
		{"  MC  DONALD1 ", "MC DONALD"},
		{"MÜLLER", "MLLER"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Surname(tt.in))
		})
	}
}

func TestGivenNames(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"JOHN<KE<<<NK", "JOHN"},
		{"MARY<ANN<EXTRA<THIRD", "MARY ANN"},
		{"JANE<MARIE<K", "JANE MARIE"},
		{"ANNA<MARIA<<<<<<<<<<<<<<<<<<<", "ANNA MARIA"},
		{"PETER<XXKVY<PAUL", "PETER PAUL"},
		{"KEVIN<E<NK<KENK", "KEVIN"},
		{"ANNA<K<MARIA", "ANNA"},
		{"YVES", "YVES"},
		{"E", ""},
		{"KKKK<<<<", ""},
		{"", ""},
		{"j0hn<smith", "JHN SMITH"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, GivenNames(tt.in))
		})
	}
}

func TestDate(t *testing.T) {
	assert.Equal(t, &passport.Date{Year: 2079, Month: 1, Day: 1}, Date("790101"))
	assert.Equal(t, &passport.Date{Year: 1980, Month: 1, Day: 1}, Date("800101"))
	assert.Equal(t, &passport.Date{Year: 1985, Month: 5, Day: 15}, Date("850515"))
	assert.Equal(t, &passport.Date{Year: 2000, Month: 0, Day: 0}, Date("000000"))
	assert.Equal(t, &passport.Date{Year: 1999, Month: 13, Day: 99}, Date("991399"), "month and day are not range-checked")

	for _, bad := range []string{"", "85051", "8505150", "85O515", "<<<<<<", " 85051", "８５０５１５"} {
		assert.Nil(t, Date(bad), "input %q", bad)
	}
}

func TestDate_AllSixDigitStringsDecode(t *testing.T) {
	for yy := 0; yy < 100; yy++ {
		code := fmt.Sprintf("%02d0615", yy)
		d := Date(code)
		require.NotNil(t, d, code)
		if yy < 80 {
			assert.Equal(t, 2000+yy, d.Year, code)
		} else {
			assert.Equal(t, 1900+yy, d.Year, code)
		}
		assert.Equal(t, 6, d.Month)
		assert.Equal(t, 15, d.Day)
	}
}

func TestCode(t *testing.T) {
	assert.Equal(t, "USA", Code("usa"))
	assert.Equal(t, "D", Code("D<<"))
	assert.Equal(t, "", Code("<<<"))
	assert.Equal(t, "", Code("   "))
	assert.Equal(t, "F", Code(" f "))
	assert.Equal(t, "ZE184226B", Code("ZE184226B<<<<<"))
	assert.Equal(t, "AB12345", Code("AB12<345\xc3"), "broken runes are dropped")
	assert.Equal(t, "UTO", Code("U-T.O"))
}

func TestPassportNumber(t *testing.T) {
	assert.Equal(t, "AB123456", PassportNumber("AB12<3456<"))
	assert.Equal(t, "L898902C3", PassportNumber("l898902c3"))
	assert.Equal(t, "", PassportNumber("<<<<<<<<<"))
}

func TestRecord_EndToEndBundle(t *testing.T) {
	b := &mrz.RawBundle{
		Surname:        "SMITH<<",
		GivenNames:     "JANE<MARIE<K",
		PassportNumber: "AB12<3456<",
		Nationality:    "USA",
		BirthDateCode:  "850515",
		Sex:            "F",
		ExpiryDateCode: "300101",
		IssuerCode:     "USA",
	}

	assert.Equal(t, &passport.Record{
		Surname:        "SMITH",
		GivenNames:     "JANE MARIE",
		PassportNumber: "AB123456",
		Nationality:    "USA",
		BirthDate:      &passport.Date{Year: 1985, Month: 5, Day: 15},
		Sex:            "F",
		ExpiryDate:     &passport.Date{Year: 2030, Month: 1, Day: 1},
		Issuer:         "USA",
	}, Record(b))
}

func TestRecord_MalformedFieldsDegradeToAbsent(t *testing.T) {
	b := &mrz.RawBundle{
		Surname:        "<<<<",
		PassportNumber: "<<<<<<<<<",
		BirthDateCode:  "85O5I5",
		ExpiryDateCode: "<<<<<<",
		Sex:            "<",
		Line1:          "P<UTO<<<<",
		Line2:          "<<<<<<<<<",
	}

	rec := Record(b)
	assert.Empty(t, rec.Surname)
	assert.Empty(t, rec.GivenNames)
	assert.Empty(t, rec.PassportNumber)
	assert.Nil(t, rec.BirthDate)
	assert.Nil(t, rec.ExpiryDate)
	assert.Empty(t, rec.Sex)
	assert.Equal(t, "P<UTO<<<<\n<<<<<<<<<", rec.RawMRZ, "raw MRZ is verbatim")
}

func TestCleaners_AreIdempotent(t *testing.T) {
	inputs := []string{
		"DOE<<<<<<<", "JOHN<KE<<<NK", "MARY<ANN<EXTRA<THIRD", "JANE<MARIE<K",
		"ANNA<K<MARIA", "AB12<3456<", "usa", " f ", "PETER<XXKVY<PAUL", "",
	}

	for _, in := range inputs {
		s := Surname(in)
		assert.Equal(t, s, Surname(s), "Surname(%q)", in)

		g := GivenNames(in)
		assert.Equal(t, g, GivenNames(g), "GivenNames(%q)", in)

		c := Code(in)
		assert.Equal(t, c, Code(c), "Code(%q)", in)

		p := PassportNumber(in)
		assert.Equal(t, p, PassportNumber(p), "PassportNumber(%q)", in)
	}
}

func TestRecord_CodeFieldsStayASCII(t *testing.T) {
	line1 := "P<USASMITH<<JANE<<<<<<<<<<<<<<<<<<<<<<<<<<<<"
	line2 := "AB12<345\u00c5<USA8505151F3001011<<<<<<<<<<<<<<00"

	rec := Record(mrz.Parse(line1, line2))
	for _, v := range []string{rec.PassportNumber, rec.Nationality, rec.Sex, rec.Optional} {
		assert.True(t, utf8.ValidString(v), "%q", v)
		assert.NotContains(t, v, "\ufffd")
	}
	assert.Equal(t, "AB12345", rec.PassportNumber)
}

func TestRecord_NoFillersInTextFields(t *testing.T) {
	line1 := "P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<"
	line2 := "L898902C36UTO7408122F1204159ZE184226B<<<<<10"

	rec := Record(mrz.Parse(line1, line2))
	for _, v := range []string{
		rec.Surname, rec.GivenNames, rec.PassportNumber, rec.Nationality,
		rec.Sex, rec.Issuer, rec.Optional,
	} {
		assert.NotContains(t, v, "<")
	}
	assert.Equal(t, "ERIKSSON", rec.Surname)
	assert.Equal(t, "ANNA MARIA", rec.GivenNames)
	assert.Equal(t, "L898902C3", rec.PassportNumber)
	// pivot approximation: 74 reads as 2074
	assert.Equal(t, &passport.Date{Year: 2074, Month: 8, Day: 12}, rec.BirthDate)
	assert.Equal(t, &passport.Date{Year: 2012, Month: 4, Day: 15}, rec.ExpiryDate)
	assert.Equal(t, "ZE184226B", rec.Optional)
}
