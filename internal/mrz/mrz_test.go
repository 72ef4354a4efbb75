package mrz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	td3Line1 = "P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<"
	td3Line2 = "L898902C36UTO7408122F1204159ZE184226B<<<<<10"
)

func TestFindLines_TakesLastTwoLongLines(t *testing.T) {
	text := strings.Join([]string{
		"PASSPORT",
		"REPUBLIC OF UTOPIA",
		"THIS LINE IS LONG ENOUGH TO LOOK LIKE AN MRZ",
		"p<uto eriksson<<anna<maria<<<<<<<<<<<<<< <<<<<",
		"",
		td3Line2,
		"12",
	}, "\n")

	l1, l2, ok := FindLines(text)
	require.True(t, ok)
	assert.Equal(t, td3Line1, l1, "spaces removed and letters uppercased")
	assert.Equal(t, td3Line2, l2)
}

func TestFindLines_DropsNonASCII(t *testing.T) {
	text := "P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<\n" +
		"L898902C3\u00c56UTO7408122F1204159ZE184226B<<<<<10\xff"

	l1, l2, ok := FindLines(text)
	require.True(t, ok)
	assert.Equal(t, td3Line1, l1)
	assert.Equal(t, td3Line2, l2)

	b := Parse(l1, l2)
	assert.Equal(t, "L898902C3", b.PassportNumber)
	assert.Equal(t, "UTO", b.Nationality)
}

func TestFindLines_NotEnoughLines(t *testing.T) {
	tests := []string{
		"",
		"SHORT\nLINES\nONLY",
		td3Line1,
		td3Line1 + "\n" + "L898902C36UTO74081",
	}
	for _, text := range tests {
		_, _, ok := FindLines(text)
		assert.False(t, ok, "text %q", text)
	}
}

func TestParse_TD3(t *testing.T) {
	b := Parse(td3Line1, td3Line2)

	assert.Equal(t, "P<", b.DocumentCode)
	assert.Equal(t, "UTO", b.IssuerCode)
	assert.Equal(t, "ERIKSSON", b.Surname)
	assert.Equal(t, "ANNA<MARIA", strings.TrimRight(b.GivenNames, "<"))
	assert.Equal(t, "L898902C3", b.PassportNumber)
	assert.Equal(t, "UTO", b.Nationality)
	assert.Equal(t, "740812", b.BirthDateCode)
	assert.Equal(t, "F", b.Sex)
	assert.Equal(t, "120415", b.ExpiryDateCode)
	assert.Equal(t, "ZE184226B<<<<<", b.OptionalData)
	assert.Equal(t, td3Line1+"\n"+td3Line2, b.RawMRZ())
}

func TestParse_TD2(t *testing.T) {
	line1 := padLine("I<UTOERIKSSON<<ANNA<MARIA", td2LineLength)
	line2 := "D231458907UTO7408122F1204159<<<<<<<6"
	require.Len(t, line2, td2LineLength)

	b := Parse(line1, line2)

	assert.Equal(t, "I<", b.DocumentCode)
	assert.Equal(t, "ERIKSSON", b.Surname)
	assert.Equal(t, "D23145890", b.PassportNumber)
	assert.Equal(t, "UTO", b.Nationality)
	assert.Equal(t, "740812", b.BirthDateCode)
	assert.Equal(t, "F", b.Sex)
	assert.Equal(t, "120415", b.ExpiryDateCode)
	assert.Equal(t, "<<<<<<<", b.OptionalData)
}

func TestParse_TruncatedLinesArePadded(t *testing.T) {
	b := Parse("P<UTOSMITH", "AB1234567")

	assert.Equal(t, "SMITH", b.Surname)
	assert.Equal(t, strings.Repeat("<", td2LineLength-12), b.GivenNames)
	assert.Equal(t, "AB1234567", b.PassportNumber)
	assert.Equal(t, "<<<", b.Nationality)
	assert.Equal(t, "<<<<<<", b.BirthDateCode)
	assert.Equal(t, "P<UTOSMITH\nAB1234567", b.RawMRZ(), "raw lines are kept verbatim")
}

func TestRead(t *testing.T) {
	b, ok := Read("noise\n" + td3Line1 + "\n" + td3Line2 + "\n")
	require.True(t, ok)
	assert.Equal(t, "L898902C3", b.PassportNumber)

	_, ok = Read("no mrz here")
	assert.False(t, ok)
}

func TestRawMRZ_Empty(t *testing.T) {
	assert.Equal(t, "", (&RawBundle{}).RawMRZ())
}
