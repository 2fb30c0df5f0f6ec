package tle

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// LineLength is the fixed width of both element lines, checksum included.
const LineLength = 69

var (
	ErrMalformed = errors.New("malformed TLE")
	ErrChecksum  = errors.New("TLE checksum mismatch")
	ErrRange     = errors.New("TLE field out of range")
)

// Checksum returns the modulo-10 checksum of the first 68 columns: digits
// count their value and minus signs count one.
func Checksum(line string) int {
	sum := 0
	for i := 0; i < len(line) && i < LineLength-1; i++ {
		c := line[i]
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// ValidateLines checks line widths, line numbers and checksums. It is cheap
// enough to run before handing text to SGP4.
func ValidateLines(line1, line2 string) error {
	for n, line := range []string{line1, line2} {
		if len(line) != LineLength {
			return fmt.Errorf("%w: line%d length %d, expected %d", ErrMalformed, n+1, len(line), LineLength)
		}
		if line[0] != byte('1'+n) || line[1] != ' ' {
			return fmt.Errorf("%w: line%d must start with '%d '", ErrMalformed, n+1, n+1)
		}
		want := int(line[LineLength-1] - '0')
		if got := Checksum(line); got != want {
			return fmt.Errorf("%w: line%d checksum %d, computed %d", ErrChecksum, n+1, want, got)
		}
	}
	if line1[2:7] != line2[2:7] {
		return fmt.Errorf("%w: satellite numbers differ (%q vs %q)", ErrMalformed, line1[2:7], line2[2:7])
	}
	return nil
}

type fieldReader struct {
	line string
	n    int
	err  error
}

func (r *fieldReader) text(_ string, from, to int) string {
	return strings.TrimSpace(r.line[from:to])
}

func (r *fieldReader) number(name string, from, to int) float64 {
	if r.err != nil {
		return 0
	}
	s := r.text(name, from, to)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.err = fmt.Errorf("%w: line%d %s %q", ErrMalformed, r.n, name, s)
	}
	return v
}

func (r *fieldReader) integer(name string, from, to int) int {
	if r.err != nil {
		return 0
	}
	s := r.text(name, from, to)
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		r.err = fmt.Errorf("%w: line%d %s %q", ErrMalformed, r.n, name, s)
	}
	return v
}

// exp decodes the implied-decimal exponent notation, e.g. "-11606-4"
// is -0.11606e-4.
func (r *fieldReader) exponent(name string, from, to int) float64 {
	if r.err != nil {
		return 0
	}
	s := r.text(name, from, to)
	v, err := parseExponent(s)
	if err != nil {
		r.err = fmt.Errorf("%w: line%d %s %q", ErrMalformed, r.n, name, s)
	}
	return v
}

func parseExponent(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	sign := 1.0
	if s[0] == '-' || s[0] == '+' {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}
	if len(s) < 3 {
		return 0, fmt.Errorf("too short")
	}
	mant, err := strconv.ParseFloat("0."+strings.TrimSpace(s[:len(s)-2]), 64)
	if err != nil {
		return 0, err
	}
	e, err := strconv.Atoi(s[len(s)-2:])
	if err != nil {
		return 0, err
	}
	return sign * mant * math.Pow10(e), nil
}

// ParseElements validates and decodes a two-line element set.
func ParseElements(line1, line2 string) (Elements, error) {
	line1 = strings.TrimRight(line1, "\r\n ")
	line2 = strings.TrimRight(line2, "\r\n ")
	if err := ValidateLines(line1, line2); err != nil {
		return Elements{}, err
	}

	l1 := &fieldReader{line: line1, n: 1}
	el := Elements{
		SatelliteNumber: l1.integer("satellite number", 2, 7),
		Classification:  line1[7],
		Designator:      l1.text("designator", 9, 17),
		MeanMotionDot:   l1.number("mean motion derivative", 33, 43),
		MeanMotionDDot:  l1.exponent("mean motion second derivative", 44, 52),
		BStar:           l1.exponent("bstar", 53, 61),
		EphemerisType:   l1.integer("ephemeris type", 62, 63),
		ElementSet:      l1.integer("element set", 64, 68),
	}
	if l1.err != nil {
		return Elements{}, l1.err
	}

	epochStr := strings.TrimSpace(line1[18:32])
	epoch, err := parseEpoch(epochStr)
	if err != nil {
		return Elements{}, fmt.Errorf("%w: line1 epoch: %v", ErrMalformed, err)
	}
	el.Epoch = epoch

	l2 := &fieldReader{line: line2, n: 2}
	el.Inclination = l2.number("inclination", 8, 16)
	el.RAAN = l2.number("raan", 17, 25)
	el.Eccentricity = l2.number("eccentricity", 26, 33) / 1e7
	el.ArgPerigee = l2.number("argument of perigee", 34, 42)
	el.MeanAnomaly = l2.number("mean anomaly", 43, 51)
	el.MeanMotion = l2.number("mean motion", 52, 63)
	el.RevolutionNumber = l2.integer("revolution number", 63, 68)
	if l2.err != nil {
		return Elements{}, l2.err
	}

	if !(el.MeanMotion > 0) {
		return Elements{}, fmt.Errorf("%w: mean motion %g rev/day", ErrRange, el.MeanMotion)
	}
	return el, nil
}

// Format renders el as two checksummed element lines.
func Format(el Elements) (string, string, error) {
	switch {
	case el.SatelliteNumber < 0 || el.SatelliteNumber > 99999:
		return "", "", fmt.Errorf("%w: satellite number %d", ErrRange, el.SatelliteNumber)
	case !(el.MeanMotion > 0 && el.MeanMotion < 100):
		return "", "", fmt.Errorf("%w: mean motion %g rev/day", ErrRange, el.MeanMotion)
	case !(el.Eccentricity >= 0 && el.Eccentricity < 1):
		return "", "", fmt.Errorf("%w: eccentricity %g", ErrRange, el.Eccentricity)
	case !(el.Inclination >= 0 && el.Inclination <= 180):
		return "", "", fmt.Errorf("%w: inclination %g deg", ErrRange, el.Inclination)
	}

	ecc := int64(math.Round(el.Eccentricity * 1e7))
	if ecc > 9999999 {
		return "", "", fmt.Errorf("%w: eccentricity %g", ErrRange, el.Eccentricity)
	}

	ndot, err := formatDecimal(el.MeanMotionDot)
	if err != nil {
		return "", "", fmt.Errorf("mean motion derivative: %w", err)
	}
	nddot, err := formatExponent(el.MeanMotionDDot)
	if err != nil {
		return "", "", fmt.Errorf("mean motion second derivative: %w", err)
	}
	bstar, err := formatExponent(el.BStar)
	if err != nil {
		return "", "", fmt.Errorf("bstar: %w", err)
	}

	class := el.Classification
	if class == 0 || class == ' ' {
		class = 'U'
	}
	year, day := epochFields(el.Epoch)

	line1 := fmt.Sprintf("1 %05d%c %-8.8s %02d%012.8f %s %s %s %d %4d",
		el.SatelliteNumber, class, el.Designator, year, day,
		ndot, nddot, bstar, el.EphemerisType%10, el.ElementSet%10000)
	line2 := fmt.Sprintf("2 %05d %8.4f %8.4f %07d %8.4f %8.4f %11.8f%5d",
		el.SatelliteNumber, el.Inclination, wrapDegrees(el.RAAN), ecc,
		wrapDegrees(el.ArgPerigee), wrapDegrees(el.MeanAnomaly), el.MeanMotion, el.RevolutionNumber%100000)

	line1 += strconv.Itoa(Checksum(line1))
	line2 += strconv.Itoa(Checksum(line2))
	return line1, line2, nil
}

// wrapDegrees maps x into [0, 360) after rounding to the printed precision.
func wrapDegrees(x float64) float64 {
	x = math.Mod(x, 360)
	if x < 0 {
		x += 360
	}
	x = math.Round(x*1e4) / 1e4
	if x >= 360 {
		x -= 360
	}
	return x
}

// formatDecimal renders |x| < 1 as " .NNNNNNNN" or "-.NNNNNNNN".
func formatDecimal(x float64) (string, error) {
	digits := math.Round(math.Abs(x) * 1e8)
	if digits >= 1e8 || math.IsNaN(x) {
		return "", fmt.Errorf("%w: %g", ErrRange, x)
	}
	sign := ' '
	if x < 0 && digits > 0 {
		sign = '-'
	}
	return fmt.Sprintf("%c.%08d", sign, int64(digits)), nil
}

// formatExponent renders x in the 8-column implied-decimal exponent form.
func formatExponent(x float64) (string, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "", fmt.Errorf("%w: %g", ErrRange, x)
	}
	if x == 0 {
		return " 00000-0", nil
	}
	exp := int(math.Floor(math.Log10(math.Abs(x)))) + 1
	mant := int64(math.Round(math.Abs(x) / math.Pow10(exp) * 1e5))
	if mant >= 100000 {
		mant /= 10
		exp++
	}
	if exp < -9 {
		return " 00000-0", nil
	}
	if exp > 9 {
		return "", fmt.Errorf("%w: %g", ErrRange, x)
	}
	sign := ' '
	if x < 0 {
		sign = '-'
	}
	expSign := '+'
	if exp < 0 {
		expSign = '-'
		exp = -exp
	}
	return fmt.Sprintf("%c%05d%c%d", sign, mant, expSign, exp), nil
}

// epochFields splits t into a two-digit year and a fractional day of year.
func epochFields(t time.Time) (int, float64) {
	t = t.UTC()
	start := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	day := 1 + t.Sub(start).Seconds()/86400
	return t.Year() % 100, day
}
