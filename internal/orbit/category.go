package orbit

import (
	"fmt"
	"math"
	"strings"
)

// Category identifies an orbit representation family.
type Category int

const (
	CategoryTLE Category = iota
	CategoryKeplerian
	CategoryCircular
	CategoryEquinoctial
	// CategoryAutoSelect is a request-time wildcard. It is never the
	// classification of a concrete state.
	CategoryAutoSelect
)

var categoryNames = [...]string{
	CategoryTLE:         "TLE",
	CategoryKeplerian:   "KEPLERIAN",
	CategoryCircular:    "CIRCULAR",
	CategoryEquinoctial: "EQUINOCTIAL",
	CategoryAutoSelect:  "AUTO_SELECT",
}

// Categories lists every category, wildcard included.
func Categories() []Category {
	return []Category{CategoryTLE, CategoryKeplerian, CategoryCircular, CategoryEquinoctial, CategoryAutoSelect}
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// ParseCategory accepts the upper-case names (case-insensitive) plus "auto".
func ParseCategory(s string) (Category, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "-", "_")
	if name == "AUTO" {
		return CategoryAutoSelect, nil
	}
	for i, n := range categoryNames {
		if n == name {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown orbit type %q", ErrConfiguration, s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Thresholds bound the "specialized" representations. Both are exclusive
// upper limits.
type Thresholds struct {
	CircularEccentricity  float64 // dimensionless
	EquatorialInclination float64 // radians
}

// DefaultThresholds returns e < 1e-3 and i < 0.001 deg.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CircularEccentricity:  1e-3,
		EquatorialInclination: 0.001 * math.Pi / 180,
	}
}

// Validate checks that both thresholds are strictly positive.
func (t Thresholds) Validate() error {
	if !(t.CircularEccentricity > 0) {
		return fmt.Errorf("%w: circular threshold must be positive, got %g", ErrConfiguration, t.CircularEccentricity)
	}
	if !(t.EquatorialInclination > 0) {
		return fmt.Errorf("%w: equatorial threshold must be positive, got %g rad", ErrConfiguration, t.EquatorialInclination)
	}
	return nil
}

// Classify returns the most specific representation for an orbit with
// eccentricity e and inclination i (radians).
//
// A circular orbit that is also equatorial is singular in both argument of
// perigee and RAAN, so it goes to EQUINOCTIAL rather than CIRCULAR.
func Classify(e, i float64, t Thresholds) Category {
	circular := e < t.CircularEccentricity
	equatorial := i < t.EquatorialInclination

	if circular && !equatorial {
		return CategoryCircular
	} else if circular || equatorial {
		return CategoryEquinoctial
	}
	return CategoryKeplerian
}

// ClassifyState classifies the osculating elements of s.
func ClassifyState(s State, mu float64, t Thresholds) (Category, error) {
	k, err := KeplerianFromState(s, mu)
	if err != nil {
		return 0, err
	}
	return Classify(k.E, k.I, t), nil
}

// Compatible reports whether a conversion between a and b is legal.
// TLE only pairs with TLE, the Keplerian family pairs freely, and
// AUTO_SELECT pairs with anything.
func Compatible(a, b Category) bool {
	if a == CategoryAutoSelect || b == CategoryAutoSelect {
		return true
	}
	if a == CategoryTLE || b == CategoryTLE {
		return a == b
	}
	return true
}
