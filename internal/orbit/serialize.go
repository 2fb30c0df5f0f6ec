package orbit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Element is one serialized field. Unit is "km", "deg" or empty for
// dimensionless values; Text is set instead of Value for TLE lines.
type Element struct {
	Name  string
	Value float64
	Unit  string
	Text  string
}

// String renders the element value with its unit.
func (e Element) String() string {
	if e.Text != "" {
		return e.Text
	}
	v := strconv.FormatFloat(e.Value, 'g', -1, 64)
	if e.Unit == "" {
		return v
	}
	return v + " " + e.Unit
}

// Elements is an ordered, unit-annotated key/value view of a representation.
type Elements struct {
	Category Category
	Items    []Element
}

// Get looks up an element by name.
func (e Elements) Get(name string) (Element, bool) {
	for _, it := range e.Items {
		if it.Name == name {
			return it, true
		}
	}
	return Element{}, false
}

// MarshalJSON writes the elements as an object in field order. Quantities
// with units become strings ("6878.137 km"); dimensionless ones stay numbers.
func (e Elements) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, it := range e.Items {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(it.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var val []byte
		switch {
		case it.Text != "" || it.Unit != "":
			val, err = json.Marshal(it.String())
		default:
			val, err = json.Marshal(it.Value)
		}
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", it.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func length(name string, meters float64) Element {
	return Element{Name: name, Value: meters / 1000, Unit: "km"}
}

func angle(name string, rad float64) Element {
	return Element{Name: name, Value: Rad2Deg(NormalizeAngle(rad)), Unit: "deg"}
}

// inclination lives in [0, pi] and is never wrapped.
func inclination(rad float64) Element {
	return Element{Name: "i", Value: Rad2Deg(rad), Unit: "deg"}
}

func scalar(name string, v float64) Element {
	return Element{Name: name, Value: v}
}

// Serialize renders rep with lengths in km and angles in degrees normalized
// to (-180, 180].
func Serialize(rep Representation) (Elements, error) {
	switch r := rep.(type) {
	case Keplerian:
		return Elements{Category: CategoryKeplerian, Items: []Element{
			length("a", r.A),
			scalar("e", r.E),
			inclination(r.I),
			angle("w", r.ArgPerigee),
			angle("omega", r.RAAN),
			angle("v", r.TrueAnomaly),
			angle("m", r.MeanAnomaly),
		}}, nil
	case Circular:
		return Elements{Category: CategoryCircular, Items: []Element{
			length("a", r.A),
			scalar("ex", r.Ex),
			scalar("ey", r.Ey),
			inclination(r.I),
			angle("omega", r.RAAN),
			angle("alphaV", r.AlphaV),
		}}, nil
	case Equinoctial:
		return Elements{Category: CategoryEquinoctial, Items: []Element{
			length("a", r.A),
			scalar("ex", r.Ex),
			scalar("ey", r.Ey),
			scalar("hx", r.Hx),
			scalar("hy", r.Hy),
			angle("lm", r.MeanLongitude),
		}}, nil
	case TwoLineElement:
		return Elements{Category: CategoryTLE, Items: []Element{
			{Name: "line1", Text: r.Line1},
			{Name: "line2", Text: r.Line2},
		}}, nil
	default:
		return Elements{}, fmt.Errorf("%w: cannot serialize %T", ErrConfiguration, rep)
	}
}
