package config

import (
	"context"
	"fmt"
	"time"

	"github.com/greyskyy/orbit-tool/internal/orbit"
	"github.com/greyskyy/orbit-tool/internal/tle"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Catalog resolves a catalog number to an element set.
type Catalog interface {
	Lookup(ctx context.Context, catnr int) (tle.TLEEntry, error)
}

// Definition is a named orbit from the "orbits" section. Exactly one of
// CatalogNumber and Representation is set.
type Definition struct {
	Name           string
	CatalogNumber  int
	Representation orbit.Representation
}

// Resolve returns the representation, asking cat for catalog entries.
func (d Definition) Resolve(ctx context.Context, cat Catalog) (orbit.Representation, error) {
	if d.Representation != nil {
		return d.Representation, nil
	}
	if cat == nil {
		return nil, fmt.Errorf("%w: orbit %q needs a catalog lookup", orbit.ErrConfiguration, d.Name)
	}
	entry, err := cat.Lookup(ctx, d.CatalogNumber)
	if err != nil {
		return nil, fmt.Errorf("resolving orbit %q (catnr %d): %w", d.Name, d.CatalogNumber, err)
	}
	return orbit.TwoLineElement{Line1: entry.Line1, Line2: entry.Line2}, nil
}

// ReadOrbit decodes orbits.<name>. The form is chosen by the keys present:
// catnr, line1/line2, or a with Keplerian (e w omega v|m), circular
// (ex ey alphaV) or equinoctial (ex ey hx hy lm) elements.
func ReadOrbit(v *viper.Viper, name string) (Definition, error) {
	sub := v.Sub("orbits." + name)
	if name == "" || sub == nil {
		return Definition{}, fmt.Errorf("%w: no orbit definition found for %q", orbit.ErrConfiguration, name)
	}
	def := Definition{Name: name}

	switch {
	case sub.IsSet("catnr"):
		n, err := cast.ToIntE(sub.Get("catnr"))
		if err != nil || n <= 0 {
			return def, fmt.Errorf("%w: orbit %q: invalid catnr %v", orbit.ErrConfiguration, name, sub.Get("catnr"))
		}
		def.CatalogNumber = n
		return def, nil

	case sub.IsSet("line1"):
		rep := orbit.TwoLineElement{Line1: sub.GetString("line1"), Line2: sub.GetString("line2")}
		if _, err := tle.ParseElements(rep.Line1, rep.Line2); err != nil {
			return def, fmt.Errorf("%w: orbit %q: %w", orbit.ErrConfiguration, name, err)
		}
		def.Representation = rep
		return def, nil

	case sub.IsSet("a"):
		rep, err := readElements(sub)
		if err != nil {
			return def, fmt.Errorf("orbit %q: %w", name, err)
		}
		def.Representation = rep
		return def, nil
	}
	return def, fmt.Errorf("%w: orbit %q has no catnr, line1 or a", orbit.ErrConfiguration, name)
}

// fields reads quantities from one orbit section.
type fields struct {
	sub *viper.Viper
	err error
}

func (f *fields) required(key string) any {
	if f.err == nil && !f.sub.IsSet(key) {
		f.err = fmt.Errorf("%w: missing %q", orbit.ErrConfiguration, key)
	}
	return f.sub.Get(key)
}

func (f *fields) length(key string) float64 {
	val := f.required(key)
	if f.err != nil {
		return 0
	}
	x, err := ParseLength(val)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", key, err)
	}
	return x
}

func (f *fields) angle(key string) float64 {
	val := f.required(key)
	if f.err != nil {
		return 0
	}
	x, err := ParseAngle(val)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", key, err)
	}
	return x
}

func (f *fields) scalar(key string) float64 {
	val := f.required(key)
	if f.err != nil {
		return 0
	}
	x, err := cast.ToFloat64E(val)
	if err != nil {
		f.err = fmt.Errorf("%w: %s: %w", orbit.ErrConfiguration, key, err)
	}
	return x
}

func (f *fields) epoch() time.Time {
	val := f.required("epoch")
	if f.err != nil {
		return time.Time{}
	}
	t, err := cast.ToTimeE(val)
	if err != nil {
		f.err = fmt.Errorf("%w: epoch: %w", orbit.ErrConfiguration, err)
	}
	return t.UTC()
}

func readElements(sub *viper.Viper) (orbit.Representation, error) {
	f := &fields{sub: sub}
	mu := orbit.Earth.Mu
	if sub.IsSet("mu") {
		mu = f.scalar("mu")
	}
	a := f.length("a")
	epoch := f.epoch()

	var rep orbit.Representation
	switch {
	case sub.IsSet("hx") || sub.IsSet("lm"):
		rep = orbit.Equinoctial{
			A: a, Ex: f.scalar("ex"), Ey: f.scalar("ey"), Hx: f.scalar("hx"), Hy: f.scalar("hy"),
			MeanLongitude: orbit.NormalizeAngle(f.angle("lm")), Epoch: epoch, Mu: mu,
		}
	case sub.IsSet("ex") || sub.IsSet("alphav"):
		rep = orbit.Circular{
			A: a, Ex: f.scalar("ex"), Ey: f.scalar("ey"), I: f.angle("i"),
			RAAN: orbit.NormalizeAngle(f.angle("omega")), AlphaV: orbit.NormalizeAngle(f.angle("alphav")),
			Epoch: epoch, Mu: mu,
		}
	default:
		e, i, w, raan := f.scalar("e"), f.angle("i"), f.angle("w"), f.angle("omega")
		if sub.IsSet("m") && !sub.IsSet("v") {
			rep = orbit.NewKeplerianFromMean(a, e, i, w, raan, f.angle("m"), epoch, mu)
		} else {
			rep = orbit.NewKeplerianFromTrue(a, e, i, w, raan, f.angle("v"), epoch, mu)
		}
	}
	if f.err != nil {
		return nil, f.err
	}

	k, err := orbit.ToKeplerian(rep)
	if err != nil {
		return nil, err
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return rep, nil
}
