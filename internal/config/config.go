// Package config loads orbit-tool settings from a YAML file, ORBITTOOL_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/greyskyy/orbit-tool/internal/orbit"
	"github.com/greyskyy/orbit-tool/internal/propagation"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultFile is read when no --config is given and the file exists.
const DefaultFile = "config.yaml"

// EnvPrefix prefixes environment overrides, e.g. ORBITTOOL_STEP.
const EnvPrefix = "ORBITTOOL"

func setDefaults(v *viper.Viper) {
	v.SetDefault("circular_threshold", 1e-3)
	v.SetDefault("equatoral_threshold", "0.001 deg")

	v.SetDefault("propagator.gravity", string(propagation.GravityWGS72))
	v.SetDefault("propagator.max_step", "60s")
	v.SetDefault("propagator.j2", true)

	v.SetDefault("fit.tolerance", 1e-3)
	v.SetDefault("fit.max_iterations", 1000)
	v.SetDefault("fit.position_only", false)

	v.SetDefault("catalog.url", "")
	v.SetDefault("catalog.cache_dir", "")
	v.SetDefault("catalog.max_age", "24h")
	v.SetDefault("catalog.timeout", "30s")
	v.SetDefault("catalog.max_files", 5)

	v.SetDefault("archive.path", "orbit-tool.db")
	v.SetDefault("metrics.textfile", "")

	v.SetDefault("passes.min_elevation", 10.0)
	v.SetDefault("passes.max_passes", 0)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "orbit-tool")
}

// Load builds a viper instance. An empty path falls back to DefaultFile,
// which may be absent; an explicit path must exist. Flags, when given, are
// bound by name so --step overrides "step".
func Load(path string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if explicit || !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("%w: reading config file %s: %w", orbit.ErrConfiguration, path, err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}
	return v, nil
}

// FitSettings configures differential correction.
type FitSettings struct {
	Tolerance     float64
	MaxIterations int
	PositionOnly  bool
}

// CatalogSettings configures the element-set catalog client.
type CatalogSettings struct {
	URL      string
	CacheDir string
	MaxAge   time.Duration
	Timeout  time.Duration
	MaxFiles int
}

// TracingSettings configures span export.
type TracingSettings struct {
	Enabled     bool
	ServiceName string
}

// Settings is the decoded, validated configuration shared by all commands.
type Settings struct {
	Thresholds      orbit.Thresholds
	Gravity         propagation.Gravity
	Numerical       propagation.NumericalConfig
	Fit             FitSettings
	Catalog         CatalogSettings
	ArchivePath     string
	MetricsTextfile string
	Tracing         TracingSettings
}

// Decode reads Settings from v.
func Decode(v *viper.Viper) (Settings, error) {
	var s Settings

	circ, err := cast.ToFloat64E(v.Get("circular_threshold"))
	if err != nil {
		return s, fmt.Errorf("%w: circular_threshold: %w", orbit.ErrConfiguration, err)
	}
	eq, err := ParseAngle(v.Get("equatoral_threshold"))
	if err != nil {
		return s, fmt.Errorf("equatoral_threshold: %w", err)
	}
	s.Thresholds = orbit.Thresholds{CircularEccentricity: circ, EquatorialInclination: eq}
	if err := s.Thresholds.Validate(); err != nil {
		return s, err
	}

	if s.Gravity, err = propagation.ParseGravity(v.GetString("propagator.gravity")); err != nil {
		return s, err
	}
	maxStep, err := ParseDuration(v.Get("propagator.max_step"))
	if err != nil {
		return s, fmt.Errorf("propagator.max_step: %w", err)
	}
	s.Numerical = propagation.DefaultNumericalConfig()
	s.Numerical.MaxStep = maxStep
	s.Numerical.J2 = v.GetBool("propagator.j2")
	if err := s.Numerical.Validate(); err != nil {
		return s, err
	}

	tol, err := cast.ToFloat64E(v.Get("fit.tolerance"))
	if err != nil {
		return s, fmt.Errorf("%w: fit.tolerance: %w", orbit.ErrConfiguration, err)
	}
	iters, err := cast.ToIntE(v.Get("fit.max_iterations"))
	if err != nil {
		return s, fmt.Errorf("%w: fit.max_iterations: %w", orbit.ErrConfiguration, err)
	}
	s.Fit = FitSettings{Tolerance: tol, MaxIterations: iters, PositionOnly: v.GetBool("fit.position_only")}

	maxAge, err := ParseDuration(v.Get("catalog.max_age"))
	if err != nil {
		return s, fmt.Errorf("catalog.max_age: %w", err)
	}
	timeout, err := ParseDuration(v.Get("catalog.timeout"))
	if err != nil {
		return s, fmt.Errorf("catalog.timeout: %w", err)
	}
	cacheDir := v.GetString("catalog.cache_dir")
	if cacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		cacheDir = filepath.Join(base, "orbit-tool")
	}
	s.Catalog = CatalogSettings{
		URL:      v.GetString("catalog.url"),
		CacheDir: cacheDir,
		MaxAge:   maxAge,
		Timeout:  timeout,
		MaxFiles: v.GetInt("catalog.max_files"),
	}

	s.ArchivePath = v.GetString("archive.path")
	s.MetricsTextfile = v.GetString("metrics.textfile")
	s.Tracing = TracingSettings{
		Enabled:     v.GetBool("tracing.enabled"),
		ServiceName: v.GetString("tracing.service_name"),
	}
	return s, nil
}
