// Package archive persists comparison and conversion runs to SQLite.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/greyskyy/orbit-tool/internal/compare"
	"github.com/greyskyy/orbit-tool/internal/orbit"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Comparison is one compare or check-tle run.
type Comparison struct {
	gorm.Model
	Command     string `gorm:"size:32;index"`
	Reference   string `gorm:"size:127"`
	Other       string `gorm:"size:127"`
	Start       time.Time
	Stop        time.Time
	StepSeconds float64
	Summary     datatypes.JSON
	Samples     []Sample `gorm:"constraint:OnDelete:CASCADE"`
}

// Sample is one row of a comparison.
type Sample struct {
	ID             uint `gorm:"primarykey"`
	ComparisonID   uint `gorm:"index"`
	Epoch          time.Time
	ElapsedSeconds float64
	RadialKm       float64
	InTrackKm      float64
	CrossTrackKm   float64
}

// Conversion is one convert run.
type Conversion struct {
	gorm.Model
	Orbit      string `gorm:"size:127;index"`
	Source     string `gorm:"size:16"`
	Dest       string `gorm:"size:16"`
	Iterations int
	RMSMeters  float64
	Elements   datatypes.JSON
}

var models = []any{&Comparison{}, &Sample{}, &Conversion{}}

// Store wraps the archive database.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the archive at path. An empty path opens
// a private in-memory database.
func Open(path string, log *slog.Logger) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("accessing sql interface: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models...); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrating archive: %w", err)
	}
	if path != "" {
		log.Info("using archive", "path", path)
	}
	return &Store{db: db, logger: log}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ComparisonRun describes what was compared.
type ComparisonRun struct {
	Command   string
	Reference string
	Other     string
	Step      time.Duration
}

// SaveComparison stores rec and its summary, returning the run id.
func (s *Store) SaveComparison(ctx context.Context, run ComparisonRun, rec compare.Record) (uint, error) {
	summary, err := json.Marshal(rec.Summary())
	if err != nil {
		return 0, fmt.Errorf("encoding summary: %w", err)
	}

	row := Comparison{
		Command:     run.Command,
		Reference:   run.Reference,
		Other:       run.Other,
		StepSeconds: run.Step.Seconds(),
		Summary:     datatypes.JSON(summary),
		Samples:     make([]Sample, 0, len(rec.Rows)),
	}
	if n := len(rec.Rows); n > 0 {
		row.Start = rec.Rows[0].Epoch
		row.Stop = rec.Rows[n-1].Epoch
	}
	for _, r := range rec.Rows {
		row.Samples = append(row.Samples, Sample{
			Epoch:          r.Epoch,
			ElapsedSeconds: r.ElapsedSeconds,
			RadialKm:       r.RadialKm,
			InTrackKm:      r.InTrackKm,
			CrossTrackKm:   r.CrossTrackKm,
		})
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("saving comparison: %w", err)
	}
	s.logger.Debug("archived comparison", "id", row.ID, "samples", len(row.Samples))
	return row.ID, nil
}

// LoadComparison returns a stored run with its samples in epoch order.
func (s *Store) LoadComparison(ctx context.Context, id uint) (Comparison, compare.Record, error) {
	var row Comparison
	err := s.db.WithContext(ctx).
		Preload("Samples", func(db *gorm.DB) *gorm.DB { return db.Order("epoch") }).
		First(&row, id).Error
	if err != nil {
		return Comparison{}, compare.Record{}, fmt.Errorf("loading comparison %d: %w", id, err)
	}

	rec := compare.Record{Rows: make([]compare.Row, 0, len(row.Samples))}
	for _, smp := range row.Samples {
		rec.Rows = append(rec.Rows, compare.Row{
			Epoch:          smp.Epoch.UTC(),
			ElapsedSeconds: smp.ElapsedSeconds,
			RadialKm:       smp.RadialKm,
			InTrackKm:      smp.InTrackKm,
			CrossTrackKm:   smp.CrossTrackKm,
		})
	}
	return row, rec, nil
}

// ConversionRun describes one converted orbit.
type ConversionRun struct {
	Orbit          string
	Source         orbit.Category
	Representation orbit.Representation
	Iterations     int
	RMS            float64
}

// SaveConversion stores the serialized elements of a conversion.
func (s *Store) SaveConversion(ctx context.Context, run ConversionRun) (uint, error) {
	el, err := orbit.Serialize(run.Representation)
	if err != nil {
		return 0, err
	}
	raw, err := json.Marshal(el)
	if err != nil {
		return 0, fmt.Errorf("encoding elements: %w", err)
	}

	row := Conversion{
		Orbit:      run.Orbit,
		Source:     run.Source.String(),
		Dest:       el.Category.String(),
		Iterations: run.Iterations,
		RMSMeters:  run.RMS,
		Elements:   datatypes.JSON(raw),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("saving conversion: %w", err)
	}
	return row.ID, nil
}

// Conversions lists stored conversions of an orbit, newest first.
func (s *Store) Conversions(ctx context.Context, orbitName string) ([]Conversion, error) {
	var rows []Conversion
	err := s.db.WithContext(ctx).
		Where("orbit = ?", orbitName).
		Order("id desc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing conversions: %w", err)
	}
	return rows, nil
}
