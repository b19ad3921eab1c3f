package carve

import (
	"encoding/json"
	"os"
	"runtime"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Settings are the run parameters of a carving job. Zero values are
// filled from DefaultSettings; a settings file overrides defaults and
// CLI flags override the file.
type Settings struct {
	// Resolution is the finest voxel edge length, in meters.
	Resolution float64 `json:"resolution"`
	// CarveBuffer is how far past a scan point's mean to still carve,
	// in standard deviations.
	CarveBuffer float64 `json:"carve_buffer"`
	// ChunkEdge is the chunk grid cell edge length, in meters.
	ChunkEdge float64 `json:"chunk_edge"`
	// Workers is the number of concurrent chunk carving tasks.
	Workers int `json:"workers"`
	// SamplesPerPoint is the number of Monte-Carlo rays drawn per scan
	// point.
	SamplesPerPoint int `json:"samples_per_point"`
	// Seed anchors the per-point sample streams, making runs
	// reproducible regardless of chunk ordering.
	Seed uint64 `json:"seed"`
}

// DefaultSettings returns the standard run parameters.
func DefaultSettings() Settings {
	return Settings{
		Resolution:      0.05,
		CarveBuffer:     2,
		ChunkEdge:       2,
		Workers:         runtime.NumCPU(),
		SamplesPerPoint: 100,
		Seed:            1,
	}
}

// Validate checks the settings for usability.
func (s Settings) Validate() error {
	if s.Resolution <= 0 {
		return errors.Errorf("resolution must be positive, got %f", s.Resolution)
	}
	if s.CarveBuffer < 0 {
		return errors.Errorf("carve buffer must be non-negative, got %f", s.CarveBuffer)
	}
	if s.ChunkEdge < s.Resolution {
		return errors.Errorf("chunk edge %f smaller than resolution %f", s.ChunkEdge, s.Resolution)
	}
	if s.Workers < 1 {
		return errors.Errorf("need at least one worker, got %d", s.Workers)
	}
	if s.SamplesPerPoint < 1 {
		return errors.Errorf("need at least one sample per point, got %d", s.SamplesPerPoint)
	}
	return nil
}

// LoadSettings reads a JSON settings file over the defaults.
func LoadSettings(fn string) (Settings, error) {
	s := DefaultSettings()
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return s, errors.Wrapf(err, "cannot open settings file %q", fn)
	}
	defer utils.UncheckedErrorFunc(f.Close)
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return s, errors.Wrapf(err, "cannot parse settings file %q", fn)
	}
	if err := s.Validate(); err != nil {
		return s, errors.Wrapf(err, "invalid settings in %q", fn)
	}
	return s, nil
}
