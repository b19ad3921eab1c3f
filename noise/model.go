package noise

import (
	"math/rand/v2"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/buildvox/carver/spatialmath"
	"github.com/buildvox/carver/trajectory"
)

// Model composes every noise source between a raw range measurement and a
// pair of world-frame positions usable for carving: the clock-sync
// residual of the frame timestamp, the system pose interpolated from the
// trajectory at the sampled time, the static sensor extrinsic, and the
// anisotropic Gaussian of the scan point itself.
//
// A Model is stateful and not safe for concurrent use; carving workers
// each build their own with an independent random source.
type Model struct {
	logger golog.Logger
	path   *trajectory.Path

	sensorToSystem spatialmath.Transform
	timestamp      NoisyTimestamp
	point          *NoisyScanPoint

	stdNormal distuv.Normal
}

// NewModel creates a noise model over the given trajectory. All
// randomness is drawn from src.
func NewModel(path *trajectory.Path, src rand.Source, logger golog.Logger) *Model {
	return &Model{
		logger:    logger,
		path:      path,
		stdNormal: distuv.Normal{Mu: 0, Sigma: 1, Src: src},
	}
}

// SetSensor selects whose extrinsic transform maps sensor coordinates to
// system coordinates for subsequent samples.
func (m *Model) SetSensor(name string) error {
	tf, err := m.path.Extrinsics(name)
	if err != nil {
		return errors.Wrapf(err, "cannot set noise model sensor %q", name)
	}
	m.sensorToSystem = tf
	return nil
}

// SetTimestamp sets the frame timestamp distribution for subsequent
// samples.
func (m *Model) SetTimestamp(mean, sigma float64) {
	m.timestamp = NewNoisyTimestamp(mean, sigma)
}

// SetScan sets the scan point distribution for subsequent samples. The
// mean is in sensor coordinates.
func (m *Model) SetScan(mean r3.Vector, sigmaRange, sigmaLateral float64) {
	m.point = NewNoisyScanPoint(mean, sigmaRange, sigmaLateral)
}

// ScanPoint returns the current scan point distribution, or nil if
// SetScan has not been called.
func (m *Model) ScanPoint() *NoisyScanPoint { return m.point }

// GenerateSample draws one joint sample of all noise sources and returns
// the sensor position and the scan point position, both in world
// coordinates. Fails when the sampled timestamp falls outside the
// trajectory; such samples are skipped by callers, not fatal.
func (m *Model) GenerateSample() (r3.Vector, r3.Vector, error) {
	if m.point == nil {
		return r3.Vector{}, r3.Vector{}, errors.New("no scan point set on noise model")
	}

	t := m.timestamp.Sample(&m.stdNormal)
	pose, err := m.path.PoseAt(t)
	if err != nil {
		return r3.Vector{}, r3.Vector{}, errors.Wrapf(err, "cannot sample pose at noisy timestamp %f", t)
	}

	sensorToWorld := m.sensorToSystem.Compose(pose.Transform())
	sensorPos := sensorToWorld.Apply(r3.Vector{})
	scanPos := sensorToWorld.Apply(m.point.Sample(&m.stdNormal))
	return sensorPos, scanPos, nil
}
