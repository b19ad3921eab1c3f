package trajectory

import (
	"encoding/json"
	"os"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/num/quat"

	"github.com/buildvox/carver/spatialmath"
)

type poseConfig struct {
	Time     float64    `json:"t"`
	Position [3]float64 `json:"pos"`
	Rotation [4]float64 `json:"rot"` // w, x, y, z
}

type sensorConfig struct {
	Position [3]float64 `json:"pos"`
	Rotation [4]float64 `json:"rot"`
}

type pathConfig struct {
	Poses   []poseConfig            `json:"poses"`
	Sensors map[string]sensorConfig `json:"sensors"`
}

func toQuat(r [4]float64) quat.Number {
	return spatialmath.Normalize(quat.Number{Real: r[0], Imag: r[1], Jmag: r[2], Kmag: r[3]})
}

func toVector(v [3]float64) r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

// NewFromFile loads a localized path, with per-sensor extrinsics, from a
// JSON path file.
func NewFromFile(fn string, logger golog.Logger) (*Path, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open path file %q", fn)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	var cfg pathConfig
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, errors.Wrapf(err, "malformed path file %q", fn)
	}

	poses := make([]Pose, 0, len(cfg.Poses))
	for _, pc := range cfg.Poses {
		poses = append(poses, Pose{
			Time:     pc.Time,
			Position: toVector(pc.Position),
			Rotation: toQuat(pc.Rotation),
		})
	}

	extrinsics := make(map[string]spatialmath.Transform, len(cfg.Sensors))
	for name, sc := range cfg.Sensors {
		extrinsics[name] = spatialmath.NewTransform(toQuat(sc.Rotation), toVector(sc.Position))
	}

	path, err := NewPath(poses, extrinsics)
	if err != nil {
		return nil, errors.Wrapf(err, "path file %q", fn)
	}
	logger.Debugf("loaded path with %d poses and %d sensors from %s",
		path.NumPoses(), len(extrinsics), fn)
	return path, nil
}
