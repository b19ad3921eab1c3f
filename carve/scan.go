// Package carve implements the probabilistic carving pipeline: scan
// points are propagated through the noise model, Monte-Carlo sampled as
// rays from sensor to surface, and rasterized into an occupancy octree.
// Carving runs either directly over a scan log or out of core over a
// chunk decomposition.
package carve

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

const scanLogMagic = "scanlog\x00"

// ScanPoint is one raw range measurement in sensor coordinates, with the
// intrinsic noise the sensor reported for it.
type ScanPoint struct {
	Position     r3.Vector
	SigmaRange   float64
	SigmaLateral float64
}

// ScanFrame is one sweep of measurements taken at a common timestamp.
type ScanFrame struct {
	Timestamp float64
	Points    []ScanPoint
}

// ScanLog is a whole recording from one range sensor: its name (matching
// the trajectory's extrinsics registry), the clock-sync residual of its
// timestamps, and the ordered frames.
type ScanLog struct {
	Sensor         string
	TimestampSigma float64
	Frames         []ScanFrame
}

// NumPoints returns the total number of measurements across all frames.
func (sl *ScanLog) NumPoints() int {
	n := 0
	for i := range sl.Frames {
		n += len(sl.Frames[i].Points)
	}
	return n
}

// WriteToFile serializes the scan log to the named file.
func (sl *ScanLog) WriteToFile(fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return errors.Wrapf(err, "cannot create scan log file %q", fn)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err := sl.write(w); err != nil {
		return errors.Wrapf(err, "cannot serialize scan log to %q", fn)
	}
	return w.Flush()
}

func (sl *ScanLog) write(w io.Writer) error {
	if _, err := w.Write([]byte(scanLogMagic)); err != nil {
		return err
	}
	name := []byte(sl.Sensor)
	if err := binary.Write(w, binary.LittleEndian, uint32(len(name))); err != nil {
		return err
	}
	if _, err := w.Write(name); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, sl.TimestampSigma); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(sl.Frames))); err != nil {
		return err
	}
	for i := range sl.Frames {
		fr := &sl.Frames[i]
		if err := binary.Write(w, binary.LittleEndian, fr.Timestamp); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint64(len(fr.Points))); err != nil {
			return err
		}
		for _, pt := range fr.Points {
			rec := []float64{pt.Position.X, pt.Position.Y, pt.Position.Z,
				pt.SigmaRange, pt.SigmaLateral}
			if err := binary.Write(w, binary.LittleEndian, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadScanLog parses a scan log from the named file.
func ReadScanLog(fn string) (*ScanLog, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open scan log file %q", fn)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	sl, err := readScanLog(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse scan log file %q", fn)
	}
	return sl, nil
}

func readScanLog(r io.Reader) (*ScanLog, error) {
	magic := make([]byte, len(scanLogMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != scanLogMagic {
		return nil, errors.New("not a scan log file")
	}
	var nameLen uint32
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return nil, err
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, err
	}
	sl := &ScanLog{Sensor: string(name)}
	if err := binary.Read(r, binary.LittleEndian, &sl.TimestampSigma); err != nil {
		return nil, err
	}
	var numFrames uint64
	if err := binary.Read(r, binary.LittleEndian, &numFrames); err != nil {
		return nil, err
	}
	sl.Frames = make([]ScanFrame, numFrames)
	for i := range sl.Frames {
		fr := &sl.Frames[i]
		if err := binary.Read(r, binary.LittleEndian, &fr.Timestamp); err != nil {
			return nil, err
		}
		var numPoints uint64
		if err := binary.Read(r, binary.LittleEndian, &numPoints); err != nil {
			return nil, err
		}
		fr.Points = make([]ScanPoint, numPoints)
		for j := range fr.Points {
			rec := make([]float64, 5)
			if err := binary.Read(r, binary.LittleEndian, rec); err != nil {
				return nil, err
			}
			fr.Points[j] = ScanPoint{
				Position:     r3.Vector{X: rec[0], Y: rec[1], Z: rec[2]},
				SigmaRange:   rec[3],
				SigmaLateral: rec[4],
			}
		}
	}
	return sl, nil
}
