package chunk

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

const carveMapMagic = "carvemap\x00"

// CarveMapPoint is the distribution of one scan point after the noise
// model has been propagated to world coordinates: the mean position plus
// the along-ray and lateral standard deviations around it.
type CarveMapPoint struct {
	Mean         r3.Vector
	SigmaRange   float64
	SigmaLateral float64
}

// CarveMapFrame holds one scan frame's worth of propagated points along
// with the frame's timing and the sensor's mean position at that time.
type CarveMapFrame struct {
	Timestamp      float64
	TimestampSigma float64
	SensorPos      r3.Vector
	Points         []CarveMapPoint
}

// CarveMap is the propagated uncertainty of a whole scan log, the input
// that carving consumes. It is produced once per sensor during chunk
// export and re-read by every chunk task.
type CarveMap struct {
	Frames []CarveMapFrame
}

// NumPoints returns the total number of scan points across all frames.
func (cm *CarveMap) NumPoints() int {
	n := 0
	for i := range cm.Frames {
		n += len(cm.Frames[i].Points)
	}
	return n
}

// WriteToFile serializes the carve map to the named .carvemap file.
func (cm *CarveMap) WriteToFile(fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return errors.Wrapf(err, "cannot create carve map file %q", fn)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err := cm.write(w); err != nil {
		return errors.Wrapf(err, "cannot serialize carve map to %q", fn)
	}
	return w.Flush()
}

func (cm *CarveMap) write(w io.Writer) error {
	if _, err := w.Write([]byte(carveMapMagic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(cm.Frames))); err != nil {
		return err
	}
	for i := range cm.Frames {
		fr := &cm.Frames[i]
		head := []float64{fr.Timestamp, fr.TimestampSigma,
			fr.SensorPos.X, fr.SensorPos.Y, fr.SensorPos.Z}
		if err := binary.Write(w, binary.LittleEndian, head); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint64(len(fr.Points))); err != nil {
			return err
		}
		for _, pt := range fr.Points {
			rec := []float64{pt.Mean.X, pt.Mean.Y, pt.Mean.Z,
				pt.SigmaRange, pt.SigmaLateral}
			if err := binary.Write(w, binary.LittleEndian, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadCarveMap parses a carve map from the named .carvemap file.
func ReadCarveMap(fn string) (*CarveMap, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open carve map file %q", fn)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	cm, err := readCarveMap(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse carve map file %q", fn)
	}
	return cm, nil
}

func readCarveMap(r io.Reader) (*CarveMap, error) {
	magic := make([]byte, len(carveMapMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != carveMapMagic {
		return nil, errors.New("not a carve map file")
	}
	var numFrames uint64
	if err := binary.Read(r, binary.LittleEndian, &numFrames); err != nil {
		return nil, err
	}
	cm := &CarveMap{Frames: make([]CarveMapFrame, numFrames)}
	for i := range cm.Frames {
		fr := &cm.Frames[i]
		head := make([]float64, 5)
		if err := binary.Read(r, binary.LittleEndian, head); err != nil {
			return nil, err
		}
		fr.Timestamp, fr.TimestampSigma = head[0], head[1]
		fr.SensorPos = r3.Vector{X: head[2], Y: head[3], Z: head[4]}
		var numPoints uint64
		if err := binary.Read(r, binary.LittleEndian, &numPoints); err != nil {
			return nil, err
		}
		fr.Points = make([]CarveMapPoint, numPoints)
		for j := range fr.Points {
			rec := make([]float64, 5)
			if err := binary.Read(r, binary.LittleEndian, rec); err != nil {
				return nil, err
			}
			fr.Points[j] = CarveMapPoint{
				Mean:         r3.Vector{X: rec[0], Y: rec[1], Z: rec[2]},
				SigmaRange:   rec[3],
				SigmaLateral: rec[4],
			}
		}
	}
	return cm, nil
}
