package chunk

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

const wedgeMagic = "wedge\x00"

// Wedge references the four carve-map records spanning one sliver of
// scanned volume: two adjacent points in frame A and the two
// corresponding points in frame B. The referenced distributions, bloated
// by the carve buffer, bound the region a wedge carves.
type Wedge struct {
	FrameA  uint32
	PointA1 uint32
	PointA2 uint32
	FrameB  uint32
	PointB1 uint32
	PointB2 uint32
	// Interpolate marks wedges whose frames are adjacent in time, so
	// carving may blend the two frames' values across the wedge.
	Interpolate bool
}

// WedgeSet is all wedges of one scan log plus the carve buffer they were
// generated with, in units of standard deviations.
type WedgeSet struct {
	Buffer float64
	Wedges []Wedge
}

// Validate checks every wedge reference against the carve map, returning
// ErrInconsistentIndex on the first out-of-range reference.
func (ws *WedgeSet) Validate(cm *CarveMap) error {
	checkPoint := func(frame, point uint32) error {
		if int(frame) >= len(cm.Frames) {
			return errors.Wrapf(ErrInconsistentIndex, "frame %d of %d", frame, len(cm.Frames))
		}
		if int(point) >= len(cm.Frames[frame].Points) {
			return errors.Wrapf(ErrInconsistentIndex, "frame %d point %d of %d",
				frame, point, len(cm.Frames[frame].Points))
		}
		return nil
	}
	for i, wg := range ws.Wedges {
		for _, ref := range [][2]uint32{
			{wg.FrameA, wg.PointA1}, {wg.FrameA, wg.PointA2},
			{wg.FrameB, wg.PointB1}, {wg.FrameB, wg.PointB2},
		} {
			if err := checkPoint(ref[0], ref[1]); err != nil {
				return errors.Wrapf(err, "wedge %d", i)
			}
		}
	}
	return nil
}

// WriteToFile serializes the wedge set to the named .wedge file.
func (ws *WedgeSet) WriteToFile(fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return errors.Wrapf(err, "cannot create wedge file %q", fn)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err := ws.write(w); err != nil {
		return errors.Wrapf(err, "cannot serialize wedges to %q", fn)
	}
	return w.Flush()
}

func (ws *WedgeSet) write(w io.Writer) error {
	if _, err := w.Write([]byte(wedgeMagic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(ws.Wedges))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, ws.Buffer); err != nil {
		return err
	}
	for _, wg := range ws.Wedges {
		refs := []uint32{wg.FrameA, wg.PointA1, wg.PointA2, wg.FrameB, wg.PointB1, wg.PointB2}
		if err := binary.Write(w, binary.LittleEndian, refs); err != nil {
			return err
		}
		interp := byte(0)
		if wg.Interpolate {
			interp = 1
		}
		if _, err := w.Write([]byte{interp}); err != nil {
			return err
		}
	}
	return nil
}

// ReadWedgeSet parses a wedge set from the named .wedge file.
func ReadWedgeSet(fn string) (*WedgeSet, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open wedge file %q", fn)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	ws, err := readWedgeSet(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse wedge file %q", fn)
	}
	return ws, nil
}

func readWedgeSet(r io.Reader) (*WedgeSet, error) {
	magic := make([]byte, len(wedgeMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != wedgeMagic {
		return nil, errors.New("not a wedge file")
	}
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	ws := &WedgeSet{Wedges: make([]Wedge, count)}
	if err := binary.Read(r, binary.LittleEndian, &ws.Buffer); err != nil {
		return nil, err
	}
	refs := make([]uint32, 6)
	var flag [1]byte
	for i := range ws.Wedges {
		if err := binary.Read(r, binary.LittleEndian, refs); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(r, flag[:]); err != nil {
			return nil, err
		}
		ws.Wedges[i] = Wedge{
			FrameA: refs[0], PointA1: refs[1], PointA2: refs[2],
			FrameB: refs[3], PointB1: refs[4], PointB2: refs[5],
			Interpolate: flag[0] != 0,
		}
	}
	return ws, nil
}
