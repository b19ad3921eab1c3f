package octree

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// The .oct volume format: a fixed magic string and version, the depth of
// the resolution limit, then the recursive node structure. Every
// downstream consumer of a carved volume reads this format.
const (
	octMagic   = "octfile\x00"
	octVersion = uint32(2)
)

// WriteToFile serializes the octree to the named .oct file.
func (o *Octree) WriteToFile(fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return errors.Wrapf(err, "cannot create octree file %q", fn)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err := o.write(w); err != nil {
		return errors.Wrapf(err, "cannot serialize octree to %q", fn)
	}
	return w.Flush()
}

func (o *Octree) write(w io.Writer) error {
	if _, err := w.Write([]byte(octMagic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, octVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(o.maxDepth)); err != nil {
		return err
	}
	return writeNode(w, o.root)
}

func writeNode(w io.Writer, n *Node) error {
	geom := []float64{n.center.X, n.center.Y, n.center.Z, n.halfwidth}
	if err := binary.Write(w, binary.LittleEndian, geom); err != nil {
		return err
	}
	if n.data == nil {
		if _, err := w.Write([]byte{0}); err != nil {
			return err
		}
	} else {
		if _, err := w.Write([]byte{1}); err != nil {
			return err
		}
		if err := writeLeafData(w, n.data); err != nil {
			return err
		}
	}
	for i := 0; i < numChildren; i++ {
		if n.children[i] == nil {
			if _, err := w.Write([]byte{0}); err != nil {
				return err
			}
			continue
		}
		if _, err := w.Write([]byte{1}); err != nil {
			return err
		}
		if err := writeNode(w, n.children[i]); err != nil {
			return err
		}
	}
	return nil
}

func writeLeafData(w io.Writer, d *LeafData) error {
	if err := binary.Write(w, binary.LittleEndian, d.Count); err != nil {
		return err
	}
	sums := []float64{d.TotalWeight, d.ProbSum, d.ProbSumSq, d.SurfaceSum, d.CornerSum, d.PlanarSum}
	if err := binary.Write(w, binary.LittleEndian, sums); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, d.Room)
}

// NewFromFile parses a serialized octree from the named .oct file.
func NewFromFile(fn string, logger golog.Logger) (*Octree, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open octree file %q", fn)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	o, err := read(bufio.NewReader(f), logger)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse octree file %q", fn)
	}
	logger.Debugf("loaded octree with %d nodes from %s", o.NumNodes(), fn)
	return o, nil
}

func read(r io.Reader, logger golog.Logger) (*Octree, error) {
	magic := make([]byte, len(octMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != octMagic {
		return nil, errors.New("not an octree volume file")
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != octVersion {
		return nil, errors.Errorf("unsupported octree file version %d", version)
	}
	var maxDepth int32
	if err := binary.Read(r, binary.LittleEndian, &maxDepth); err != nil {
		return nil, err
	}
	root, err := readNode(r)
	if err != nil {
		return nil, err
	}
	return &Octree{logger: logger, root: root, maxDepth: int(maxDepth)}, nil
}

func readNode(r io.Reader) (*Node, error) {
	geom := make([]float64, 4)
	if err := binary.Read(r, binary.LittleEndian, geom); err != nil {
		return nil, err
	}
	n := newNode(r3.Vector{X: geom[0], Y: geom[1], Z: geom[2]}, geom[3])

	var flag [1]byte
	if _, err := io.ReadFull(r, flag[:]); err != nil {
		return nil, err
	}
	if flag[0] != 0 {
		d, err := readLeafData(r)
		if err != nil {
			return nil, err
		}
		n.data = d
	}
	for i := 0; i < numChildren; i++ {
		if _, err := io.ReadFull(r, flag[:]); err != nil {
			return nil, err
		}
		if flag[0] == 0 {
			continue
		}
		child, err := readNode(r)
		if err != nil {
			return nil, err
		}
		n.children[i] = child
	}
	return n, nil
}

func readLeafData(r io.Reader) (*LeafData, error) {
	d := NewLeafData()
	if err := binary.Read(r, binary.LittleEndian, &d.Count); err != nil {
		return nil, err
	}
	sums := make([]float64, 6)
	if err := binary.Read(r, binary.LittleEndian, sums); err != nil {
		return nil, err
	}
	d.TotalWeight, d.ProbSum, d.ProbSumSq = sums[0], sums[1], sums[2]
	d.SurfaceSum, d.CornerSum, d.PlanarSum = sums[3], sums[4], sums[5]
	if err := binary.Read(r, binary.LittleEndian, &d.Room); err != nil {
		return nil, err
	}
	return d, nil
}
