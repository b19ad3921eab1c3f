package chunk

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

const chunkMagic = "chunkfile\x00"

// Chunk is one grid cell's wedge index list: every wedge whose bloated
// geometry intersected the cell during export. A carve task loads one
// chunk and carves exactly these wedges.
type Chunk struct {
	UUID      uuid.UUID
	Center    r3.Vector
	Halfwidth float64
	Indices   []uint64
}

// Key returns the grid key of this chunk's cell.
func (c *Chunk) Key() Key {
	return KeyAt(c.Center, 2*c.Halfwidth)
}

// WriteToFile serializes the chunk to the named .chunk file.
func (c *Chunk) WriteToFile(fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return errors.Wrapf(err, "cannot create chunk file %q", fn)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err := c.write(w); err != nil {
		return errors.Wrapf(err, "cannot serialize chunk to %q", fn)
	}
	return w.Flush()
}

func (c *Chunk) write(w io.Writer) error {
	if _, err := w.Write([]byte(chunkMagic)); err != nil {
		return err
	}
	if _, err := w.Write(c.UUID[:]); err != nil {
		return err
	}
	geom := []float64{c.Center.X, c.Center.Y, c.Center.Z, c.Halfwidth}
	if err := binary.Write(w, binary.LittleEndian, geom); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(c.Indices))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, c.Indices)
}

// ReadChunk parses a chunk from the named .chunk file.
func ReadChunk(fn string) (*Chunk, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open chunk file %q", fn)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	c, err := readChunk(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse chunk file %q", fn)
	}
	return c, nil
}

func readChunk(r io.Reader) (*Chunk, error) {
	magic := make([]byte, len(chunkMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != chunkMagic {
		return nil, errors.New("not a chunk file")
	}
	var c Chunk
	if _, err := io.ReadFull(r, c.UUID[:]); err != nil {
		return nil, err
	}
	geom := make([]float64, 4)
	if err := binary.Read(r, binary.LittleEndian, geom); err != nil {
		return nil, err
	}
	c.Center = r3.Vector{X: geom[0], Y: geom[1], Z: geom[2]}
	c.Halfwidth = geom[3]
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	c.Indices = make([]uint64, count)
	if err := binary.Read(r, binary.LittleEndian, c.Indices); err != nil {
		return nil, err
	}
	return &c, nil
}
