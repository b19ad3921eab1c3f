package chunk

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

const chunklistMagic = "chunklist"

// Dictionary resolves world positions to chunk files. It is built from a
// .chunklist manifest plus the headers of the chunk files it names, and
// is the lookup structure the refinement stage uses to find the chunks
// covering a region worth re-carving.
type Dictionary struct {
	center    r3.Vector
	halfwidth float64
	edge      float64
	paths     map[Key]string
}

// Center returns the center of the chunked domain.
func (d *Dictionary) Center() r3.Vector { return d.center }

// Halfwidth returns half the edge length of the chunked domain cube.
func (d *Dictionary) Halfwidth() float64 { return d.halfwidth }

// Edge returns the chunk edge length.
func (d *Dictionary) Edge() float64 { return d.edge }

// NumChunks returns the number of chunk files.
func (d *Dictionary) NumChunks() int { return len(d.paths) }

// Keys returns the keys of all populated cells, in no particular order.
func (d *Dictionary) Keys() []Key {
	keys := make([]Key, 0, len(d.paths))
	for k := range d.paths {
		keys = append(keys, k)
	}
	return keys
}

// Path returns the chunk file for a populated cell.
func (d *Dictionary) Path(k Key) (string, bool) {
	p, ok := d.paths[k]
	return p, ok
}

// PathAt returns the chunk file covering the world position p.
func (d *Dictionary) PathAt(p r3.Vector) (string, bool) {
	return d.Path(KeyAt(p, d.edge))
}

// NewDictionaryFromFile parses a .chunklist manifest and the headers of
// every chunk file it names.
func NewDictionaryFromFile(fn string, logger golog.Logger) (*Dictionary, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open chunk list %q", fn)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	d, err := readDictionary(bufio.NewReader(f), filepath.Dir(fn))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse chunk list %q", fn)
	}
	logger.Debugf("loaded chunk dictionary: %d chunks, edge %f m", d.NumChunks(), d.edge)
	return d, nil
}

func readDictionary(r *bufio.Reader, baseDir string) (*Dictionary, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != chunklistMagic {
		return nil, errors.New("not a chunk list file")
	}

	d := &Dictionary{paths: map[Key]string{}}
	numChunks := -1
	chunkDir := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "center":
			if _, err := fmt.Sscanf(line, "center %f %f %f",
				&d.center.X, &d.center.Y, &d.center.Z); err != nil {
				return nil, errors.Wrap(err, "invalid center tag")
			}
		case "halfwidth":
			if _, err := fmt.Sscanf(line, "halfwidth %f", &d.halfwidth); err != nil {
				return nil, errors.Wrap(err, "invalid halfwidth tag")
			}
		case "num_chunks":
			if _, err := fmt.Sscanf(line, "num_chunks %d", &numChunks); err != nil {
				return nil, errors.Wrap(err, "invalid num_chunks tag")
			}
		case "chunk_dir":
			if len(fields) != 2 {
				return nil, errors.New("invalid chunk_dir tag")
			}
			chunkDir = fields[1]
		case "end_header":
			return d, d.readChunkEntries(scanner, baseDir, chunkDir, numChunks)
		default:
			return nil, errors.Errorf("unknown chunk list tag %q", fields[0])
		}
	}
	return nil, errors.New("chunk list header not terminated")
}

func (d *Dictionary) readChunkEntries(scanner *bufio.Scanner, baseDir, chunkDir string, numChunks int) error {
	if numChunks < 0 {
		return errors.New("chunk list missing num_chunks tag")
	}
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		path := filepath.Join(baseDir, chunkDir, name+".chunk")
		c, err := ReadChunk(path)
		if err != nil {
			return err
		}
		if d.edge == 0 {
			d.edge = 2 * c.Halfwidth
		} else if 2*c.Halfwidth != d.edge {
			return errors.Errorf("chunk %s edge %f does not match dictionary edge %f",
				name, 2*c.Halfwidth, d.edge)
		}
		d.paths[c.Key()] = path
	}
	if len(d.paths) != numChunks {
		return errors.Errorf("chunk list names %d chunks, header claims %d",
			len(d.paths), numChunks)
	}
	return scanner.Err()
}

// writeChunklist writes the manifest for the given chunk file names.
func writeChunklist(fn string, center r3.Vector, halfwidth float64, chunkDir string, names []string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return errors.Wrapf(err, "cannot create chunk list %q", fn)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, chunklistMagic)
	fmt.Fprintf(w, "center %f %f %f\n", center.X, center.Y, center.Z)
	fmt.Fprintf(w, "halfwidth %f\n", halfwidth)
	fmt.Fprintf(w, "num_chunks %d\n", len(names))
	fmt.Fprintf(w, "chunk_dir %s\n", chunkDir)
	fmt.Fprintln(w, "end_header")
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
	return w.Flush()
}
