package floorplan

import (
	"bufio"
	"fmt"
	"os"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// NewFromFile parses an extruded floorplan from a .fp text file. The
// format is, one value group per line, all units meters:
//
//	resolution
//	num_verts
//	num_tris
//	num_rooms
//	x y                          (per vertex)
//	i j k                        (per triangle)
//	min_z max_z num_tris t ...   (per room)
func NewFromFile(fn string, logger golog.Logger) (*Floorplan, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open floorplan file %q", fn)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	fp, err := read(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse floorplan file %q", fn)
	}
	logger.Debugf("parsed floorplan %q: %d verts, %d tris, %d rooms",
		fn, len(fp.Verts), len(fp.Tris), len(fp.Rooms))
	return fp, nil
}

func read(r *bufio.Reader) (*Floorplan, error) {
	var fp Floorplan
	var numVerts, numTris, numRooms int
	if _, err := fmt.Fscan(r, &fp.Resolution, &numVerts, &numTris, &numRooms); err != nil {
		return nil, errors.Wrap(err, "cannot read header")
	}
	if fp.Resolution <= 0 {
		return nil, errors.Errorf("invalid resolution %f", fp.Resolution)
	}
	if numVerts < 0 || numTris < 0 || numRooms < 0 {
		return nil, errors.Errorf("invalid counts (%d verts, %d tris, %d rooms)",
			numVerts, numTris, numRooms)
	}

	fp.Verts = make([]Vertex, numVerts)
	for i := range fp.Verts {
		if _, err := fmt.Fscan(r, &fp.Verts[i].X, &fp.Verts[i].Y); err != nil {
			return nil, errors.Wrapf(err, "cannot read vertex %d", i)
		}
	}

	fp.Tris = make([]Triangle, numTris)
	for i := range fp.Tris {
		t := &fp.Tris[i]
		if _, err := fmt.Fscan(r, &t[0], &t[1], &t[2]); err != nil {
			return nil, errors.Wrapf(err, "cannot read triangle %d", i)
		}
		for _, vi := range t {
			if vi < 0 || vi >= numVerts {
				return nil, errors.Errorf("triangle %d references invalid vertex %d", i, vi)
			}
		}
	}

	fp.Rooms = make([]Room, numRooms)
	for i := range fp.Rooms {
		room := &fp.Rooms[i]
		var n int
		if _, err := fmt.Fscan(r, &room.MinZ, &room.MaxZ, &n); err != nil {
			return nil, errors.Wrapf(err, "cannot read room %d", i)
		}
		if room.MinZ > room.MaxZ {
			return nil, errors.Errorf("room %d floor %f above ceiling %f", i, room.MinZ, room.MaxZ)
		}
		room.Tris = make([]int, n)
		for j := range room.Tris {
			if _, err := fmt.Fscan(r, &room.Tris[j]); err != nil {
				return nil, errors.Wrapf(err, "cannot read room %d triangle list", i)
			}
			if room.Tris[j] < 0 || room.Tris[j] >= numTris {
				return nil, errors.Errorf("room %d references invalid triangle %d", i, room.Tris[j])
			}
		}
	}
	return &fp, nil
}
