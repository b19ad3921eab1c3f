package carve

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/buildvox/carver/chunk"
	"github.com/buildvox/carver/floorplan"
	"github.com/buildvox/carver/noise"
	"github.com/buildvox/carver/octree"
	"github.com/buildvox/carver/trajectory"
)

// Carver orchestrates a carving run: propagate scan logs through the
// noise model, carve them into one shared octree either directly or
// chunk by chunk, merge a floorplan, pad, and serialize. All tree
// mutation is serialized through the carver's mutex, so chunk tasks may
// run concurrently.
type Carver struct {
	logger   golog.Logger
	settings Settings

	mu     sync.Mutex
	tree   *octree.Octree
	carved map[recordRef]bool
}

// recordRef identifies one carve-map point record.
type recordRef struct {
	frame uint32
	point uint32
}

// NewCarver creates a carver with an empty volume at the configured
// resolution.
func NewCarver(settings Settings, logger golog.Logger) (*Carver, error) {
	if err := settings.Validate(); err != nil {
		return nil, errors.Wrap(err, "cannot create carver")
	}
	tree, err := octree.New(settings.Resolution, logger)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create carver volume")
	}
	return &Carver{
		logger:   logger,
		settings: settings,
		tree:     tree,
		carved:   map[recordRef]bool{},
	}, nil
}

// Tree returns the carved volume. The tree must not be mutated while
// carving stages are running.
func (c *Carver) Tree() *octree.Octree { return c.tree }

// PropagateScanLog pushes every frame of a scan log through the mean of
// the noise model: the sensor's world position at the frame timestamp and
// each point's world-frame mean, with the intrinsic deviations carried
// along. Frames whose timestamp falls outside the trajectory are skipped.
func PropagateScanLog(sl *ScanLog, path *trajectory.Path, logger golog.Logger) (*chunk.CarveMap, error) {
	extrinsic, err := path.Extrinsics(sl.Sensor)
	if err != nil {
		return nil, errors.Wrap(err, "cannot propagate scan log")
	}

	cm := &chunk.CarveMap{}
	skipped := 0
	for i := range sl.Frames {
		fr := &sl.Frames[i]
		pose, err := path.PoseAt(fr.Timestamp)
		if err != nil {
			if errors.Is(err, trajectory.ErrPoseNotFound) {
				skipped++
				continue
			}
			return nil, errors.Wrapf(err, "cannot propagate frame %d", i)
		}
		sensorToWorld := extrinsic.Compose(pose.Transform())

		out := chunk.CarveMapFrame{
			Timestamp:      fr.Timestamp,
			TimestampSigma: sl.TimestampSigma,
			SensorPos:      sensorToWorld.Apply(r3.Vector{}),
			Points:         make([]chunk.CarveMapPoint, len(fr.Points)),
		}
		for j, pt := range fr.Points {
			out.Points[j] = chunk.CarveMapPoint{
				Mean:         sensorToWorld.Apply(pt.Position),
				SigmaRange:   pt.SigmaRange,
				SigmaLateral: pt.SigmaLateral,
			}
		}
		cm.Frames = append(cm.Frames, out)
	}
	if skipped > 0 {
		logger.Debugf("skipped %d of %d frames outside the trajectory", skipped, len(sl.Frames))
	}
	if len(cm.Frames) == 0 {
		return nil, errors.New("no scan frame falls within the trajectory")
	}
	return cm, nil
}

// GenerateWedges pairs every two consecutive frames and every two
// adjacent points within them into interpolated wedges.
func GenerateWedges(cm *chunk.CarveMap, buffer float64) *chunk.WedgeSet {
	ws := &chunk.WedgeSet{Buffer: buffer}
	for fi := 0; fi+1 < len(cm.Frames); fi++ {
		np := len(cm.Frames[fi].Points)
		if n := len(cm.Frames[fi+1].Points); n < np {
			np = n
		}
		for pi := 0; pi+1 < np; pi++ {
			ws.Wedges = append(ws.Wedges, chunk.Wedge{
				FrameA: uint32(fi), PointA1: uint32(pi), PointA2: uint32(pi + 1),
				FrameB: uint32(fi + 1), PointB1: uint32(pi), PointB2: uint32(pi + 1),
				Interpolate: true,
			})
		}
	}
	return ws
}

// wedgeShape builds the carving volume of one wedge from its carve-map
// records.
func wedgeShape(cm *chunk.CarveMap, wg chunk.Wedge, buffer float64) *WedgeShape {
	fa, fb := &cm.Frames[wg.FrameA], &cm.Frames[wg.FrameB]
	return NewWedgeShape(
		fa.SensorPos, fa.Points[wg.PointA1], fa.Points[wg.PointA2],
		fb.SensorPos, fb.Points[wg.PointB1], fb.Points[wg.PointB2],
		buffer, wg.Interpolate)
}

// ExportChunks runs the out-of-core decomposition pass: the scan log is
// propagated, cut into wedges, and every chunk grid cell a wedge touches
// gets that wedge's index. The carve map, wedge set, chunk files and
// manifest are written under outDir; the manifest path is returned.
func (c *Carver) ExportChunks(ctx context.Context, sl *ScanLog, path *trajectory.Path, outDir string) (string, error) {
	start := time.Now()
	cm, err := PropagateScanLog(sl, path, c.logger)
	if err != nil {
		return "", errors.Wrap(err, "export stage 1 (propagate)")
	}
	ws := GenerateWedges(cm, c.settings.CarveBuffer)
	if err := ws.Validate(cm); err != nil {
		return "", errors.Wrap(err, "export stage 2 (wedge generation)")
	}

	exporter, err := chunk.NewExporter(c.settings.ChunkEdge, c.logger)
	if err != nil {
		return "", errors.Wrap(err, "export stage 3 (chunk grid)")
	}
	for i, wg := range ws.Wedges {
		if err := ctx.Err(); err != nil {
			return "", errors.Wrap(err, "export aborted")
		}
		exporter.Export(wedgeShape(cm, wg, c.settings.CarveBuffer), uint64(i))
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", errors.Wrap(err, "export stage 4 (output directory)")
	}
	if err := cm.WriteToFile(filepath.Join(outDir, "scan.carvemap")); err != nil {
		return "", errors.Wrap(err, "export stage 4 (carve map)")
	}
	if err := ws.WriteToFile(filepath.Join(outDir, "scan.wedge")); err != nil {
		return "", errors.Wrap(err, "export stage 5 (wedges)")
	}
	listFn := filepath.Join(outDir, "scan.chunklist")
	if err := exporter.WriteFiles(listFn, "chunks"); err != nil {
		return "", errors.Wrap(err, "export stage 6 (chunks)")
	}
	c.logger.Infof("exported %d wedges into %d chunks in %s",
		len(ws.Wedges), exporter.NumChunks(), time.Since(start))
	return listFn, nil
}

// CarveAllChunks carves every chunk named by the manifest into the
// shared tree, chunk tasks running concurrently up to the configured
// worker count. Each record carves exactly once however many chunks
// reference its wedges, and its sample stream depends only on the
// record identity, so serial and parallel runs produce the same volume.
// The carve map holds propagated world-frame means, so chunk carving
// samples the scan point Gaussian around each frame's mean pose; a
// direct carve of the same log matches it when the clock sigma is zero
// and the pose is constant over the frame.
func (c *Carver) CarveAllChunks(ctx context.Context, listFn string) error {
	start := time.Now()
	dir := filepath.Dir(listFn)
	dict, err := chunk.NewDictionaryFromFile(listFn, c.logger)
	if err != nil {
		return errors.Wrap(err, "carve stage 1 (chunk dictionary)")
	}
	cm, err := chunk.ReadCarveMap(filepath.Join(dir, "scan.carvemap"))
	if err != nil {
		return errors.Wrap(err, "carve stage 2 (carve map)")
	}
	ws, err := chunk.ReadWedgeSet(filepath.Join(dir, "scan.wedge"))
	if err != nil {
		return errors.Wrap(err, "carve stage 3 (wedges)")
	}
	if err := ws.Validate(cm); err != nil {
		return errors.Wrap(err, "carve stage 3 (wedges)")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.settings.Workers)
	for _, key := range dict.Keys() {
		path, _ := dict.Path(key)
		g.Go(func() error {
			if err := c.carveChunk(ctx, path, cm, ws); err != nil {
				return errors.Wrapf(err, "carve stage 4 (chunk %s)", path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	c.logger.Infof("carved %d chunks in %s", dict.NumChunks(), time.Since(start))
	return nil
}

// carveChunk carves all records referenced by one chunk's wedges.
func (c *Carver) carveChunk(ctx context.Context, path string, cm *chunk.CarveMap, ws *chunk.WedgeSet) error {
	ch, err := chunk.ReadChunk(path)
	if err != nil {
		return err
	}
	for _, idx := range ch.Indices {
		if err := ctx.Err(); err != nil {
			return err
		}
		if idx >= uint64(len(ws.Wedges)) {
			return errors.Wrapf(chunk.ErrInconsistentIndex, "wedge %d of %d", idx, len(ws.Wedges))
		}
		wg := ws.Wedges[idx]
		for _, ref := range []recordRef{
			{wg.FrameA, wg.PointA1}, {wg.FrameA, wg.PointA2},
			{wg.FrameB, wg.PointB1}, {wg.FrameB, wg.PointB2},
		} {
			if err := c.carveRecord(ref, cm); err != nil {
				return err
			}
		}
	}
	return nil
}

// CarveDirect carves a scan log straight into the tree without the chunk
// decomposition, pushing every point through the full noise chain: each
// sample draws a capture time around the frame timestamp, interpolates
// the trajectory pose there, and composes the sensor extrinsic before
// drawing the scan point itself.
func (c *Carver) CarveDirect(ctx context.Context, sl *ScanLog, path *trajectory.Path) error {
	start := time.Now()
	points := 0
	for fi := range sl.Frames {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "direct carve aborted")
		}
		for pi := range sl.Frames[fi].Points {
			if err := c.carveScanPoint(sl, path, fi, pi); err != nil {
				return errors.Wrapf(err, "direct carve frame %d point %d", fi, pi)
			}
			points++
		}
	}
	c.logger.Infof("carved %d points directly in %s", points, time.Since(start))
	return nil
}

// carveScanPoint Monte-Carlo carves one raw scan point, at most once per
// run. Samples whose capture time falls outside the trajectory are
// dropped; a point whose samples all fall outside carves nothing.
func (c *Carver) carveScanPoint(sl *ScanLog, path *trajectory.Path, fi, pi int) error {
	ref := recordRef{uint32(fi), uint32(pi)}
	if !c.claim(ref) {
		return nil
	}
	fr := &sl.Frames[fi]
	pt := fr.Points[pi]

	src := rand.NewPCG(c.settings.Seed, uint64(ref.frame)<<32|uint64(ref.point))
	model := noise.NewModel(path, src, c.logger)
	if err := model.SetSensor(sl.Sensor); err != nil {
		return err
	}
	model.SetTimestamp(fr.Timestamp, sl.TimestampSigma)
	model.SetScan(pt.Position, pt.SigmaRange, pt.SigmaLateral)
	if !model.ScanPoint().FiniteNoise() {
		c.logger.Debugf("skipping frame %d point %d with degenerate noise (%f, %f)",
			fi, pi, pt.SigmaRange, pt.SigmaLateral)
		return nil
	}

	type ray struct{ sensor, scan r3.Vector }
	rays := make([]ray, 0, c.settings.SamplesPerPoint)
	dropped := 0
	for i := 0; i < c.settings.SamplesPerPoint; i++ {
		sensorPos, scanPos, err := model.GenerateSample()
		if err != nil {
			if errors.Is(err, trajectory.ErrPoseNotFound) {
				dropped++
				continue
			}
			return err
		}
		rays = append(rays, ray{sensorPos, scanPos})
	}
	if dropped > 0 {
		c.logger.Debugf("dropped %d of %d samples with capture times outside the trajectory (frame %d point %d)",
			dropped, c.settings.SamplesPerPoint, fi, pi)
	}
	if len(rays) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	pc := NewPointCarver()
	for _, r := range rays {
		pc.AddSample(r.sensor, r.scan, c.tree)
	}
	return pc.UpdateTree()
}

// carveRecord Monte-Carlo carves one record into the tree, at most once
// per run. The sample stream is seeded by the record identity so runs are
// reproducible and chunk order is irrelevant.
func (c *Carver) carveRecord(ref recordRef, cm *chunk.CarveMap) error {
	if !c.claim(ref) {
		return nil
	}
	fr := &cm.Frames[ref.frame]
	pt := fr.Points[ref.point]

	sp := noise.NewNoisyScanPoint(pt.Mean.Sub(fr.SensorPos), pt.SigmaRange, pt.SigmaLateral)
	if !sp.FiniteNoise() {
		c.logger.Debugf("skipping frame %d point %d with degenerate noise (%f, %f)",
			ref.frame, ref.point, pt.SigmaRange, pt.SigmaLateral)
		return nil
	}

	src := rand.NewPCG(c.settings.Seed, uint64(ref.frame)<<32|uint64(ref.point))
	stdNormal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	scans := make([]r3.Vector, c.settings.SamplesPerPoint)
	for i := range scans {
		scans[i] = fr.SensorPos.Add(sp.Sample(&stdNormal))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	pc := NewPointCarver()
	for _, scan := range scans {
		pc.AddSample(fr.SensorPos, scan, c.tree)
	}
	return pc.UpdateTree()
}

// claim marks a record as carved, returning false if it already was.
func (c *Carver) claim(ref recordRef) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.carved[ref] {
		return false
	}
	c.carved[ref] = true
	return true
}

// ImportFloorplan labels every observed leaf inside a floorplan room
// with the room's index.
func (c *Carver) ImportFloorplan(fp *floorplan.Floorplan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ri := 0; ri < fp.NumRooms(); ri++ {
		c.tree.Find(floorplan.NewExtrudedPoly(fp, ri, int32(ri)))
	}
	c.logger.Infof("labeled volume with %d floorplan rooms", fp.NumRooms())
}

// Pad fills unexplored space bordering explored nodes with empty leaves,
// so downstream consumers never see nil children on interior nodes.
func (c *Carver) Pad() {
	c.mu.Lock()
	defer c.mu.Unlock()
	octree.Pad(c.tree)
}

// WriteToFile serializes the carved volume.
func (c *Carver) WriteToFile(fn string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.WriteToFile(fn)
}
