// Package main is the carving pipeline command itself.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/buildvox/carver/carve"
	"github.com/buildvox/carver/floorplan"
	"github.com/buildvox/carver/hist"
	"github.com/buildvox/carver/octree"
	"github.com/buildvox/carver/trajectory"
)

const (
	// Flags.
	flagSettings    = "settings"
	flagResolution  = "resolution"
	flagCarveBuffer = "carve-buffer"
	flagChunkEdge   = "chunk-edge"
	flagWorkers     = "workers"
	flagSamples     = "samples"
	flagSeed        = "seed"
	flagScan        = "scan"
	flagTrajectory  = "trajectory"
	flagFloorplan   = "floorplan"
	flagVolume      = "volume"
	flagChunks      = "chunks"
	flagOut         = "out"
	flagDepth       = "depth"
	flagPad         = "pad"
	flagThreshold   = "threshold"
)

var logger golog.Logger

func main() {
	app := &cli.App{
		Name:  "carver",
		Usage: "carve probabilistic occupancy volumes from range scans",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagSettings,
				Aliases: []string{"c"},
				Usage:   "load run settings from `FILE`",
			},
			&cli.Float64Flag{
				Name:  flagResolution,
				Usage: "finest voxel edge length in meters",
			},
			&cli.Float64Flag{
				Name:  flagCarveBuffer,
				Usage: "carve distance past scan points in standard deviations",
			},
			&cli.Float64Flag{
				Name:  flagChunkEdge,
				Usage: "chunk grid cell edge length in meters",
			},
			&cli.IntFlag{
				Name:  flagWorkers,
				Usage: "number of concurrent chunk carving tasks",
			},
			&cli.IntFlag{
				Name:  flagSamples,
				Usage: "Monte-Carlo samples per scan point",
			},
			&cli.Uint64Flag{
				Name:  flagSeed,
				Usage: "random seed anchoring the sample streams",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				logger = golog.NewDebugLogger("carver")
			} else {
				logger = zap.NewNop().Sugar()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "export-chunks",
				Usage:  "propagate a scan log and split its wedges into chunk files",
				Action: ExportChunksAction,
				Flags: []cli.Flag{
					scanFlag(), trajectoryFlag(),
					&cli.StringFlag{
						Name:     flagOut,
						Usage:    "output `DIR` for chunk files",
						Required: true,
					},
				},
			},
			{
				Name:   "carve",
				Usage:  "carve a scan log into an occupancy volume",
				Action: CarveAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagScan,
						Usage: "scan log `FILE` (direct carving)",
					},
					&cli.StringFlag{
						Name:  flagTrajectory,
						Usage: "system trajectory `FILE` (direct carving)",
					},
					&cli.StringFlag{
						Name:  flagChunks,
						Usage: "carve from an exported `CHUNKLIST` instead of directly",
					},
					&cli.StringFlag{
						Name:  flagFloorplan,
						Usage: "merge room labels from a floorplan `FILE` after carving",
					},
					&cli.BoolFlag{
						Name:  flagPad,
						Usage: "pad unexplored octants with empty leaves before writing",
					},
					outVolumeFlag(),
				},
			},
			{
				Name:   "merge-fp",
				Usage:  "label a carved volume's voxels with floorplan room ids",
				Action: MergeFloorplanAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagVolume,
						Usage:    "carved volume `FILE` to label",
						Required: true,
					},
					&cli.StringFlag{
						Name:     flagFloorplan,
						Usage:    "floorplan `FILE` to merge",
						Required: true,
					},
					outVolumeFlag(),
				},
			},
			{
				Name:   "refine",
				Usage:  "carve chunks, then re-carve object regions at a finer resolution",
				Action: RefineAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagChunks,
						Usage:    "exported `CHUNKLIST` to carve from",
						Required: true,
					},
					&cli.StringFlag{
						Name:     flagFloorplan,
						Usage:    "floorplan `FILE` locating rooms",
						Required: true,
					},
					&cli.IntFlag{
						Name:  flagDepth,
						Usage: "extra octree depth for refined regions",
						Value: 1,
					},
					outVolumeFlag(),
				},
			},
			{
				Name:   "hist",
				Usage:  "project a carved volume into a top-down occupancy histogram",
				Action: HistAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagVolume,
						Usage:    "carved volume `FILE` to project",
						Required: true,
					},
					&cli.Float64Flag{
						Name:  flagResolution,
						Usage: "histogram cell edge length in meters (default: volume resolution)",
					},
					&cli.Float64Flag{
						Name:  flagThreshold,
						Usage: "also segment cells above this weight into connected regions",
					},
					&cli.StringFlag{
						Name:     flagOut,
						Usage:    "output text `FILE`",
						Required: true,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func scanFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     flagScan,
		Usage:    "scan log `FILE`",
		Required: true,
	}
}

func trajectoryFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     flagTrajectory,
		Usage:    "system trajectory `FILE`",
		Required: true,
	}
}

func outVolumeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     flagOut,
		Usage:    "output volume `FILE`",
		Required: true,
	}
}

// runSettings resolves the run parameters: defaults, then the settings
// file, then individual flag overrides.
func runSettings(c *cli.Context) (carve.Settings, error) {
	settings := carve.DefaultSettings()
	if fn := c.String(flagSettings); fn != "" {
		var err error
		if settings, err = carve.LoadSettings(fn); err != nil {
			return settings, err
		}
	}
	if c.IsSet(flagResolution) {
		settings.Resolution = c.Float64(flagResolution)
	}
	if c.IsSet(flagCarveBuffer) {
		settings.CarveBuffer = c.Float64(flagCarveBuffer)
	}
	if c.IsSet(flagChunkEdge) {
		settings.ChunkEdge = c.Float64(flagChunkEdge)
	}
	if c.IsSet(flagWorkers) {
		settings.Workers = c.Int(flagWorkers)
	}
	if c.IsSet(flagSamples) {
		settings.SamplesPerPoint = c.Int(flagSamples)
	}
	if c.IsSet(flagSeed) {
		settings.Seed = c.Uint64(flagSeed)
	}
	return settings, settings.Validate()
}

func loadInputs(c *cli.Context) (*carve.ScanLog, *trajectory.Path, error) {
	sl, err := carve.ReadScanLog(c.String(flagScan))
	if err != nil {
		return nil, nil, err
	}
	path, err := trajectory.NewFromFile(c.String(flagTrajectory), logger)
	if err != nil {
		return nil, nil, err
	}
	return sl, path, nil
}

// ExportChunksAction is the corresponding Action for 'export-chunks'.
func ExportChunksAction(c *cli.Context) error {
	settings, err := runSettings(c)
	if err != nil {
		return err
	}
	sl, path, err := loadInputs(c)
	if err != nil {
		return err
	}
	carver, err := carve.NewCarver(settings, logger)
	if err != nil {
		return err
	}
	listFn, err := carver.ExportChunks(c.Context, sl, path, c.String(flagOut))
	if err != nil {
		return err
	}
	printf(c.App.Writer, "wrote chunk manifest %s", listFn)
	return nil
}

// CarveAction is the corresponding Action for 'carve'.
func CarveAction(c *cli.Context) error {
	settings, err := runSettings(c)
	if err != nil {
		return err
	}
	carver, err := carve.NewCarver(settings, logger)
	if err != nil {
		return err
	}

	if listFn := c.String(flagChunks); listFn != "" {
		err = carver.CarveAllChunks(c.Context, listFn)
	} else {
		if c.String(flagScan) == "" || c.String(flagTrajectory) == "" {
			return errors.Errorf("direct carving needs --%s and --%s", flagScan, flagTrajectory)
		}
		var sl *carve.ScanLog
		var path *trajectory.Path
		if sl, path, err = loadInputs(c); err != nil {
			return err
		}
		err = carver.CarveDirect(c.Context, sl, path)
	}
	if err != nil {
		return err
	}

	if fpFn := c.String(flagFloorplan); fpFn != "" {
		fp, err := floorplan.NewFromFile(fpFn, logger)
		if err != nil {
			return err
		}
		carver.ImportFloorplan(fp)
	}
	if c.Bool(flagPad) {
		carver.Pad()
	}

	out := c.String(flagOut)
	if err := carver.WriteToFile(out); err != nil {
		return err
	}
	printf(c.App.Writer, "wrote %d-node volume %s", carver.Tree().NumNodes(), out)
	return nil
}

// MergeFloorplanAction is the corresponding Action for 'merge-fp'.
func MergeFloorplanAction(c *cli.Context) error {
	tree, err := octree.NewFromFile(c.String(flagVolume), logger)
	if err != nil {
		return err
	}
	fp, err := floorplan.NewFromFile(c.String(flagFloorplan), logger)
	if err != nil {
		return err
	}
	for ri := range fp.Rooms {
		tree.Find(floorplan.NewExtrudedPoly(fp, ri, int32(ri)))
	}
	out := c.String(flagOut)
	if err := tree.WriteToFile(out); err != nil {
		return err
	}
	printf(c.App.Writer, "labeled %d rooms into %s", fp.NumRooms(), out)
	return nil
}

// RefineAction is the corresponding Action for 'refine'.
func RefineAction(c *cli.Context) error {
	settings, err := runSettings(c)
	if err != nil {
		return err
	}
	carver, err := carve.NewCarver(settings, logger)
	if err != nil {
		return err
	}

	listFn := c.String(flagChunks)
	if err := carver.CarveAllChunks(c.Context, listFn); err != nil {
		return err
	}
	fp, err := floorplan.NewFromFile(c.String(flagFloorplan), logger)
	if err != nil {
		return err
	}
	carver.ImportFloorplan(fp)
	if err := carver.RefineObjects(c.Context, listFn, c.Int(flagDepth)); err != nil {
		return err
	}

	out := c.String(flagOut)
	if err := carver.WriteToFile(out); err != nil {
		return err
	}
	printf(c.App.Writer, "wrote refined volume %s", out)
	return nil
}

// HistAction is the corresponding Action for 'hist'.
func HistAction(c *cli.Context) error {
	tree, err := octree.NewFromFile(c.String(flagVolume), logger)
	if err != nil {
		return err
	}
	h, err := hist.NewFromOctree(tree, c.Float64(flagResolution), logger)
	if err != nil {
		return err
	}
	out := c.String(flagOut)
	if err := h.WriteToFile(out); err != nil {
		return err
	}
	printf(c.App.Writer, "wrote %d-cell histogram %s", h.NumCells(), out)

	if c.IsSet(flagThreshold) {
		rooms := h.Segment(c.Float64(flagThreshold))
		printf(c.App.Writer, "segmented %d connected regions", len(rooms))
	}
	return nil
}

func printf(w io.Writer, format string, args ...interface{}) {
	if _, err := fmt.Fprintf(w, format+"\n", args...); err != nil {
		panic(errors.Wrap(err, "could not print to writer"))
	}
}
