// Package: main
// File: main.go
// Description: CLI entry point for the DRR rendering engine.
//
//	Loads a volume (and optionally a fiducial point set) from file, sets
//	up the engine from flags and/or a named device preset, renders one
//	projection, and writes a PNG plus any projected fiducial pixel
//	coordinates.
//
// Author: Ivan Grega
// License: MIT
package main

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/pkg/profile"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli"

	"github.com/drrproj/drrengine/config"
	"github.com/drrproj/drrengine/engine"
	"github.com/drrproj/drrengine/fiducial"
	"github.com/drrproj/drrengine/internal/diag"
	"github.com/drrproj/drrengine/shapes"
	"github.com/drrproj/drrengine/volume"
)

// timer returns a stop function that logs the elapsed time when called,
// tagged with a correlation id so concurrent/batched runs can be told
// apart in the log.
func timer(correlationID string) func() {
	start := time.Now()
	return func() {
		log.Info().Str("correlation_id", correlationID).Msgf("Elapsed time: %v", time.Since(start))
	}
}

// parseTriple splits a "x,y,z" flag value into three float64s.
func parseTriple(s string) ([3]float64, error) {
	var out [3]float64
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return out, fmt.Errorf("expected 3 comma-separated values, got %q", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return out, fmt.Errorf("parsing %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}

// loadSyntheticVolume builds a volume by voxelizing the --synthetic_shape
// descriptor onto a --synthetic_dims/--synthetic_spacing lattice, the
// --synthetic CLI source: a caller with no CT file on disk (a demo, a
// scenario reproduction, a CI smoke render) gets a volume straight out of
// shapes.Voxelize instead of volume.LoadConfig/LoadRaw.
func loadSyntheticVolume(cCtx *cli.Context) (*volume.Volume, error) {
	var shapeData map[string]interface{}
	if err := json.Unmarshal([]byte(cCtx.String("synthetic_shape")), &shapeData); err != nil {
		return nil, fmt.Errorf("parsing --synthetic_shape: %w", err)
	}
	shape, err := shapes.New(shapeData)
	if err != nil {
		return nil, fmt.Errorf("building synthetic shape: %w", err)
	}

	dimsF, err := parseTriple(cCtx.String("synthetic_dims"))
	if err != nil {
		return nil, fmt.Errorf("parsing --synthetic_dims: %w", err)
	}
	dims := [3]int{int(dimsF[0]), int(dimsF[1]), int(dimsF[2])}

	spacing, err := parseTriple(cCtx.String("synthetic_spacing"))
	if err != nil {
		return nil, fmt.Errorf("parsing --synthetic_spacing: %w", err)
	}

	return shapes.Voxelize(shape, dims, spacing, cCtx.Float64("synthetic_scale_hu"))
}

func savePNG(path string, result engine.RenderResult) error {
	img := image.NewGray(image.Rect(0, 0, result.Dx, result.Dy))
	for row := 0; row < result.Dy; row++ {
		for col := 0; col < result.Dx; col++ {
			img.SetGray(col, row, color.Gray{Y: result.Pixels[row*result.Dx+col]})
		}
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file %q: %w", path, err)
	}
	defer out.Close()
	return png.Encode(out, img)
}

func run(cCtx *cli.Context) error {
	correlationID := uuid.NewString()
	defer timer(correlationID)()

	logger := diag.NewFileLogger(cCtx.String("log_file"), cCtx.String("log_level"))
	log.Logger = logger
	sink := &diag.ZerologSink{Logger: logger.With().Str("correlation_id", correlationID).Logger()}

	e := engine.New(sink)

	var volumeEulerRad, volumeTransMM mgl64.Vec3
	if presetName := cCtx.String("preset"); presetName != "" {
		presetsPath := cCtx.String("presets_file")
		presets, err := config.Load(presetsPath)
		if err != nil {
			return fmt.Errorf("loading presets file %q: %w", presetsPath, err)
		}
		p, err := presets.Get(presetName)
		if err != nil {
			return err
		}
		e.SetOptics(p.SDD, p.Threshold)
		e.SetTile(p.BlockSize)
		volumeEulerRad = mgl64.Vec3{mgl64.DegToRad(p.VolumeEulerDeg[0]), mgl64.DegToRad(p.VolumeEulerDeg[1]), mgl64.DegToRad(p.VolumeEulerDeg[2])}
		volumeTransMM = mgl64.Vec3{p.VolumeTransMM[0], p.VolumeTransMM[1], p.VolumeTransMM[2]}
		e.SetPose(mgl64.DegToRad(p.GantryAngleDeg), volumeEulerRad, volumeTransMM)
		log.Info().Str("correlation_id", correlationID).Msgf("Applied preset %q", presetName)
	}

	var vol *volume.Volume
	var err error
	if cCtx.Bool("synthetic") {
		vol, err = loadSyntheticVolume(cCtx)
		if err != nil {
			return fmt.Errorf("synthesizing volume: %w", err)
		}
		log.Info().Str("correlation_id", correlationID).Msgf("Synthesized volume %v", vol.Dims)
	} else {
		volCfgPath := cCtx.String("volume")
		if volCfgPath == "" {
			return fmt.Errorf("--volume is required unless --synthetic is set")
		}
		volCfg, err := volume.LoadConfig(volCfgPath)
		if err != nil {
			return fmt.Errorf("loading volume config %q: %w", volCfgPath, err)
		}
		vol, err = volume.LoadRaw(volCfg)
		if err != nil {
			return fmt.Errorf("loading raw volume: %w", err)
		}
		log.Info().Str("correlation_id", correlationID).Msgf("Loaded volume %v", vol.Dims)
	}
	e.SetVolume(vol)

	dx, dy := cCtx.Int("det_dx"), cCtx.Int("det_dy")
	px, py := cCtx.Float64("det_px"), cCtx.Float64("det_py")
	e.SetDetector([2]int{dx, dy}, [2]float64{px, py})

	if gantryDeg := cCtx.Float64("gantry_angle_deg"); cCtx.IsSet("gantry_angle_deg") {
		e.SetPose(mgl64.DegToRad(gantryDeg), volumeEulerRad, volumeTransMM)
	}
	if cCtx.IsSet("sdd") || cCtx.IsSet("threshold") {
		e.SetOptics(cCtx.Float64("sdd"), cCtx.Float64("threshold"))
	}
	if cCtx.IsSet("block_size") {
		e.SetTile(cCtx.Int("block_size"))
	}

	var bar *progressbar.ProgressBar
	if cCtx.Bool("text_progress") {
		fmt.Println("Rendering...")
	} else {
		bar = progressbar.Default(1)
	}

	result := e.Render()

	if bar != nil {
		bar.Add(1)
	}

	outputPath := cCtx.String("output")
	if err := savePNG(outputPath, result); err != nil {
		return fmt.Errorf("saving rendered image: %w", err)
	}
	log.Info().Str("correlation_id", correlationID).Msgf("Wrote %s", outputPath)

	if fidPath := cCtx.String("fiducials"); fidPath != "" {
		coll, err := fiducial.Load(fidPath)
		if err != nil {
			return fmt.Errorf("loading fiducials %q: %w", fidPath, err)
		}
		projected := make([]fiducial.Projected, len(coll.Points))
		for i, p := range coll.Points {
			u, v := e.Project(p.Vec3())
			projected[i] = fiducial.Projected{Name: p.Name, I: u, J: v}
		}
		outFid := cCtx.String("fiducials_output")
		if err := fiducial.Save(outFid, projected); err != nil {
			return fmt.Errorf("saving projected fiducials: %w", err)
		}
		log.Info().Str("correlation_id", correlationID).Msgf("Wrote %s", outFid)
	}

	return nil
}

func main() {
	app := &cli.App{
		Name:  "drrrender",
		Usage: "Render a digitally reconstructed radiograph from a CT volume",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "volume", Usage: "Volume descriptor file (YAML or JSON); ignored if --synthetic is set"},
			&cli.StringFlag{Name: "output", Usage: "Output PNG path", Value: "drr.png"},
			&cli.BoolFlag{Name: "synthetic", Usage: "Synthesize the volume from --synthetic_shape instead of loading --volume"},
			&cli.StringFlag{Name: "synthetic_shape", Usage: `Shape descriptor JSON for --synthetic (e.g. {"type":"box","center":[0,0,0],"sides":[64,64,64],"rho":1})`, Value: `{"type":"box","center":[0,0,0],"sides":[64,64,64],"rho":1}`},
			&cli.StringFlag{Name: "synthetic_dims", Usage: "Synthetic volume dims as x,y,z", Value: "64,64,64"},
			&cli.StringFlag{Name: "synthetic_spacing", Usage: "Synthetic volume spacing in mm as x,y,z", Value: "1,1,1"},
			&cli.Float64Flag{Name: "synthetic_scale_hu", Usage: "HU scale applied to the synthetic shape's 0-1 density", Value: 1000.0},
			&cli.StringFlag{Name: "preset", Usage: "Named device preset to apply before per-flag overrides"},
			&cli.StringFlag{Name: "presets_file", Usage: "Path to presets.toml", Value: "config/presets.toml"},
			&cli.IntFlag{Name: "det_dx", Usage: "Detector pixel width", Value: 256},
			&cli.IntFlag{Name: "det_dy", Usage: "Detector pixel height", Value: 256},
			&cli.Float64Flag{Name: "det_px", Usage: "Detector pixel pitch, x (mm)", Value: 1.0},
			&cli.Float64Flag{Name: "det_py", Usage: "Detector pixel pitch, y (mm)", Value: 1.0},
			&cli.Float64Flag{Name: "gantry_angle_deg", Usage: "Gantry angle (degrees)"},
			&cli.Float64Flag{Name: "sdd", Usage: "Source-to-detector distance (mm)", Value: 1000.0},
			&cli.Float64Flag{Name: "threshold", Usage: "Voxel intensity threshold"},
			&cli.IntFlag{Name: "block_size", Usage: "Tile side length in pixels"},
			&cli.StringFlag{Name: "fiducials", Usage: "Fiducial point collection file (YAML or JSON), optional"},
			&cli.StringFlag{Name: "fiducials_output", Usage: "Output path for projected fiducial coordinates", Value: "fiducials_projected.json"},
			&cli.StringFlag{Name: "log_file", Usage: "Rotating diagnostic log file path", Value: "drrrender.log"},
			&cli.StringFlag{Name: "log_level", Usage: "trace/debug/info/warn/error", Value: "info"},
			&cli.BoolFlag{Name: "text_progress", Usage: "Use a plain text progress message instead of a bar"},
			&cli.BoolFlag{Name: "profile", Usage: "Profile the render with pkg/profile and write to ./profile_output"},
		},
		Action: func(cCtx *cli.Context) error {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
			if cCtx.Bool("profile") {
				defer profile.Start(profile.ProfilePath("./profile_output")).Stop()
			}
			return run(cCtx)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("drrrender failed")
	}
}
