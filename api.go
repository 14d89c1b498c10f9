// Package: main
// File: api.go
// Description: C-compatible API for Python bindings using cgo.
//
// This file provides exported functions that can be called from Python via ctypes.
// Functions use JSON for parameter passing to simplify the interface.
//
// Author: Ivan Grega
// License: MIT

package main

/*
#include <stdlib.h>
#include <string.h>
*/
import "C"
import (
	"encoding/json"
	"fmt"
	"os"
	"unsafe"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/drrproj/drrengine/engine"
	"github.com/drrproj/drrengine/fiducial"
	"github.com/drrproj/drrengine/internal/diag"
	"github.com/drrproj/drrengine/volume"
)

// RenderParams represents all parameters needed for one render call across
// the cgo boundary: a volume descriptor plus the same detector/pose/optics/
// tile parameters exposed by engine.Engine's setters (§6 of the core
// contract), an output PNG path, and an optional fiducial round trip.
type RenderParams struct {
	VolumeConfig        string     `json:"volume_config"`
	OutputPath          string     `json:"output_path"`
	DetDx               int        `json:"det_dx"`
	DetDy               int        `json:"det_dy"`
	DetPx               float64    `json:"det_px"`
	DetPy               float64    `json:"det_py"`
	GantryAngleDeg      float64    `json:"gantry_angle_deg"`
	VolumeEulerDeg      [3]float64 `json:"volume_euler_deg"`
	VolumeTranslationMM [3]float64 `json:"volume_translation_mm"`
	SDD                 float64    `json:"sdd_mm"`
	Threshold           float64    `json:"threshold"`
	BlockSize           int        `json:"block_size"`
	FiducialsFile       string     `json:"fiducials_file,omitempty"`
	FiducialsOutput     string     `json:"fiducials_output,omitempty"`
	LogLevel            string     `json:"log_level"` // "trace", "debug", "info", "warn", "error", "fatal", "panic", or "disabled"
}

// RenderResult represents the result of a render operation.
type RenderResult struct {
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	OutputPath    string `json:"output_path,omitempty"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// RenderProjection renders a single DRR from JSON parameters.
// Parameters:
//   - jsonParams: JSON string containing RenderParams
//
// Returns:
//   - JSON string containing RenderResult
//   - Memory is allocated using C.malloc and must be freed by the caller via FreeString
//
//export RenderProjection
func RenderProjection(jsonParams *C.char) *C.char {
	paramsStr := C.GoString(jsonParams)
	correlationID := uuid.NewString()

	var params RenderParams
	if err := json.Unmarshal([]byte(paramsStr), &params); err != nil {
		return toCResult(RenderResult{
			Success: false,
			Error:   "failed to parse parameters: " + err.Error(),
		})
	}

	logLevel := params.LogLevel
	if logLevel == "" {
		logLevel = "error" // default to quiet (only errors), matching the teacher's cgo default
	}
	setLogLevel(logLevel)
	sink := diag.ZerologSink{Logger: log.Logger.With().Str("correlation_id", correlationID).Logger()}

	result, err := renderProjection(&params, sink, correlationID)
	if err != nil {
		return toCResult(RenderResult{Success: false, Error: err.Error(), CorrelationID: correlationID})
	}
	return toCResult(result)
}

// renderProjection does the actual work of RenderProjection against
// engine.Engine, kept separate from the cgo-facing wrapper so it can be
// exercised by ordinary Go tests without crossing the cgo boundary.
func renderProjection(params *RenderParams, sink diag.Sink, correlationID string) (RenderResult, error) {
	volCfg, err := volume.LoadConfig(params.VolumeConfig)
	if err != nil {
		return RenderResult{}, fmt.Errorf("loading volume config: %w", err)
	}
	vol, err := volume.LoadRaw(volCfg)
	if err != nil {
		return RenderResult{}, fmt.Errorf("loading raw volume: %w", err)
	}

	e := engine.New(sink)
	e.SetVolume(vol)

	dx, dy := params.DetDx, params.DetDy
	if dx == 0 {
		dx = 256
	}
	if dy == 0 {
		dy = 256
	}
	px, py := params.DetPx, params.DetPy
	if px == 0 {
		px = 1
	}
	if py == 0 {
		py = 1
	}
	e.SetDetector([2]int{dx, dy}, [2]float64{px, py})

	sdd := params.SDD
	if sdd == 0 {
		sdd = 1000
	}
	e.SetOptics(sdd, params.Threshold)

	if params.BlockSize > 0 {
		e.SetTile(params.BlockSize)
	}

	e.SetPose(
		mgl64.DegToRad(params.GantryAngleDeg),
		mgl64.Vec3{
			mgl64.DegToRad(params.VolumeEulerDeg[0]),
			mgl64.DegToRad(params.VolumeEulerDeg[1]),
			mgl64.DegToRad(params.VolumeEulerDeg[2]),
		},
		mgl64.Vec3{params.VolumeTranslationMM[0], params.VolumeTranslationMM[1], params.VolumeTranslationMM[2]},
	)

	rendered := e.Render()

	outputPath := params.OutputPath
	if outputPath == "" {
		outputPath = "drr.png"
	}
	if err := savePNG(outputPath, rendered); err != nil {
		return RenderResult{}, fmt.Errorf("saving rendered image: %w", err)
	}

	if params.FiducialsFile != "" {
		coll, err := fiducial.Load(params.FiducialsFile)
		if err != nil {
			return RenderResult{}, fmt.Errorf("loading fiducials: %w", err)
		}
		projected := make([]fiducial.Projected, len(coll.Points))
		for i, p := range coll.Points {
			u, v := e.Project(p.Vec3())
			projected[i] = fiducial.Projected{Name: p.Name, I: u, J: v}
		}
		fidOut := params.FiducialsOutput
		if fidOut == "" {
			fidOut = "fiducials_projected.json"
		}
		if err := fiducial.Save(fidOut, projected); err != nil {
			return RenderResult{}, fmt.Errorf("saving projected fiducials: %w", err)
		}
	}

	return RenderResult{
		Success:       true,
		OutputPath:    outputPath,
		Width:         rendered.Dx,
		Height:        rendered.Dy,
		CorrelationID: correlationID,
	}, nil
}

func toCResult(result RenderResult) *C.char {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		// Marshalling a RenderResult literal cannot fail; fall back to a
		// minimal hand-built JSON string rather than panicking across cgo.
		return C.CString(`{"success":false,"error":"failed to marshal result"}`)
	}
	return C.CString(string(resultJSON))
}

// FreeString frees a C string allocated by RenderProjection.
// This should be called from Python after using the returned string.
//
//export FreeString
func FreeString(str *C.char) {
	C.free(unsafe.Pointer(str))
}

// setLogLevel sets the zerolog global log level based on a string.
// Valid levels: "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"
// Defaults to "error" if an invalid level is provided.
func setLogLevel(levelStr string) {
	// Configure logger to write to stderr (not stdout) to avoid interfering with output
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var level zerolog.Level
	switch levelStr {
	case "trace":
		level = zerolog.TraceLevel
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	case "fatal":
		level = zerolog.FatalLevel
	case "panic":
		level = zerolog.PanicLevel
	case "disabled":
		level = zerolog.Disabled
	default:
		level = zerolog.ErrorLevel // Default to quiet
	}
	zerolog.SetGlobalLevel(level)
}
