package main

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drrproj/drrengine/internal/diag"
)

// writeRawVolume writes a constant-value raw int16 volume plus its YAML-free
// JSON descriptor, the same on-disk shape main.go's run() and the cgo API
// both load via volume.LoadConfig/LoadRaw.
func writeRawVolume(t *testing.T, dir string, dims [3]int, value int16) string {
	t.Helper()
	n := dims[0] * dims[1] * dims[2]
	raw := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(value))
	}
	rawPath := filepath.Join(dir, "volume.raw")
	require.NoError(t, os.WriteFile(rawPath, raw, 0o644))

	cfg := map[string]interface{}{
		"path":    rawPath,
		"dims":    dims,
		"spacing": [3]float64{1, 1, 1},
		"dtype":   "int16",
	}
	cfgBytes, err := json.Marshal(cfg)
	require.NoError(t, err)
	cfgPath := filepath.Join(dir, "volume.json")
	require.NoError(t, os.WriteFile(cfgPath, cfgBytes, 0o644))
	return cfgPath
}

func TestRenderProjectionProducesImage(t *testing.T) {
	dir := t.TempDir()
	volCfgPath := writeRawVolume(t, dir, [3]int{16, 16, 16}, 1000)
	outPath := filepath.Join(dir, "out.png")

	params := &RenderParams{
		VolumeConfig: volCfgPath,
		OutputPath:   outPath,
		DetDx:        32,
		DetDy:        32,
		DetPx:        1,
		DetPy:        1,
		SDD:          1000,
		BlockSize:    16,
	}

	result, err := renderProjection(params, diag.Nop, "test-correlation")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 32, result.Width)
	assert.Equal(t, 32, result.Height)

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRenderProjectionRejectsMissingVolumeConfig(t *testing.T) {
	params := &RenderParams{VolumeConfig: "/nonexistent/volume.json"}
	_, err := renderProjection(params, diag.Nop, "test-correlation")
	assert.Error(t, err)
}

func TestRenderProjectionWritesFiducials(t *testing.T) {
	dir := t.TempDir()
	volCfgPath := writeRawVolume(t, dir, [3]int{16, 16, 16}, 1000)

	fidIn := filepath.Join(dir, "fiducials.json")
	fidPayload := map[string]interface{}{
		"points": []map[string]interface{}{
			{"name": "isocenter", "position": [3]float64{8, 8, 8}},
		},
	}
	fidBytes, err := json.Marshal(fidPayload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(fidIn, fidBytes, 0o644))

	fidOut := filepath.Join(dir, "fiducials_out.json")
	params := &RenderParams{
		VolumeConfig:    volCfgPath,
		OutputPath:      filepath.Join(dir, "out.png"),
		DetDx:           32,
		DetDy:           32,
		DetPx:           1,
		DetPy:           1,
		SDD:             1000,
		BlockSize:       16,
		FiducialsFile:   fidIn,
		FiducialsOutput: fidOut,
	}

	_, err = renderProjection(params, diag.Nop, "test-correlation")
	require.NoError(t, err)

	data, err := os.ReadFile(fidOut)
	require.NoError(t, err)
	var projected []struct {
		Name string  `json:"name"`
		I    float64 `json:"i"`
		J    float64 `json:"j"`
	}
	require.NoError(t, json.Unmarshal(data, &projected))
	require.Len(t, projected, 1)
	assert.InDelta(t, 16, projected[0].I, 1)
	assert.InDelta(t, 16, projected[0].J, 1)
}
