package shapes

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRigidMotionAtZeroPhaseIsIdentity(t *testing.T) {
	m := &RigidMotion{Amplitude: [3]float64{1, 2, 3}, Period: 4}
	// t=0 => sin(0)=0 => no displacement
	x, y, z := m.Apply(0, 5, 6, 7)
	assert.Equal(t, 5.0, x)
	assert.Equal(t, 6.0, y)
	assert.Equal(t, 7.0, z)
}

func TestRigidMotionQuarterPeriodIsFullAmplitude(t *testing.T) {
	m := &RigidMotion{Amplitude: [3]float64{2, 0, 0}, Period: 4}
	x, _, _ := m.Apply(1, 0, 0, 0) // t/period = 1/4 => sin(pi/2) = 1
	assert.InDelta(t, 2.0, x, 1e-9)
}

func TestLinearMotionScalesByStrain(t *testing.T) {
	m := &LinearMotion{Strains: [3]float64{0.1, 0, 0}, Period: 4}
	x, _, _ := m.Apply(1, 10, 0, 0)
	assert.InDelta(t, 11.0, x, 1e-9)
}

func TestSigmoidMotionUnknownDirectionIsIdentity(t *testing.T) {
	m := &SigmoidMotion{Amplitude: 5, Center: 0, Lengthscale: 1, Period: 4, Direction: "w"}
	x, y, z := m.Apply(1, 1, 2, 3)
	assert.Equal(t, 1.0, x)
	assert.Equal(t, 2.0, y)
	assert.Equal(t, 3.0, z)
}

func TestNewMotionDispatchesOnType(t *testing.T) {
	m, err := NewMotion(map[string]interface{}{
		"type": "rigid", "amplitude": []interface{}{1.0, 0.0, 0.0}, "period": 2.0,
	})
	require.NoError(t, err)
	_, ok := m.(*RigidMotion)
	assert.True(t, ok)

	_, err = NewMotion(map[string]interface{}{"type": "nonsense"})
	require.Error(t, err)
}

func TestGaussianMotionFromMap(t *testing.T) {
	g := &GaussianMotion{}
	err := g.FromMap(map[string]interface{}{
		"amplitudes": []interface{}{1.0, 1.0, 1.0},
		"sigmas":     []interface{}{2.0, 2.0, 2.0},
		"center":     []interface{}{0.0, 0.0, 0.0},
		"period":     4.0,
	})
	require.NoError(t, err)
	assert.Equal(t, [3]float64{1, 1, 1}, g.Amplitudes)
}

func TestVoxelizeSeriesProducesOneFramePerTime(t *testing.T) {
	s := &Sphere{Center: mgl64.Vec3{0, 0, 0}, Radius: 10, Rho: 1}
	m := &RigidMotion{Amplitude: [3]float64{20, 0, 0}, Period: 4}
	times := []float64{0, 1, 2, 3}

	frames, err := VoxelizeSeries(s, m, times, [3]int{8, 8, 8}, [3]float64{2, 2, 2}, 1000)
	require.NoError(t, err)
	require.Len(t, frames, 4)
	for _, f := range frames {
		assert.Equal(t, [3]int{8, 8, 8}, f.Dims)
	}
}
