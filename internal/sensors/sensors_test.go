package sensors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawToMilliG(t *testing.T) {
	assert.Equal(t, int16(1000), RawToMilliG(16384))
	assert.Equal(t, int16(-1000), RawToMilliG(-16384))
	assert.Equal(t, int16(500), RawToMilliG(8192))
	assert.Equal(t, int16(0), RawToMilliG(0))
}

func TestMockAtRest(t *testing.T) {
	m := NewMock(100*time.Millisecond, 0, 2)
	for i := 0; i < 5; i++ {
		s, err := m.ReadAccel()
		require.NoError(t, err)
		assert.Equal(t, int16(-1000), s.Z)
		assert.Equal(t, int16(0), s.X)
	}
}

func TestMockSwings(t *testing.T) {
	m := NewMock(100*time.Millisecond, 400, 1)

	var minZ, maxZ int16 = 0, -2000
	for i := 0; i < 20; i++ {
		s, err := m.ReadAccel()
		require.NoError(t, err)
		if s.Z < minZ {
			minZ = s.Z
		}
		if s.Z > maxZ {
			maxZ = s.Z
		}
	}
	assert.InDelta(t, -1400, float64(minZ), 30)
	assert.InDelta(t, -600, float64(maxZ), 30)
}

func TestMockIsDeterministic(t *testing.T) {
	a := NewMock(100*time.Millisecond, 300, 1.5)
	b := NewMock(100*time.Millisecond, 300, 1.5)
	for i := 0; i < 10; i++ {
		sa, _ := a.ReadAccel()
		sb, _ := b.ReadAccel()
		assert.Equal(t, sa, sb)
	}
}
