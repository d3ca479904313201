package mathx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(7, 0, 5))
	assert.Equal(t, 0, Clamp(-3, 5, 0))
	assert.Equal(t, 2.5, Clamp(2.5, 0.0, 5.0))
}

func TestRoundHalfAway(t *testing.T) {
	assert.Equal(t, int64(1000), RoundHalfAway(999.5))
	assert.Equal(t, int64(-1000), RoundHalfAway(-999.5))
	assert.Equal(t, int64(0), RoundHalfAway(float32(0.49)))
	assert.Equal(t, int64(-1), RoundHalfAway(float32(-0.5)))
}

func TestSaturateInt16(t *testing.T) {
	assert.Equal(t, int16(32767), SaturateInt16(40000))
	assert.Equal(t, int16(-32768), SaturateInt16(-40000))
	assert.Equal(t, int16(-1000), SaturateInt16(-1000))
}
