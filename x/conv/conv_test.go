package conv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCenti(t *testing.T) {
	cases := map[int32]string{
		0:      "0.00",
		5:      "0.05",
		-5:     "-0.05",
		2345:   "23.45",
		-1000:  "-10.00",
		10000:  "100.00",
		-32768: "-327.68",
		32767:  "327.67",
	}
	for in, want := range cases {
		assert.Equal(t, want, CentiString(in), "input %d", in)
	}
}

func TestCentiShortBuffer(t *testing.T) {
	var b [3]byte
	assert.Empty(t, Centi(b[:], 100))
}

func TestHex8(t *testing.T) {
	assert.Equal(t, "0x38", Hex8String(0x38))
	assert.Equal(t, "0x0A", Hex8String(0x0a))
	assert.Equal(t, "0xFF", Hex8String(0xff))
}
