package twowire

// Write-register layout: [ bit2:SDA | bit1:OE | bit0:SCL ].
// Read register: bit0 = SDA level.
const (
	bitSCL = 0
	bitOE  = 1
	bitSDA = 2
)

// Levels is one snapshot of the three controller outputs. SDA is open drain:
// it is only driven when OE is set, otherwise the pull-up owns the line.
type Levels struct {
	SCL bool
	OE  bool
	SDA bool
}

// Pack encodes l into the write-register value.
func (l Levels) Pack() uint32 {
	var v uint32
	if l.SCL {
		v |= 1 << bitSCL
	}
	if l.OE {
		v |= 1 << bitOE
	}
	if l.SDA {
		v |= 1 << bitSDA
	}
	return v
}

// Unpack decodes a write-register value.
func Unpack(v uint32) Levels {
	return Levels{
		SCL: v&(1<<bitSCL) != 0,
		OE:  v&(1<<bitOE) != 0,
		SDA: v&(1<<bitSDA) != 0,
	}
}

// Line is the only hardware the bus engine touches: one atomic write of all
// three levels and one sample of the data line.
type Line interface {
	Write(l Levels)
	SDA() bool
}

// CSR adapts a pair of raw register accessors to Line.
type CSR struct {
	W func(v uint32)
	R func() uint32
}

func (c CSR) Write(l Levels) { c.W(l.Pack()) }
func (c CSR) SDA() bool      { return c.R()&1 != 0 }
