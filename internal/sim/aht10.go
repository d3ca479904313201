package sim

import "sync"

// AHT10 models the humidity/temperature sensor as a two-wire target.
type AHT10 struct {
	mu sync.Mutex

	RawHumidity uint32
	RawTemp     uint32
	Busy        bool
	Calibrated  bool
	// RejectData nacks every data byte written to the device.
	RejectData bool

	cmd      []byte
	out      [6]byte
	idx      int
	triggers int
	inits    int
	resets   int
}

// NewAHT10 returns a calibrated sensor reporting the given raw 20-bit fields.
func NewAHT10(rawHumidity, rawTemp uint32) *AHT10 {
	return &AHT10{RawHumidity: rawHumidity, RawTemp: rawTemp, Calibrated: true}
}

// EncodeAHT10 packs a status byte and two 20-bit fields into the 6-byte
// response layout: humidity in the top 20 bits of bytes 1..3, temperature in
// the low nibble of byte 3 and bytes 4..5.
func EncodeAHT10(status byte, h, t uint32) [6]byte {
	h &= 0xFFFFF
	t &= 0xFFFFF
	return [6]byte{
		status,
		byte(h >> 12),
		byte(h >> 4),
		byte(h<<4) | byte(t>>16)&0x0F,
		byte(t >> 8),
		byte(t),
	}
}

func (a *AHT10) Addressed(read bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if read {
		var st byte
		if a.Busy {
			st |= 0x80
		}
		if a.Calibrated {
			st |= 0x08
		}
		a.out = EncodeAHT10(st, a.RawHumidity, a.RawTemp)
		a.idx = 0
	} else {
		a.cmd = a.cmd[:0]
	}
	return true
}

func (a *AHT10) Receive(b byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.RejectData {
		return false
	}
	a.cmd = append(a.cmd, b)
	return true
}

func (a *AHT10) Transmit() byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := a.out[a.idx%len(a.out)]
	a.idx++
	return b
}

func (a *AHT10) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case len(a.cmd) == 3 && a.cmd[0] == 0xAC && a.cmd[1] == 0x33 && a.cmd[2] == 0x00:
		a.triggers++
	case len(a.cmd) == 3 && a.cmd[0] == 0xE1:
		a.inits++
		a.Calibrated = true
	case len(a.cmd) == 1 && a.cmd[0] == 0xBA:
		a.resets++
		a.Calibrated = false
	}
	a.cmd = a.cmd[:0]
}

// Set replaces the raw fields reported by the next read.
func (a *AHT10) Set(rawHumidity, rawTemp uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.RawHumidity, a.RawTemp = rawHumidity, rawTemp
}

// Triggers returns the number of complete measurement commands received.
func (a *AHT10) Triggers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.triggers
}

// Inits returns the number of initialise commands received.
func (a *AHT10) Inits() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inits
}

// Resets returns the number of soft resets received.
func (a *AHT10) Resets() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resets
}
