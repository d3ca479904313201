package conv

// Centi writes a hundredths fixed-point value as "I.FF" into buf and returns
// the used slice. buf should be length >= 8 for int16 inputs. Negative values
// between -1 and 0 keep their sign ("-0.05"). No allocations; no fmt dependency.
func Centi(buf []byte, v int32) []byte {
	if len(buf) < 4 {
		return buf[:0]
	}
	neg := v < 0
	u := uint32(v)
	if neg {
		u = uint32(-v)
	}
	i := len(buf)
	frac := u % 100
	whole := u / 100

	i--
	buf[i] = byte('0' + frac%10)
	i--
	buf[i] = byte('0' + frac/10)
	i--
	buf[i] = '.'
	if whole == 0 {
		i--
		buf[i] = '0'
	}
	for whole > 0 && i > 0 {
		i--
		buf[i] = byte('0' + whole%10)
		whole /= 10
	}
	if neg && i > 0 {
		i--
		buf[i] = '-'
	}
	return buf[i:]
}

// CentiString is Centi with its own buffer.
func CentiString(v int32) string {
	var b [12]byte
	return string(Centi(b[:], v))
}
