package conv

const hexd = "0123456789ABCDEF"

// Hex8 writes "0xNN" (uppercase, zero-padded) for one byte.
func Hex8(buf []byte, n uint8) []byte {
	if len(buf) < 4 {
		return buf[:0]
	}
	i := len(buf) - 4
	buf[i] = '0'
	buf[i+1] = 'x'
	buf[i+2] = hexd[n>>4]
	buf[i+3] = hexd[n&0xF]
	return buf[i:]
}

// Hex8String is Hex8 with its own buffer.
func Hex8String(n uint8) string {
	var b [4]byte
	return string(Hex8(b[:], n))
}
