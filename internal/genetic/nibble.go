package genetic

// Side 0 addresses the high nibble of a byte, side 1 the low nibble.
const (
	High = 0
	Low  = 1
)

// Bit reports whether bit n (0 = least significant) of b is set.
func Bit(b byte, n uint) bool {
	return b&(1<<n) != 0
}

func sideMask(side int) byte {
	if side == High {
		return 0xF0
	}
	return 0x0F
}

// MergeNibble ORs the selected half of next into old. The other half of old
// is left untouched; the target half of old is expected to be zero.
func MergeNibble(old, next byte, side int) byte {
	return old | next&sideMask(side)
}

// Nibble returns the selected half of b as a value in 0..15.
func Nibble(b byte, side int) byte {
	if side == High {
		return b >> 4
	}
	return b & 0x0F
}

func setNibble(b, v byte, side int) byte {
	if side == High {
		return b&0x0F | v<<4
	}
	return b&0xF0 | v&0x0F
}

// IncrementNibble adds one to the selected nibble, saturating at 15.
func IncrementNibble(b byte, side int) byte {
	v := Nibble(b, side)
	if v < 0x0F {
		v++
	}
	return setNibble(b, v, side)
}

// DecrementNibble subtracts one from the selected nibble, saturating at 0.
func DecrementNibble(b byte, side int) byte {
	v := Nibble(b, side)
	if v > 0 {
		v--
	}
	return setNibble(b, v, side)
}
