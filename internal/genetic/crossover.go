package genetic

// Marker codes recorded per nibble in the evolution trace.
const (
	MarkerDecay     byte = 0x0 // decrement of !A & B
	MarkerBoostA    byte = 0x4 // increment of A
	MarkerBlend     byte = 0x7 // A ^ B
	MarkerBoostB    byte = 0x8 // increment of B
	MarkerDominant  byte = 0xA // A copied
	MarkerRecessive byte = 0xB // B copied
	MarkerFusion    byte = 0xC // increment of A | B
	MarkerInverted  byte = 0xE // inverted entropy injected
	MarkerInjected  byte = 0xF // raw entropy injected

	// RecombinationMarker replaces a whole marker byte when the assembled
	// offspring byte was all ones or all zeros.
	RecombinationMarker byte = 0x33
)

// MarkerCodes is the closed set of per-nibble marker codes.
var MarkerCodes = [...]byte{
	MarkerDecay, MarkerBoostA, MarkerBlend, MarkerBoostB,
	MarkerDominant, MarkerRecessive, MarkerFusion, MarkerInverted, MarkerInjected,
}

// IsMarkerCode reports whether code is a member of MarkerCodes.
func IsMarkerCode(code byte) bool {
	for _, c := range MarkerCodes {
		if c == code {
			return true
		}
	}
	return false
}

type nibbleOp uint8

const (
	opCopy nibbleOp = iota
	opIncrement
	opDecrement
)

// locus is the discriminant for one crossover decision.
type locus struct {
	bitA, bitB bool // control window bits
	entA, entB bool // entropy selector bits
}

// rule maps a locus discriminant and its byte sources to the value that
// feeds the nibble, the saturating op applied after masking, and the marker.
func rule(l locus, srcA, srcB, blk byte) (byte, nibbleOp, byte) {
	switch {
	case l.bitA && !l.bitB:
		switch {
		case l.entA:
			return srcA, opIncrement, MarkerBoostA
		case !l.entB:
			return srcA, opCopy, MarkerDominant
		default:
			return srcA ^ srcB, opCopy, MarkerBlend
		}

	case !l.bitA && l.bitB:
		switch {
		case l.entB:
			return srcB, opIncrement, MarkerBoostB
		case !l.entA:
			return srcB, opCopy, MarkerRecessive
		default:
			return srcB ^ srcA, opCopy, MarkerBlend
		}

	case !l.bitA && !l.bitB:
		switch {
		case !l.entA && !l.entB:
			return ^srcA & srcB, opDecrement, MarkerDecay
		case l.entA && l.entB:
			return ^blk, opCopy, MarkerInverted
		}

	default:
		switch {
		case l.entA && l.entB:
			return srcA | srcB, opIncrement, MarkerFusion
		case !l.entA && !l.entB:
			return blk, opCopy, MarkerInjected
		}
	}

	// exactly one entropy bit set with equal control bits
	if l.entA {
		return srcA, opCopy, MarkerDominant
	}
	return srcB, opCopy, MarkerRecessive
}

func expressNibble(value byte, op nibbleOp, side int) byte {
	half := MergeNibble(0, value, side)
	switch op {
	case opIncrement:
		half = IncrementNibble(half, side)
	case opDecrement:
		half = DecrementNibble(half, side)
	}
	return half
}

func entropyBit(e *Entropy, n int) bool {
	return Bit(e[n/8], uint(n%8))
}

// Cross applies the 32-locus rule table to a paired genome and returns the
// offspring gene buffer together with its evolution marker trace.
//
// Control bits come from genome[8:12] (A) and genome[20:24] (B). Locus i
// reads entropy bits 2i and 2i+1 and, when it injects entropy, entropy byte i.
// Even loci fill the high nibble of output byte i/2, odd loci the low nibble.
func Cross(g Genome, e Entropy) (Segment, Markers) {
	var dna Segment
	var evo Markers

	dom, rec := g[0:16], g[16:32]
	ctrlA, ctrlB := g[8:12], g[20:24]

	var full, mark byte
	for i := 0; i < Loci; i++ {
		side := i % 2
		k := i / 2
		if side == High {
			full, mark = 0, 0
		}

		l := locus{
			bitA: Bit(ctrlA[i/8], uint(i%8)),
			bitB: Bit(ctrlB[i/8], uint(i%8)),
			entA: entropyBit(&e, 2*i),
			entB: entropyBit(&e, 2*i+1),
		}
		value, op, code := rule(l, dom[k], rec[k], e[i])

		full = MergeNibble(full, expressNibble(value, op, side), side)
		mark = MergeNibble(mark, code<<4|code, side)

		if side == Low {
			if full == 0xFF || full == 0x00 {
				full &= e[k]
				mark = RecombinationMarker
			}
			dna[k] = full
			evo[k] = mark
		}
	}

	return dna, evo
}
