package genetic

// Pair lays out both parents' segments into one Genome according to bt.
// The left half only ever holds parent 1 bytes and the right half parent 2
// bytes; blending happens later in Cross.
//
// RezDom reverses both parents while RezRez reverses only parent 1. The
// naming suggests otherwise but existing creatures were bred this way.
func Pair(bt BreedType, p1, p2 Segment) Genome {
	var g Genome
	left, right := g[:16], g[16:]

	switch bt {
	case DomRez:
		putNormal(left, p1)
		putReversed(right, p2)
	case RezDom:
		putReversed(left, p1)
		putReversed(right, p2)
	case RezRez:
		putReversed(left, p1)
		putNormal(right, p2)
	default:
		putNormal(left, p1)
		putNormal(right, p2)
	}
	return g
}

func putNormal(dst []byte, s Segment) {
	copy(dst, s[:])
}

func putReversed(dst []byte, s Segment) {
	copy(dst[:8], s[8:])
	copy(dst[8:], s[:8])
}
