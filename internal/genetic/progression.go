package genetic

// ladder is one parent's walk through the generation ladder.
type ladder struct {
	base  int
	bonus int
}

func clampGeneration(g int) int {
	if g > MaxGeneration {
		return MaxGeneration
	}
	if g < MinGeneration {
		return MinGeneration
	}
	return g
}

func inGenerationRange(g int) bool {
	return g >= MinGeneration && g <= MaxGeneration
}

// reducedRarity is the rarity ordinal minus one, floored at zero.
func reducedRarity(r Rarity) int {
	if r > 0 {
		return int(r) - 1
	}
	return 0
}

// modulus is 2*gen, lowered by the reduced rarity when that keeps it at or
// above twice the reduced rarity.
func modulus(gen, rr int) int {
	m := gen * 2
	if m >= rr*2 {
		m -= rr
	}
	return m
}

func pairSum(b []byte, i int) int {
	return int(b[i]) + int(b[i+1])
}

// Advance computes the offspring rarity tier and generation level from the
// parents' scalar attributes and the entropy block.
//
// When entropy is not exactly 32 bytes or either generation lies outside
// [1,16] the ladder is skipped and the result depends on rarity alone.
func Advance(gen1 int, rar1 Rarity, gen2 int, rar2 Rarity, entropy []byte) (Rarity, int) {
	rr1, rr2 := reducedRarity(rar1), reducedRarity(rar2)
	baseRarity := (rr1 + rr2) / 2

	var p1, p2 ladder
	if inGenerationRange(gen1) && inGenerationRange(gen2) && len(entropy) == EntropySize {
		m1, m2 := modulus(gen1, rr1), modulus(gen2, rr2)

		p1 = ladder{base: gen1}
		if pairSum(entropy, 1)%m1 == 0 {
			p1.base++
			p1.bonus = 1
			if pairSum(entropy, 3)%m1 < p1.base/2 {
				p1.base++
				p1.bonus = 2
				if pairSum(entropy, 5)%m1 < p1.base/2 {
					p1.base++
					p1.bonus = 3
				}
			}
		} else if pairSum(entropy, 5)%m1 == 0 {
			p1.base--
		}

		p2 = ladder{base: gen2}
		if pairSum(entropy, 7)%m2 == 0 {
			p2.base++
			p2.bonus = 1
			if pairSum(entropy, 9)%m2 < p2.base/2 {
				p2.base++
				p2.bonus = 2
				// compares against parent 1's base; kept as deployed
				if pairSum(entropy, 11)%m2 < p1.base/2 {
					p2.base++
					p2.bonus = 3
				}
			}
		} else if pairSum(entropy, 11)%m2 == 0 {
			p2.base--
		}
	}

	gen := clampGeneration((p1.base + p2.base + baseRarity) / 2)

	ordinal := (p1.bonus + p2.bonus + (int(rar1)+int(rar2))/2) / 2 % RarityTiers
	return RarityFromOrdinal(uint32(ordinal)), gen
}
