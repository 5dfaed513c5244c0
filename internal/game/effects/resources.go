package effects

// MaxCharge is the upper bound of a player's charge.
const MaxCharge = 30

// ClampCharge bounds v to [0, MaxCharge].
func ClampCharge(v int) int {
	switch {
	case v < 0:
		return 0
	case v > MaxCharge:
		return MaxCharge
	default:
		return v
	}
}

// Multiplier values of the multiplier stones.
const (
	BaseMultiplier   = 1
	SilverMultiplier = 3
	GoldMultiplier   = 4
)

// ChargeCredit is the charge earned for flips at the given multiplier.
func ChargeCredit(flips, multiplier int) int {
	if flips <= 0 || multiplier <= 0 {
		return 0
	}
	return flips * multiplier
}

// Steal moves up to flips cards from the front of the opponent's hand to the
// back of the owner's, bounded by what the owner's hand can still hold. It
// returns the new hands and the moved cards.
func Steal(own, opp []string, flips, handLimit int) (newOwn, newOpp, moved []string) {
	n := minInt(flips, len(opp), handLimit-len(own))
	if n <= 0 {
		return own, opp, nil
	}
	moved = append([]string(nil), opp[:n]...)
	newOpp = append([]string(nil), opp[n:]...)
	newOwn = append(append([]string(nil), own...), moved...)
	return newOwn, newOpp, moved
}

// Plunder moves up to flips charge from the opponent to the owner without
// pushing the owner above MaxCharge.
func Plunder(own, opp, flips int) (newOwn, newOpp, moved int) {
	n := minInt(flips, opp, MaxCharge-own)
	if n <= 0 {
		return own, opp, 0
	}
	return own + n, opp - n, n
}

func minInt(first int, rest ...int) int {
	m := first
	for _, v := range rest {
		if v < m {
			m = v
		}
	}
	return m
}
