package correlation

// RiskScore returns a 0-100 concentration score for the live portfolio:
// each group's share of total positions weighted by its crisis-correlation
// weight, a surcharge for aggregate equity-like concentration, and a
// diversification discount when more than three distinct groups are in use.
func (c *Controller) RiskScore() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := len(c.positions)
	if total == 0 {
		return 0
	}

	score := 0.0
	distinct := 0
	for _, g := range c.groups {
		n := len(g.active)
		if n == 0 {
			continue
		}
		distinct++
		score += float64(n) / float64(total) * g.cfg.CrisisWeight * 100
	}

	// Unmapped positions carry an assumed mid-range weight; they are un-gated
	// but not risk-free.
	unmapped := total
	for _, g := range c.groups {
		unmapped -= len(g.active)
	}
	if unmapped > 0 {
		score += float64(unmapped) / float64(total) * unmappedCrisisWeight * 100
	}

	// Equity-like concentration surcharge: five points per position at or
	// beyond the aggregate cap, capped at twenty.
	if agg := c.equityLikeCount(); agg >= c.equityLikeCap {
		surcharge := 5 * float64(agg-c.equityLikeCap+1)
		if surcharge > 20 {
			surcharge = 20
		}
		score += surcharge
	}

	if distinct > 3 {
		score *= 0.8
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// unmappedCrisisWeight is the assumed weight for symbols outside every group.
const unmappedCrisisWeight = 0.5
