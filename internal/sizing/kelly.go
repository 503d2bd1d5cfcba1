// Package sizing computes a bounded position risk fraction from historical
// win-rate and win/loss magnitudes using safety-capped Kelly math. The sizer
// fails closed: degenerate inputs produce an error and a do-not-trade signal,
// never a substituted default fraction.
package sizing

import (
	"errors"
	"fmt"
	"math"

	"github.com/voldesk/options-core/internal/config"
)

// ErrDegenerateInput marks inputs the Kelly formula cannot be trusted with
// (zero average loss, non-finite values, win rate outside (0,1)).
var ErrDegenerateInput = errors.New("degenerate sizing input")

// Recommendation is the sizer output. ShouldTrade is deliberately separate
// from the numeric fraction so callers cannot mistake "0% but trade anyway"
// for "do not trade".
type Recommendation struct {
	Fraction    float64 // risk fraction in [0, per-trade cap]
	ShouldTrade bool
}

// Kelly returns the capped risk fraction for the given edge statistics.
// Raw Kelly f = (p*b - q)/b with b = avgWin/avgLoss, scaled by the policy's
// conservatism multiplier and clamped to [0, PerTradeRiskCap].
func Kelly(winRate, avgWin, avgLoss float64, policy config.Sizing) (Recommendation, error) {
	none := Recommendation{Fraction: 0, ShouldTrade: false}

	for name, v := range map[string]float64{"win_rate": winRate, "avg_win": avgWin, "avg_loss": avgLoss} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return none, fmt.Errorf("%w: %s is non-finite", ErrDegenerateInput, name)
		}
	}
	if avgLoss <= 0 {
		return none, fmt.Errorf("%w: avg_loss=%v must be a positive magnitude", ErrDegenerateInput, avgLoss)
	}
	if avgWin <= 0 {
		return none, fmt.Errorf("%w: avg_win=%v must be positive", ErrDegenerateInput, avgWin)
	}
	if winRate <= 0 || winRate >= 1 {
		return none, fmt.Errorf("%w: win_rate=%v outside (0,1)", ErrDegenerateInput, winRate)
	}

	b := avgWin / avgLoss
	q := 1 - winRate
	raw := (winRate*b - q) / b

	f := raw * policy.KellyMultiplier
	if f < 0 {
		// Negative edge: the answer is "do not trade", not a zero-size trade.
		return none, nil
	}
	if f > policy.PerTradeRiskCap {
		f = policy.PerTradeRiskCap
	}
	return Recommendation{Fraction: f, ShouldTrade: f > 0}, nil
}
