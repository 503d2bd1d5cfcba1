// Package marketdata defines the Reading value the decision core consumes for
// every market-data query. A Reading is either a trusted value, a degraded
// value, or an unavailable marker with an outage severity, and callers must
// handle each case explicitly. The core never substitutes numeric defaults
// for missing data.
package marketdata

import (
	"fmt"
	"math"
	"time"
)

// Severity classifies how bad a missing reading is, based on when it happened.
type Severity int

const (
	// SeverityExpected covers outages outside trading hours (feeds are down
	// overnight and on weekends as a matter of course).
	SeverityExpected Severity = iota
	// SeverityWarning covers pre/post-market gaps.
	SeverityWarning
	// SeverityCritical covers a missing reading during regular trading hours;
	// admission halts for the affected instrument.
	SeverityCritical
	// SeverityFatal covers persistent failures that halt the whole core.
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityExpected:
		return "expected"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

type kind int

const (
	kindValue kind = iota
	kindDegraded
	kindUnavailable
)

// Reading is the sum type returned by every market-data query.
type Reading struct {
	k        kind
	value    float64
	reason   string
	severity Severity
	asOf     time.Time
}

// Value constructs a trusted reading.
func Value(x float64, asOf time.Time) Reading {
	return Reading{k: kindValue, value: x, asOf: asOf}
}

// Degraded constructs a usable-but-suspect reading (e.g. stale by a few
// seconds, or derived from a last trade instead of a mid).
func Degraded(x float64, reason string, asOf time.Time) Reading {
	return Reading{k: kindDegraded, value: x, reason: reason, asOf: asOf}
}

// Unavailable constructs a missing reading with its outage severity.
func Unavailable(sev Severity, reason string) Reading {
	return Reading{k: kindUnavailable, severity: sev, reason: reason}
}

// UnavailableError is the typed failure surfaced when a caller tries to use a
// reading that isn't there.
type UnavailableError struct {
	Severity Severity
	Reason   string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("market data unavailable (%s): %s", e.Severity, e.Reason)
}

// Float returns the numeric value, or an UnavailableError when there is none.
// Non-finite values are treated as unavailable rather than passed through.
func (r Reading) Float() (float64, error) {
	if r.k == kindUnavailable {
		return 0, &UnavailableError{Severity: r.severity, Reason: r.reason}
	}
	if math.IsNaN(r.value) || math.IsInf(r.value, 0) {
		return 0, &UnavailableError{Severity: SeverityCritical, Reason: "non-finite reading"}
	}
	return r.value, nil
}

// Usable reports whether the reading carries a number a decision may be based
// on. Degraded readings are usable; callers that need to know can check
// Degraded().
func (r Reading) Usable() bool {
	if r.k == kindUnavailable {
		return false
	}
	return !math.IsNaN(r.value) && !math.IsInf(r.value, 0)
}

// IsDegraded reports whether the reading is usable but suspect, with a reason.
func (r Reading) IsDegraded() (bool, string) {
	return r.k == kindDegraded, r.reason
}

// OutageSeverity returns the severity for an unavailable reading, or
// SeverityExpected for usable readings.
func (r Reading) OutageSeverity() Severity {
	if r.k == kindUnavailable {
		return r.severity
	}
	return SeverityExpected
}

// AsOf returns the observation timestamp (zero for unavailable readings).
func (r Reading) AsOf() time.Time { return r.asOf }

// ClassifyOutage maps an outage timestamp to a severity using the US equity
// session in Eastern time. Used by the data-quality collaborator when it
// constructs Unavailable readings; kept here so the classification is shared.
func ClassifyOutage(t time.Time) Severity {
	et := t.In(easternTime)
	switch et.Weekday() {
	case time.Saturday, time.Sunday:
		return SeverityExpected
	}
	h, m := et.Hour(), et.Minute()
	mins := h*60 + m
	const open, close = 9*60 + 30, 16 * 60
	switch {
	case mins >= open && mins < close:
		return SeverityCritical
	case mins >= 4*60 && mins < open, mins >= close && mins < 20*60:
		return SeverityWarning
	default:
		return SeverityExpected
	}
}

// SessionLocation returns the exchange session timezone. Calendar-day
// questions (same-day expiry, outage classification) are answered in this
// zone, not in the caller's local zone.
func SessionLocation() *time.Location { return easternTime }

var easternTime = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
