package marketdata

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestFloatOnValueAndDegraded(t *testing.T) {
	asOf := time.Now()

	v, err := Value(23.4, asOf).Float()
	if err != nil || v != 23.4 {
		t.Errorf("Value.Float() = %v, %v", v, err)
	}

	d := Degraded(23.4, "stale by 8s", asOf)
	v, err = d.Float()
	if err != nil || v != 23.4 {
		t.Errorf("Degraded.Float() = %v, %v", v, err)
	}
	if ok, reason := d.IsDegraded(); !ok || reason != "stale by 8s" {
		t.Errorf("IsDegraded() = %v, %q", ok, reason)
	}
}

func TestFloatOnUnavailable(t *testing.T) {
	r := Unavailable(SeverityCritical, "feed timeout")
	if r.Usable() {
		t.Error("unavailable reading reports usable")
	}

	_, err := r.Float()
	var ue *UnavailableError
	if !errors.As(err, &ue) {
		t.Fatalf("Float() error = %v, want *UnavailableError", err)
	}
	if ue.Severity != SeverityCritical || ue.Reason != "feed timeout" {
		t.Errorf("error = %+v", ue)
	}
}

func TestNonFiniteValueIsUnavailable(t *testing.T) {
	for _, x := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		r := Value(x, time.Now())
		if r.Usable() {
			t.Errorf("Value(%v) reports usable", x)
		}
		_, err := r.Float()
		var ue *UnavailableError
		if !errors.As(err, &ue) || ue.Severity != SeverityCritical {
			t.Errorf("Value(%v).Float() error = %v, want critical UnavailableError", x, err)
		}
	}
}

func TestClassifyOutage(t *testing.T) {
	// 2026-08-26 is a Wednesday.
	day := func(h, m int) time.Time {
		return time.Date(2026, 8, 26, h, m, 0, 0, easternTime)
	}

	testCases := []struct {
		name string
		at   time.Time
		want Severity
	}{
		{"middle of the session", day(10, 0), SeverityCritical},
		{"the open", day(9, 30), SeverityCritical},
		{"just before the close", day(15, 59), SeverityCritical},
		{"the close itself", day(16, 0), SeverityWarning},
		{"pre-market", day(7, 0), SeverityWarning},
		{"post-market", day(18, 30), SeverityWarning},
		{"overnight", day(2, 0), SeverityExpected},
		{"just before pre-market", day(3, 59), SeverityExpected},
		{"saturday session hours", time.Date(2026, 8, 29, 10, 0, 0, 0, easternTime), SeverityExpected},
		{"sunday", time.Date(2026, 8, 30, 14, 0, 0, 0, easternTime), SeverityExpected},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyOutage(tc.at); got != tc.want {
				t.Errorf("ClassifyOutage(%v) = %s, want %s", tc.at, got, tc.want)
			}
		})
	}
}

func TestOutageSeverity(t *testing.T) {
	if got := Unavailable(SeverityFatal, "db gone").OutageSeverity(); got != SeverityFatal {
		t.Errorf("OutageSeverity = %s, want fatal", got)
	}
	if got := Value(1, time.Now()).OutageSeverity(); got != SeverityExpected {
		t.Errorf("OutageSeverity of a value = %s, want expected", got)
	}
}
