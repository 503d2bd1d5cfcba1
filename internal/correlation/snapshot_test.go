package correlation

import (
	"testing"

	"github.com/voldesk/options-core/internal/config"
	"github.com/voldesk/options-core/internal/regime"
)

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	cfg := config.Default()

	src := NewController(cfg)
	src.SetConditions(3, regime.Normal)
	src.Admit("SPY", "p-1")
	src.Admit("/ES", "p-2")
	src.Admit("TLT", "p-3")
	src.Admit("TSLA", "p-4") // unmapped policy gap

	data, err := src.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	dst := NewController(cfg)
	dst.SetConditions(3, regime.Normal)
	if err := dst.Restore(data); err != nil {
		t.Fatalf("restore: %v", err)
	}

	// The restored controller must answer every admission question exactly as
	// the original does.
	probes := []string{"SPY", "QQQ", "/ES", "/NQ", "TLT", "IEF", "GLD", "VXX", "TSLA", "NFLX"}
	for _, sym := range probes {
		want := src.CanAdmit(sym)
		got := dst.CanAdmit(sym)
		if got != want {
			t.Errorf("CanAdmit(%s) diverged after restore: got %+v, want %+v", sym, got, want)
		}
	}

	if got, want := dst.TotalActive(), src.TotalActive(); got != want {
		t.Errorf("TotalActive = %d, want %d", got, want)
	}
	if got := dst.PolicyGaps()["TSLA"]; got != 1 {
		t.Errorf("PolicyGaps[TSLA] = %d after restore, want 1", got)
	}
}

func TestRestoreReplacesExistingCounters(t *testing.T) {
	cfg := config.Default()

	src := NewController(cfg)
	src.Admit("GLD", "g-1")
	data, err := src.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	dst := NewController(cfg)
	dst.Admit("SPY", "s-1")
	dst.Admit("TLT", "b-1")
	if err := dst.Restore(data); err != nil {
		t.Fatalf("restore: %v", err)
	}

	counts := dst.ActiveCounts()
	if counts["gold"] != 1 || counts["equity_index_etf"] != 0 || counts["bonds"] != 0 {
		t.Errorf("restore did not replace counters wholesale: %v", counts)
	}
}

func TestRestoreRejectsUnknownGroup(t *testing.T) {
	c := NewController(config.Default())

	data := []byte(`{"version":1,"updated_at":"2026-08-26T00:00:00Z",` +
		`"groups":{"crypto":{"p1":"BTC"}},"unmapped":{},"policy_gaps":{}}`)
	if err := c.Restore(data); err == nil {
		t.Fatal("restore with an unknown group must fail rather than drop positions")
	}

	// A failed restore leaves the controller usable.
	if d := c.Admit("SPY", "p-1"); !d.Allowed {
		t.Errorf("controller unusable after failed restore: %s", d.Reason)
	}
}

func TestRestoreRejectsGarbage(t *testing.T) {
	c := NewController(config.Default())
	if err := c.Restore([]byte("not json")); err == nil {
		t.Fatal("garbage snapshot must fail to restore")
	}
}
