package sequence

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScoreEmailPushAds(t *testing.T) {
	tables := Tables{
		Base:    map[string]float64{"Email": 0.08, "Push": 0.05, "Ads": 0.03},
		Synergy: map[Pair]float64{{"Email", "Push"}: 0.02},
		Decay:   0.6,
		Cap:     0.15,
	}
	got := Score([]string{"Email", "Push", "Ads"}, tables)
	if !near(got, 0.1408) {
		t.Fatalf("expected 0.1408, got %f", got)
	}
}

func TestScoreEmpty(t *testing.T) {
	if got := Score(nil, RevisionA()); got != 0 {
		t.Fatalf("expected 0, got %f", got)
	}
	if got := Score([]string{}, RevisionA()); got != 0 {
		t.Fatalf("expected 0, got %f", got)
	}
}

func TestScoreDeterministic(t *testing.T) {
	seq := []string{"Push", "Email", "Ads"}
	a := Score(seq, RevisionA())
	b := Score(seq, RevisionA())
	if a != b {
		t.Fatalf("non-deterministic: %f vs %f", a, b)
	}
}

func TestScoreOrderSensitive(t *testing.T) {
	tables := RevisionA()
	tables.Synergy = nil
	hi := Score([]string{"Email", "Ads"}, tables)
	lo := Score([]string{"Ads", "Email"}, tables)
	// 0.08 + 0.03*0.6 vs 0.03 + 0.08*0.6
	if !near(hi, 0.098) || !near(lo, 0.078) {
		t.Fatalf("unexpected scores %f / %f", hi, lo)
	}
	if !(hi > lo) {
		t.Fatal("heavier channel first must score higher")
	}
}

func TestSynergyAsymmetric(t *testing.T) {
	tables := Tables{
		Base:    map[string]float64{},
		Synergy: map[Pair]float64{{"Email", "Push"}: 0.02},
		Decay:   0.6,
		Cap:     1,
	}
	if got := Score([]string{"Email", "Push"}, tables); !near(got, 0.02) {
		t.Fatalf("expected 0.02, got %f", got)
	}
	if got := Score([]string{"Push", "Email"}, tables); got != 0 {
		t.Fatalf("reverse pair must not hit synergy, got %f", got)
	}
}

func TestUnknownTokenSynergyOnly(t *testing.T) {
	tables := Tables{
		Base:    map[string]float64{"Email": 0.08},
		Synergy: map[Pair]float64{{"Email", "Carrier Pigeon"}: 0.01},
		Decay:   0.6,
		Cap:     1,
	}
	if got := Score([]string{"Email", "Carrier Pigeon"}, tables); !near(got, 0.09) {
		t.Fatalf("expected 0.09, got %f", got)
	}
	if got := Score([]string{"Carrier Pigeon"}, tables); got != 0 {
		t.Fatalf("expected 0 for unknown lead, got %f", got)
	}
}

func TestScoreCapped(t *testing.T) {
	for _, tables := range []Tables{RevisionA(), RevisionB()} {
		seq := make([]string, 0, 200)
		for i := 0; i < 50; i++ {
			seq = append(seq, "Email", "Push", "Email", "Ads")
		}
		if got := Score(seq, tables); got > tables.Cap {
			t.Fatalf("score %f above cap %f", got, tables.Cap)
		}
	}
}

func TestRevisionAFullSequence(t *testing.T) {
	// 0.08 + 0.05*0.6 + 0.02 + 0.03*0.36 + 0.01 = 0.1508
	got := Score([]string{"Email", "Push", "Ads"}, RevisionA())
	if got != 0.15 {
		t.Fatalf("expected cap to bind at 0.15, got %f", got)
	}
}

func TestRevisionLookup(t *testing.T) {
	if Revision("B").Cap != 0.25 {
		t.Fatal("expected revision B cap 0.25")
	}
	if Revision("unknown").Cap != 0.15 {
		t.Fatal("expected fallback to revision A")
	}
}

func TestExplain(t *testing.T) {
	parts := Explain([]string{"Email", "Push"}, RevisionA())
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if !near(parts[0].Base, 0.08) || parts[0].Synergy != 0 {
		t.Fatalf("unexpected lead contribution %+v", parts[0])
	}
	if !near(parts[1].Base, 0.03) || !near(parts[1].Synergy, 0.02) {
		t.Fatalf("unexpected follow-up contribution %+v", parts[1])
	}
}
