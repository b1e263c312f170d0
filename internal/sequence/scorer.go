// Package sequence scores ordered channel sequences and edits them.
package sequence

import "math"

// #region tables

// Pair is an ordered adjacent pair of channel tokens.
type Pair struct {
	From string
	To   string
}

// Tables is the static configuration of the scorer. Synergy is keyed by
// ordered pair and is not assumed symmetric.
type Tables struct {
	Base    map[string]float64
	Synergy map[Pair]float64
	Decay   float64 // per-position diminishing-returns factor
	Cap     float64 // hard ceiling on lift
}

// RevisionA is the course table: Email leads, capped at 15%.
func RevisionA() Tables {
	return Tables{
		Base: map[string]float64{
			"Email": 0.08,
			"Push":  0.05,
			"Ads":   0.03,
		},
		Synergy: map[Pair]float64{
			{"Email", "Push"}: 0.02,
			{"Email", "Ads"}:  0.015,
			{"Push", "Email"}: 0.01,
			{"Push", "Ads"}:   0.01,
			{"Ads", "Email"}:  0.005,
			{"Ads", "Push"}:   0.005,
		},
		Decay: 0.6,
		Cap:   0.15,
	}
}

// RevisionB is the wider table with a 25% ceiling.
func RevisionB() Tables {
	return Tables{
		Base: map[string]float64{
			"Email": 0.12,
			"Push":  0.08,
			"Ads":   0.05,
			"SMS":   0.04,
		},
		Synergy: map[Pair]float64{
			{"Email", "Push"}: 0.03,
			{"Email", "Ads"}:  0.02,
			{"Push", "Ads"}:   0.02,
			{"SMS", "Push"}:   0.01,
		},
		Decay: 0.6,
		Cap:   0.25,
	}
}

// Revision returns a named table revision; unknown names fall back to A.
func Revision(name string) Tables {
	if name == "b" || name == "B" {
		return RevisionB()
	}
	return RevisionA()
}

// #endregion tables

// #region score

// Score computes the lift of an ordered sequence. The first token carries
// its full base weight; the token at position i carries Decay^i of its
// weight plus the synergy of the pair ending at it. The total is capped.
func Score(seq []string, t Tables) float64 {
	if len(seq) == 0 {
		return 0
	}
	lift := t.Base[seq[0]]
	for i := 1; i < len(seq); i++ {
		lift += t.Base[seq[i]] * math.Pow(t.Decay, float64(i))
		lift += t.Synergy[Pair{From: seq[i-1], To: seq[i]}]
	}
	return math.Min(lift, t.Cap)
}

// Contribution is one position's share of a score, before the cap.
type Contribution struct {
	Position int
	Token    string
	Base     float64
	Synergy  float64
}

// Explain breaks Score down per position.
func Explain(seq []string, t Tables) []Contribution {
	out := make([]Contribution, 0, len(seq))
	for i, tok := range seq {
		c := Contribution{Position: i, Token: tok, Base: t.Base[tok] * math.Pow(t.Decay, float64(i))}
		if i > 0 {
			c.Synergy = t.Synergy[Pair{From: seq[i-1], To: tok}]
		}
		out = append(out, c)
	}
	return out
}

// #endregion score
