package behavior

import (
	"math/rand"
	"testing"

	"github.com/civiclab/ballotsim/pkg/persona"
)

func neutralDrivers() persona.Drivers {
	return persona.Drivers{
		TechComfort:        4,
		PrivacyConcern:     4,
		CivicMotivation:    4,
		InstitutionalTrust: 4,
		CognitiveLoad:      4,
		BallotFamiliarity:  4,
		RiskAversion:       4,
	}
}

func guardedDrivers() persona.Drivers {
	return persona.Drivers{
		TechComfort:        7,
		PrivacyConcern:     7,
		CivicMotivation:    4,
		InstitutionalTrust: 2,
		CognitiveLoad:      3,
		BallotFamiliarity:  5,
		RiskAversion:       6,
	}
}

func TestJitterLikert_StaysOnScale(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for base := 1; base <= 7; base++ {
		for i := 0; i < 200; i++ {
			v := JitterLikert(rng, base)
			if v < 1 || v > 7 {
				t.Fatalf("JitterLikert(%d) = %d, out of scale", base, v)
			}
			if v < base-1 || v > base+1 {
				t.Fatalf("JitterLikert(%d) = %d, moved more than one step", base, v)
			}
		}
	}
}

func TestDonationRate_ClusterANeutralUnderConditionA(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	d := neutralDrivers()

	const samples = 10000
	donated := 0
	for i := 0; i < samples; i++ {
		if DonationDecision(rng, persona.ClusterEngaged, "A", d) {
			donated++
		}
	}

	rate := float64(donated) / samples
	if rate < 0.63 || rate > 0.67 {
		t.Errorf("empirical donation rate %.4f, want 0.65 +/- 0.02", rate)
	}
}

func TestDonationRate_GuardedClusterBoostedUnderConditionD(t *testing.T) {
	d := guardedDrivers()

	pA := DonationProbability(persona.ClusterGuarded, "A", d)
	pD := DonationProbability(persona.ClusterGuarded, "D", d)
	if pD <= pA {
		t.Fatalf("P(donate|D)=%.3f not strictly above P(donate|A)=%.3f", pD, pA)
	}

	// The probabilities must also show up empirically.
	rng := rand.New(rand.NewSource(7))
	const samples = 10000
	countA, countD := 0, 0
	for i := 0; i < samples; i++ {
		if DonationDecision(rng, persona.ClusterGuarded, "A", d) {
			countA++
		}
		if DonationDecision(rng, persona.ClusterGuarded, "D", d) {
			countD++
		}
	}
	if countD <= countA {
		t.Errorf("empirical D count %d not above A count %d", countD, countA)
	}
}

func TestDonationProbability_GatingStructure(t *testing.T) {
	tests := []struct {
		name      string
		condition string
		mutate    func(*persona.Drivers)
		want      float64
	}{
		{"neutral A has no adjustments", "A", nil, 0.40},
		{"B label boost requires load sensitivity", "B",
			func(d *persona.Drivers) { d.CognitiveLoad = 5 }, 0.55},
		{"B label boost withheld below gate", "B",
			func(d *persona.Drivers) { d.CognitiveLoad = 4 }, 0.40},
		{"B novice boost", "B",
			func(d *persona.Drivers) { d.BallotFamiliarity = 3 }, 0.45},
		{"C dashboard reassures the privacy-concerned", "C",
			func(d *persona.Drivers) { d.PrivacyConcern = 6 }, 0.60},
		{"C dashboard burdens the load-sensitive", "C",
			func(d *persona.Drivers) { d.CognitiveLoad = 6 }, 0.30},
		{"universal civic boost", "A",
			func(d *persona.Drivers) { d.CivicMotivation = 6 }, 0.50},
		{"universal distrust penalty", "A",
			func(d *persona.Drivers) { d.InstitutionalTrust = 2 }, 0.25},
	}

	for _, tt := range tests {
		d := neutralDrivers()
		if tt.mutate != nil {
			tt.mutate(&d)
		}
		got := DonationProbability(persona.ClusterPragmatic, tt.condition, d)
		if got < tt.want-1e-9 || got > tt.want+1e-9 {
			t.Errorf("%s: probability %.3f, want %.3f", tt.name, got, tt.want)
		}
	}
}

func TestDonationProbability_Clamped(t *testing.T) {
	low := persona.Drivers{
		TechComfort:        1,
		PrivacyConcern:     1,
		CivicMotivation:    1,
		InstitutionalTrust: 1,
		CognitiveLoad:      1,
		BallotFamiliarity:  7,
		RiskAversion:       7,
	}
	if p := DonationProbability(persona.ClusterGuarded, "A", low); p < 0.05 {
		t.Errorf("probability %.3f below floor", p)
	}

	high := persona.Drivers{
		TechComfort:        7,
		PrivacyConcern:     7,
		CivicMotivation:    7,
		InstitutionalTrust: 7,
		CognitiveLoad:      7,
		BallotFamiliarity:  1,
		RiskAversion:       1,
	}
	if p := DonationProbability(persona.ClusterEngaged, "D", high); p > 0.95 {
		t.Errorf("probability %.3f above ceiling", p)
	}
}

func TestPostMeasures_ManipulationChecksTrackArtifactsShown(t *testing.T) {
	d := neutralDrivers()

	// Average out the jitter over many samples per condition.
	avg := func(condition, key string) float64 {
		rng := rand.New(rand.NewSource(99))
		total := 0
		const samples = 2000
		for i := 0; i < samples; i++ {
			m := PostMeasures(rng, condition, d)
			total += m[key].(int)
		}
		return float64(total) / samples
	}

	// Labels are shown under B and D only.
	if avg("B", "perceivedTransparency") <= avg("A", "perceivedTransparency") {
		t.Error("perceived transparency not raised under condition B")
	}
	// Dashboard is shown under C and D only.
	if avg("C", "perceivedControl") <= avg("B", "perceivedControl") {
		t.Error("perceived control not raised under condition C")
	}

	m := PostMeasures(rand.New(rand.NewSource(1)), "A", d)
	if m["attentionCheck"] != "voting" {
		t.Errorf("attention check = %v, want voting", m["attentionCheck"])
	}
}

func TestPostMeasures_RiskInverseOfTrust(t *testing.T) {
	trusting := neutralDrivers()
	trusting.InstitutionalTrust = 7
	wary := neutralDrivers()
	wary.InstitutionalTrust = 1

	avgRisk := func(d persona.Drivers) float64 {
		rng := rand.New(rand.NewSource(3))
		total := 0
		const samples = 2000
		for i := 0; i < samples; i++ {
			total += PostMeasures(rng, "A", d)["riskPerception"].(int)
		}
		return float64(total) / samples
	}

	if avgRisk(wary) <= avgRisk(trusting) {
		t.Error("risk perception does not rise as institutional trust falls")
	}
}

func TestChooseDashboard(t *testing.T) {
	d := guardedDrivers()

	if cfg := ChooseDashboard("A", true, d); cfg != nil {
		t.Error("dashboard emitted under a condition that never shows one")
	}
	if cfg := ChooseDashboard("C", false, d); cfg != nil {
		t.Error("dashboard emitted for a declining participant")
	}

	cfg := ChooseDashboard("C", true, d)
	if cfg == nil {
		t.Fatal("no dashboard for a donating participant under condition C")
	}
	if cfg.Scope != "messages_only" {
		t.Errorf("scope = %s, want messages_only for privacy concern > 5", cfg.Scope)
	}
	if cfg.Storage != "switzerland_only" {
		t.Errorf("storage = %s, want switzerland_only for trust <= 3", cfg.Storage)
	}
	if cfg.Retention != "6_months" {
		t.Errorf("retention = %s, want 6_months for risk aversion >= 5", cfg.Retention)
	}

	open := neutralDrivers()
	open.CivicMotivation = 6
	cfg = ChooseDashboard("D", true, open)
	if cfg.Scope != "full_chat" || cfg.Purpose != "research_and_publication" {
		t.Errorf("unexpected config for open participant: %+v", cfg)
	}
}
