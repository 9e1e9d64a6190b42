// Package behavior maps a participant's jittered driver vector and
// assigned experimental condition to simulated survey answers and the
// donation decision. Everything here is pure computation over an
// injected random source; no I/O.
//
// Conditions follow the study's 2x2 transparency x control design:
// A=T0C0, B=T1C0, C=T0C1, D=T1C1. Data labels are shown under T1 (B,
// D); the control dashboard is shown under C1 (C, D). No condition
// applies a flat bonus to everyone: every effect is gated on a specific
// trait threshold, because the gating structure encodes the
// experiment's causal hypotheses.
package behavior

import (
	"math/rand"

	"github.com/civiclab/ballotsim/pkg/persona"
)

// Cluster base donation probabilities, before any condition or trait
// adjustment.
var clusterBase = map[persona.Cluster]float64{
	persona.ClusterEngaged:     0.65,
	persona.ClusterPragmatic:   0.40,
	persona.ClusterGuarded:     0.20,
	persona.ClusterConvenience: 0.45,
}

// ShowsLabels reports whether the condition renders data labels (T1).
func ShowsLabels(condition string) bool {
	return condition == "B" || condition == "D"
}

// ShowsDashboard reports whether the condition renders the control
// dashboard (C1).
func ShowsDashboard(condition string) bool {
	return condition == "C" || condition == "D"
}

// JitterLikert perturbs a 1-7 scalar by an independent draw from
// {-1, 0, +1} and clamps the result back onto the scale.
func JitterLikert(rng *rand.Rand, base int) int {
	v := base + rng.Intn(3) - 1
	if v < 1 {
		return 1
	}
	if v > 7 {
		return 7
	}
	return v
}

// DonationProbability computes the pre-sample probability for a
// participant: cluster base, then condition-specific trait-gated
// adjustments, then universal trait modifiers, clamped to [0.05, 0.95].
func DonationProbability(cluster persona.Cluster, condition string, d persona.Drivers) float64 {
	p := clusterBase[cluster]

	switch condition {
	case "B":
		// Labels lower processing cost; they only move participants who
		// are sensitive to that cost or unfamiliar with the ballot.
		if d.CognitiveLoad >= 5 {
			p += 0.15
		}
		if d.BallotFamiliarity <= 3 {
			p += 0.05
		}
	case "C":
		// The dashboard reassures the privacy-concerned but adds one
		// more surface for the load-sensitive to process.
		if d.PrivacyConcern >= 6 {
			p += 0.20
		}
		if d.CognitiveLoad >= 6 {
			p -= 0.10
		}
	case "D":
		if d.PrivacyConcern >= 6 {
			p += 0.20
		}
		if d.CognitiveLoad >= 5 {
			p += 0.15
		}
		if d.TechComfort >= 5 {
			p += 0.05
		}
	}

	if d.CivicMotivation >= 6 {
		p += 0.10
	}
	if d.InstitutionalTrust <= 2 {
		p -= 0.15
	}

	if p < 0.05 {
		p = 0.05
	}
	if p > 0.95 {
		p = 0.95
	}
	return p
}

// DonationDecision samples the Bernoulli outcome for a participant.
func DonationDecision(rng *rand.Rand, cluster persona.Cluster, condition string, d persona.Drivers) bool {
	return rng.Float64() < DonationProbability(cluster, condition, d)
}

// BaselineAnswers are the pre-chat survey responses.
type BaselineAnswers struct {
	TechComfort       int `json:"techComfort"`
	PrivacyConcern    int `json:"privacyConcern"`
	BallotFamiliarity int `json:"ballotFamiliarity"`
}

// Baseline derives the pre-chat answers from the driver vector.
func Baseline(rng *rand.Rand, d persona.Drivers) BaselineAnswers {
	return BaselineAnswers{
		TechComfort:       JitterLikert(rng, d.TechComfort),
		PrivacyConcern:    JitterLikert(rng, d.PrivacyConcern),
		BallotFamiliarity: JitterLikert(rng, d.BallotFamiliarity),
	}
}

// PostMeasures builds the post-survey payload. The manipulation checks
// move with the UI artifact actually shown: perceived transparency
// gains +2 under label-bearing conditions and perceived control +2
// under dashboard-bearing ones, before jitter and clamping. Risk and
// trust items derive from the inverse of institutional trust.
func PostMeasures(rng *rand.Rand, condition string, d persona.Drivers) map[string]any {
	transparencyBase := 3
	if ShowsLabels(condition) {
		transparencyBase += 2
	}
	controlBase := 3
	if ShowsDashboard(condition) {
		controlBase += 2
	}

	return map[string]any{
		"perceivedTransparency": JitterLikert(rng, transparencyBase),
		"perceivedControl":      JitterLikert(rng, controlBase),
		"riskPerception":        JitterLikert(rng, 8-d.InstitutionalTrust),
		"trustInChatbot":        JitterLikert(rng, d.InstitutionalTrust),
		"attentionCheck":        "voting",
	}
}

// DashboardConfig is the data-control selection a donating participant
// makes under a dashboard-bearing condition.
type DashboardConfig struct {
	Scope     string `json:"scope"`
	Purpose   string `json:"purpose"`
	Storage   string `json:"storage"`
	Retention string `json:"retention"`
}

// ChooseDashboard thresholds each option on a specific driver. Returns
// nil unless the participant donates under a condition that shows the
// dashboard.
func ChooseDashboard(condition string, donated bool, d persona.Drivers) *DashboardConfig {
	if !donated || !ShowsDashboard(condition) {
		return nil
	}
	cfg := &DashboardConfig{
		Scope:     "full_chat",
		Purpose:   "research_only",
		Storage:   "eu_cloud",
		Retention: "24_months",
	}
	if d.PrivacyConcern > 5 {
		cfg.Scope = "messages_only"
	}
	if d.CivicMotivation >= 5 {
		cfg.Purpose = "research_and_publication"
	}
	if d.InstitutionalTrust <= 3 {
		cfg.Storage = "switzerland_only"
	}
	if d.RiskAversion >= 5 {
		cfg.Retention = "6_months"
	}
	return cfg
}
