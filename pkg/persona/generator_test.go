package persona

import (
	"math/rand"
	"testing"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	return c
}

func TestGenerator_ExactCount(t *testing.T) {
	catalog := testCatalog(t)
	gen := NewGenerator(catalog, rand.New(rand.NewSource(1)))

	for _, n := range []int{0, 1, 4, 7, 1000} {
		got := gen.Generate(n)
		if len(got) != n {
			t.Errorf("Generate(%d) returned %d participants", n, len(got))
		}
	}
}

func TestGenerator_BalancedPartition(t *testing.T) {
	catalog := testCatalog(t)
	gen := NewGenerator(catalog, rand.New(rand.NewSource(7)))

	// Divisible by cluster count and by personas per cluster: every
	// cluster/persona combination appears equally often.
	perCluster := len(catalog.ByCluster(ClusterEngaged))
	n := len(Clusters) * perCluster * 10

	byPersona := make(map[string]int)
	byCluster := make(map[Cluster]int)
	for _, p := range gen.Generate(n) {
		byPersona[p.Persona.ID]++
		byCluster[p.Persona.Cluster]++
	}

	for _, cl := range Clusters {
		if byCluster[cl] != n/len(Clusters) {
			t.Errorf("cluster %s got %d participants, want %d", cl, byCluster[cl], n/len(Clusters))
		}
	}
	want := n / catalog.Len()
	for id, count := range byPersona {
		if count != want {
			t.Errorf("persona %s appears %d times, want %d", id, count, want)
		}
	}
}

func TestGenerator_RemainderGoesToFirstClusters(t *testing.T) {
	catalog := testCatalog(t)
	gen := NewGenerator(catalog, rand.New(rand.NewSource(3)))

	byCluster := make(map[Cluster]int)
	for _, p := range gen.Generate(6) {
		byCluster[p.Persona.Cluster]++
	}
	if byCluster[ClusterEngaged] != 2 || byCluster[ClusterPragmatic] != 2 {
		t.Errorf("remainder not assigned to first clusters: %v", byCluster)
	}
	if byCluster[ClusterGuarded] != 1 || byCluster[ClusterConvenience] != 1 {
		t.Errorf("later clusters wrong: %v", byCluster)
	}
}

func TestGenerator_JitterStaysOnScaleAndTemplateUntouched(t *testing.T) {
	catalog := testCatalog(t)
	gen := NewGenerator(catalog, rand.New(rand.NewSource(11)))

	original := make(map[string]Drivers)
	for _, p := range catalog.All() {
		original[p.ID] = p.Drivers
	}

	for _, p := range gen.Generate(400) {
		for _, v := range []int{
			p.Persona.Drivers.TechComfort,
			p.Persona.Drivers.PrivacyConcern,
			p.Persona.Drivers.CivicMotivation,
			p.Persona.Drivers.InstitutionalTrust,
			p.Persona.Drivers.CognitiveLoad,
			p.Persona.Drivers.BallotFamiliarity,
			p.Persona.Drivers.RiskAversion,
		} {
			if v < 1 || v > 7 {
				t.Fatalf("jittered driver %d out of 1-7 for %s", v, p.Persona.ID)
			}
		}
	}

	// Templates are immutable; jitter must only touch copies.
	for _, p := range catalog.All() {
		if p.Drivers != original[p.ID] {
			t.Errorf("template %s drivers mutated", p.ID)
		}
	}
}

func TestGenerator_LanguageResampledFromFixedDistribution(t *testing.T) {
	catalog := testCatalog(t)
	gen := NewGenerator(catalog, rand.New(rand.NewSource(5)))

	counts := make(map[string]int)
	const n = 4000
	for _, p := range gen.Generate(n) {
		counts[p.Persona.Demographics.Language]++
	}

	// All four languages must appear, roughly in distribution order.
	for _, lang := range []string{"de", "fr", "it", "en"} {
		if counts[lang] == 0 {
			t.Errorf("language %s never sampled", lang)
		}
	}
	if counts["de"] < counts["fr"] || counts["fr"] < counts["it"] {
		t.Errorf("language frequencies out of order: %v", counts)
	}
	deShare := float64(counts["de"]) / n
	if deShare < 0.55 || deShare > 0.65 {
		t.Errorf("de share %.3f, want about 0.60", deShare)
	}
}

func TestGenerator_ShufflesClusterOrder(t *testing.T) {
	catalog := testCatalog(t)
	gen := NewGenerator(catalog, rand.New(rand.NewSource(13)))

	population := gen.Generate(100)

	// A cluster-ordered sequence would put every cluster-A unit in the
	// first quarter. After the shuffle at least one must land later.
	sawLateA := false
	for i, p := range population {
		if i >= 25 && p.Persona.Cluster == ClusterEngaged {
			sawLateA = true
			break
		}
	}
	if !sawLateA {
		t.Error("population still in cluster order after shuffle")
	}
}

func TestParseCatalog_RejectsBadData(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "personas: []"},
		{"bad cluster", `
personas:
  - id: x
    cluster: Z
    drivers: {tech_comfort: 4, privacy_concern: 4, civic_motivation: 4, institutional_trust: 4, cognitive_load_sensitivity: 4, ballot_familiarity: 4, risk_aversion: 4}
    interaction: {question_count: 2}`},
		{"driver out of range", `
personas:
  - id: x
    cluster: A
    drivers: {tech_comfort: 9, privacy_concern: 4, civic_motivation: 4, institutional_trust: 4, cognitive_load_sensitivity: 4, ballot_familiarity: 4, risk_aversion: 4}
    interaction: {question_count: 2}`},
	}

	for _, tt := range tests {
		if _, err := ParseCatalog([]byte(tt.yaml)); err == nil {
			t.Errorf("%s: ParseCatalog accepted invalid catalog", tt.name)
		}
	}
}
