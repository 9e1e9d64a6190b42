package persona

import (
	"math/rand"
)

// languageDist is the fixed categorical distribution participants'
// languages are resampled from, independent of the template's language.
// Probabilities roughly follow the Swiss language split.
var languageDist = []struct {
	lang string
	p    float64
}{
	{"de", 0.60},
	{"fr", 0.25},
	{"it", 0.10},
	{"en", 0.05},
}

// Generator builds randomized, cluster- and persona-balanced
// populations of simulated participants from the catalog.
type Generator struct {
	catalog *Catalog
	rng     *rand.Rand
}

// NewGenerator creates a generator drawing randomness from rng.
func NewGenerator(catalog *Catalog, rng *rand.Rand) *Generator {
	return &Generator{catalog: catalog, rng: rng}
}

// Generate returns exactly n participants: n is partitioned as evenly
// as possible across the four clusters (remainder to the first
// clusters), then evenly across each cluster's templates. Every
// participant is an independently jittered deep copy with a resampled
// language, and the final sequence is shuffled so workers never process
// the population in cluster order.
func (g *Generator) Generate(n int) []*Participant {
	out := make([]*Participant, 0, n)
	if n <= 0 {
		return out
	}

	perCluster := n / len(Clusters)
	remainder := n % len(Clusters)

	for i, cl := range Clusters {
		count := perCluster
		if i < remainder {
			count++
		}
		templates := g.catalog.ByCluster(cl)
		base := count / len(templates)
		extra := count % len(templates)
		for j, tmpl := range templates {
			copies := base
			if j < extra {
				copies++
			}
			for k := 0; k < copies; k++ {
				out = append(out, g.instantiate(tmpl))
			}
		}
	}

	// Fisher-Yates so early-vs-late failures never correlate with a
	// single cluster.
	for i := len(out) - 1; i > 0; i-- {
		j := g.rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// instantiate deep-copies a template, jitters each driver by an
// independent draw from {-1, 0, +1} and resamples the language.
func (g *Generator) instantiate(tmpl Persona) *Participant {
	p := tmpl.Copy()
	p.Drivers.TechComfort = g.jitter(p.Drivers.TechComfort)
	p.Drivers.PrivacyConcern = g.jitter(p.Drivers.PrivacyConcern)
	p.Drivers.CivicMotivation = g.jitter(p.Drivers.CivicMotivation)
	p.Drivers.InstitutionalTrust = g.jitter(p.Drivers.InstitutionalTrust)
	p.Drivers.CognitiveLoad = g.jitter(p.Drivers.CognitiveLoad)
	p.Drivers.BallotFamiliarity = g.jitter(p.Drivers.BallotFamiliarity)
	p.Drivers.RiskAversion = g.jitter(p.Drivers.RiskAversion)
	p.Demographics.Language = g.sampleLanguage()
	return &Participant{Persona: p}
}

func (g *Generator) jitter(v int) int {
	v += g.rng.Intn(3) - 1
	if v < 1 {
		return 1
	}
	if v > 7 {
		return 7
	}
	return v
}

// sampleLanguage draws from the fixed categorical distribution by
// cumulative probability.
func (g *Generator) sampleLanguage() string {
	r := g.rng.Float64()
	cum := 0.0
	for _, entry := range languageDist {
		cum += entry.p
		if r < cum {
			return entry.lang
		}
	}
	return languageDist[len(languageDist)-1].lang
}
