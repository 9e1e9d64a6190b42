package persona

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog is the read-only set of persona templates for a study. It is
// loaded once and freely shared across workers.
type Catalog struct {
	personas  []Persona
	byCluster map[Cluster][]Persona
}

// LoadCatalog parses the embedded persona catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog builds a catalog from raw YAML. Exposed so tests can
// load reduced catalogs.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Personas []Persona `yaml:"personas"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse persona catalog: %w", err)
	}
	if len(doc.Personas) == 0 {
		return nil, fmt.Errorf("persona catalog is empty")
	}

	c := &Catalog{
		personas:  doc.Personas,
		byCluster: make(map[Cluster][]Persona),
	}
	for _, p := range doc.Personas {
		if err := validatePersona(p); err != nil {
			return nil, fmt.Errorf("persona %q: %w", p.ID, err)
		}
		c.byCluster[p.Cluster] = append(c.byCluster[p.Cluster], p)
	}
	for _, cl := range Clusters {
		if len(c.byCluster[cl]) == 0 {
			return nil, fmt.Errorf("cluster %s has no personas", cl)
		}
	}
	return c, nil
}

// All returns every template in catalog order.
func (c *Catalog) All() []Persona {
	return c.personas
}

// ByCluster returns the templates tagged with the given cluster.
func (c *Catalog) ByCluster(cl Cluster) []Persona {
	return c.byCluster[cl]
}

// Len reports the number of templates.
func (c *Catalog) Len() int {
	return len(c.personas)
}

func validatePersona(p Persona) error {
	if p.ID == "" {
		return fmt.Errorf("missing id")
	}
	switch p.Cluster {
	case ClusterEngaged, ClusterPragmatic, ClusterGuarded, ClusterConvenience:
	default:
		return fmt.Errorf("unknown cluster %q", p.Cluster)
	}
	for name, v := range map[string]int{
		"tech_comfort":               p.Drivers.TechComfort,
		"privacy_concern":            p.Drivers.PrivacyConcern,
		"civic_motivation":           p.Drivers.CivicMotivation,
		"institutional_trust":        p.Drivers.InstitutionalTrust,
		"cognitive_load_sensitivity": p.Drivers.CognitiveLoad,
		"ballot_familiarity":         p.Drivers.BallotFamiliarity,
		"risk_aversion":              p.Drivers.RiskAversion,
	} {
		if v < 1 || v > 7 {
			return fmt.Errorf("driver %s=%d out of 1-7 range", name, v)
		}
	}
	if p.Interaction.QuestionCount < 2 || p.Interaction.QuestionCount > 3 {
		return fmt.Errorf("question_count must be 2 or 3, got %d", p.Interaction.QuestionCount)
	}
	return nil
}
