package runner

import (
	"fmt"
	"io"
	"sort"
)

// DistributionStats describes a generated population without running
// any workflow phase. No remote call is made on this path.
type DistributionStats struct {
	Requested  int            `json:"requested"`
	ByCluster  map[string]int `json:"byCluster"`
	ByPersona  map[string]int `json:"byPersona"`
	ByLanguage map[string]int `json:"byLanguage"`
	Questions  int            `json:"totalChatQuestions"`
}

// DryRun builds the same population Run would and reports its
// distribution.
func (o *Orchestrator) DryRun(n int) *DistributionStats {
	population := o.generator.Generate(n)
	stats := &DistributionStats{
		Requested:  n,
		ByCluster:  make(map[string]int),
		ByPersona:  make(map[string]int),
		ByLanguage: make(map[string]int),
	}
	for _, p := range population {
		stats.ByCluster[string(p.Persona.Cluster)]++
		stats.ByPersona[p.Persona.ID]++
		stats.ByLanguage[p.Persona.Demographics.Language]++
		stats.Questions += p.Persona.Interaction.QuestionCount
	}
	return stats
}

// Print writes the distribution as a fixed-order table.
func (s *DistributionStats) Print(w io.Writer) {
	fmt.Fprintf(w, "Dry run: %d participants, %d chat questions\n", s.Requested, s.Questions)
	fmt.Fprintf(w, "Clusters:\n")
	for _, k := range sortedKeys(s.ByCluster) {
		fmt.Fprintf(w, "  %-4s %d\n", k, s.ByCluster[k])
	}
	fmt.Fprintf(w, "Personas:\n")
	for _, k := range sortedKeys(s.ByPersona) {
		fmt.Fprintf(w, "  %-20s %d\n", k, s.ByPersona[k])
	}
	fmt.Fprintf(w, "Languages:\n")
	for _, k := range sortedKeys(s.ByLanguage) {
		fmt.Fprintf(w, "  %-4s %d\n", k, s.ByLanguage[k])
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
