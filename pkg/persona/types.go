package persona

// Cluster is one of four coarse behavioral archetypes grouping personas
// by civic motivation and privacy concern.
type Cluster string

const (
	ClusterEngaged     Cluster = "A" // civic-minded, donation-friendly
	ClusterPragmatic   Cluster = "B" // cost/benefit weighers
	ClusterGuarded     Cluster = "C" // privacy-protective, low trust
	ClusterConvenience Cluster = "D" // low-effort, persuadable
)

// Clusters lists the archetypes in canonical order. The distribution
// generator partitions the population across them in this order.
var Clusters = []Cluster{ClusterEngaged, ClusterPragmatic, ClusterGuarded, ClusterConvenience}

// Drivers is the seven-dimension behavioral driver vector. Every value
// is on a 1-7 scale.
type Drivers struct {
	TechComfort        int `yaml:"tech_comfort" json:"techComfort"`
	PrivacyConcern     int `yaml:"privacy_concern" json:"privacyConcern"`
	CivicMotivation    int `yaml:"civic_motivation" json:"civicMotivation"`
	InstitutionalTrust int `yaml:"institutional_trust" json:"institutionalTrust"`
	CognitiveLoad      int `yaml:"cognitive_load_sensitivity" json:"cognitiveLoadSensitivity"`
	BallotFamiliarity  int `yaml:"ballot_familiarity" json:"ballotFamiliarity"`
	RiskAversion       int `yaml:"risk_aversion" json:"riskAversion"`
}

// Demographics mirrors the study's participant attributes.
type Demographics struct {
	AgeBand        string `yaml:"age_band" json:"ageBand"`
	Gender         string `yaml:"gender" json:"gender"`
	Education      string `yaml:"education" json:"education"`
	Language       string `yaml:"language" json:"language"`
	VotingEligible bool   `yaml:"voting_eligible" json:"votingEligible"`
}

// Interaction describes how a persona behaves in the chat phase.
type Interaction struct {
	QuestionCount int      `yaml:"question_count" json:"questionCount"`
	Topics        []string `yaml:"topics" json:"topics"`
	Tone          string   `yaml:"tone" json:"tone"`
}

// Persona is an immutable template loaded once from the catalog. It is
// never mutated; each simulated participant receives a deep copy with
// independently jittered drivers.
type Persona struct {
	ID           string       `yaml:"id" json:"id"`
	Name         string       `yaml:"name" json:"name"`
	Cluster      Cluster      `yaml:"cluster" json:"cluster"`
	Demographics Demographics `yaml:"demographics" json:"demographics"`
	Drivers      Drivers      `yaml:"drivers" json:"drivers"`
	Interaction  Interaction  `yaml:"interaction" json:"interaction"`
}

// Copy returns a deep copy safe to jitter without touching the template.
func (p Persona) Copy() Persona {
	cp := p
	cp.Interaction.Topics = append([]string(nil), p.Interaction.Topics...)
	return cp
}

// Participant is a jittered persona copy plus the run-scoped identity
// the backend assigns during the initialize call. RemoteID and
// Condition stay empty until that call succeeds.
type Participant struct {
	Persona   Persona
	RemoteID  string
	Condition string
}
