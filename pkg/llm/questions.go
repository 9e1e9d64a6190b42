// Package llm generates the user-side chat questions a simulated
// participant asks the study chatbot.
package llm

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/civiclab/ballotsim/pkg/persona"
)

// QuestionGenerator produces the next user question given the persona
// and the conversation so far.
type QuestionGenerator interface {
	NextQuestion(ctx context.Context, p persona.Persona, turn int, history []string) (string, error)
}

// callTimeout bounds each completion request; a timeout is retried
// upstream like any other transient failure.
const callTimeout = 20 * time.Second

// GeminiGenerator asks a Gemini model to phrase persona-appropriate
// questions about Swiss ballots.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a generator backed by the Gemini API.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// NextQuestion asks the model for one short question in the persona's
// voice and language.
func (g *GeminiGenerator) NextQuestion(ctx context.Context, p persona.Persona, turn int, history []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	prompt := buildPrompt(p, turn, history)
	result, err := g.client.Models.GenerateContent(ctx,
		g.model,
		genai.Text(prompt),
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("question generation failed: %w", err)
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("question generation returned empty text")
	}
	return text, nil
}

func buildPrompt(p persona.Persona, turn int, history []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are simulating a survey participant chatting with a Swiss voting information chatbot.\n")
	fmt.Fprintf(&b, "Persona: %s, tone %s, language %s, interested in: %s.\n",
		p.Name, p.Interaction.Tone, p.Demographics.Language, strings.Join(p.Interaction.Topics, ", "))
	if len(history) > 0 {
		fmt.Fprintf(&b, "Questions already asked:\n")
		for _, q := range history {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	fmt.Fprintf(&b, "Write question %d the participant would ask next, in their language, one sentence, no preamble.", turn+1)
	return b.String()
}

// TemplateGenerator is the deterministic fallback used when no API key
// is configured and in tests. It cycles through the persona's topics.
// One instance is shared by every worker, so the rng is guarded.
type TemplateGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewTemplateGenerator creates the fallback generator.
func NewTemplateGenerator(rng *rand.Rand) *TemplateGenerator {
	return &TemplateGenerator{rng: rng}
}

var templates = []string{
	"Can you tell me more about %s?",
	"What should I know about %s before the next vote?",
	"How does %s work in my canton?",
}

// NextQuestion composes a question from the persona's topic list.
func (t *TemplateGenerator) NextQuestion(_ context.Context, p persona.Persona, turn int, _ []string) (string, error) {
	topics := p.Interaction.Topics
	if len(topics) == 0 {
		return "What is on the ballot in the next federal vote?", nil
	}
	topic := topics[turn%len(topics)]
	t.mu.Lock()
	tmpl := templates[t.rng.Intn(len(templates))]
	t.mu.Unlock()
	return fmt.Sprintf(tmpl, topic), nil
}
