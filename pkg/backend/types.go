package backend

import "encoding/json"

// InitializeRequest registers a simulated participant with the study
// backend. IsAIParticipant is always true for harness traffic so the
// analysis pipeline can separate it from human sessions.
type InitializeRequest struct {
	Language        string `json:"language"`
	IsAIParticipant bool   `json:"isAiParticipant"`
	AIPersonaID     string `json:"aiPersonaId"`
	AIRunID         string `json:"aiRunId"`
}

// InitializeResponse carries the identity the backend assigned. The
// condition is one of A-D and is independent of the persona's cluster.
type InitializeResponse struct {
	ParticipantID string          `json:"participantId"`
	Condition     string          `json:"condition"`
	Config        json.RawMessage `json:"config,omitempty"`
}

// BaselineRequest is the pre-chat survey submission.
type BaselineRequest struct {
	ParticipantID     string `json:"participantId"`
	TechComfort       int    `json:"techComfort"`
	PrivacyConcern    int    `json:"privacyConcern"`
	BallotFamiliarity int    `json:"ballotFamiliarity"`
}

// ChatMessage is one entry of the conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is one user turn of the chat phase.
type ChatRequest struct {
	ParticipantID       string        `json:"participantId"`
	Message             string        `json:"message"`
	ConversationHistory []ChatMessage `json:"conversationHistory"`
	Language            string        `json:"language"`
}

// ChatResponse is the chatbot's reply. Older backend revisions return
// the text under "message" instead of "response".
type ChatResponse struct {
	Response string `json:"response"`
	Message  string `json:"message"`
}

// Text returns the reply regardless of which field the backend used.
func (r ChatResponse) Text() string {
	if r.Response != "" {
		return r.Response
	}
	return r.Message
}

// DonationRequest records the participant's data-donation decision and,
// for dashboard-bearing conditions, the selected configuration.
type DonationRequest struct {
	ParticipantID string `json:"participantId"`
	Decision      string `json:"decision"` // "donate" or "decline"
	Config        any    `json:"config"`
}

// PostMeasuresRequest is the post-survey submission.
type PostMeasuresRequest struct {
	ParticipantID string         `json:"participantId"`
	Measures      map[string]any `json:"measures"`
}
