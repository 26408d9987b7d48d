package domain

import "time"

// StepMeta records one step of an agent turn for diagnostics.
type StepMeta struct {
	Name     string        `json:"name"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// TurnState is the plain data bag carried through a single agent turn:
// what was asked, how it was routed, and what context was assembled.
type TurnState struct {
	ConversationID string        `json:"conversationId"`
	Route          string        `json:"route"`
	Query          string        `json:"query"`
	DocumentPath   string        `json:"documentPath,omitempty"`
	ContextChunks  []ScoredChunk `json:"contextChunks,omitempty"`
	Steps          []StepMeta    `json:"steps,omitempty"`
}

// AddStep appends a step record.
func (s *TurnState) AddStep(name, detail string, d time.Duration) {
	s.Steps = append(s.Steps, StepMeta{Name: name, Detail: detail, Duration: d})
}
