package workflow

import "time"

// State is the mutable record of one workflow run. Handlers pass data to
// later steps through Metadata.
type State struct {
	ID           string         `json:"id"`
	WorkflowName string         `json:"workflow_name"`
	CurrentStep  string         `json:"current_step"`
	StepHistory  []StepRecord   `json:"step_history"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// StepRecord captures one executed step.
type StepRecord struct {
	Step      string        `json:"step"`
	Event     string        `json:"event"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// NewState returns a State positioned at initialStep.
func NewState(id, workflowName, initialStep string) *State {
	now := time.Now()
	return &State{
		ID:           id,
		WorkflowName: workflowName,
		CurrentStep:  initialStep,
		StepHistory:  []StepRecord{},
		Metadata:     map[string]any{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// AddStepRecord appends record and bumps UpdatedAt.
func (s *State) AddStepRecord(record StepRecord) {
	s.StepHistory = append(s.StepHistory, record)
	s.UpdatedAt = time.Now()
}

// LastStep returns the most recent record, or nil before the first step.
func (s *State) LastStep() *StepRecord {
	if len(s.StepHistory) == 0 {
		return nil
	}
	return &s.StepHistory[len(s.StepHistory)-1]
}

// Set stores v under key.
func (s *State) Set(key string, v any) {
	if s.Metadata == nil {
		s.Metadata = map[string]any{}
	}
	s.Metadata[key] = v
}

// Get returns the value stored under key.
func (s *State) Get(key string) (any, bool) {
	v, ok := s.Metadata[key]
	return v, ok
}

// String returns the string stored under key, or "" when absent or of
// another type.
func (s *State) String(key string) string {
	v, _ := s.Metadata[key].(string)
	return v
}

// Int returns the int stored under key, or 0.
func (s *State) Int(key string) int {
	v, _ := s.Metadata[key].(int)
	return v
}

// Value returns the value stored under key as T. ok is false when the key is
// absent or holds another type.
func Value[T any](s *State, key string) (T, bool) {
	v, ok := s.Metadata[key].(T)
	return v, ok
}
