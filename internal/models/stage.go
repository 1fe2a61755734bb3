// Package models defines the persisted domain types for discoursekg:
// pipeline state records, per-stage artifacts, and the speaker registry.
package models

import "fmt"

// Stage identifies one step of the fixed processing sequence.
type Stage string

const (
	// StageDiscover finds new communications for a speaker and creates items.
	StageDiscover Stage = "discover"
	// StageScrape extracts the full transcript text from the source URL.
	StageScrape Stage = "scrape"
	// StageSummarize condenses the transcript toward a word budget.
	StageSummarize Stage = "summarize"
	// StageCategorize extracts entities, topics, and subject sentiment.
	StageCategorize Stage = "categorize"
	// StageGraph upserts the item into the knowledge graph.
	StageGraph Stage = "graph"
)

// StageSequence is the static order items advance through. An item whose
// next stage is empty has completed the sequence.
var StageSequence = []Stage{
	StageDiscover,
	StageScrape,
	StageSummarize,
	StageCategorize,
	StageGraph,
}

// ParseStage converts a string to a Stage, rejecting unknown names.
func ParseStage(s string) (Stage, error) {
	stage := Stage(s)
	if !stage.Valid() {
		return "", fmt.Errorf("unknown stage: %q", s)
	}
	return stage, nil
}

// Valid reports whether the stage is part of the sequence.
func (s Stage) Valid() bool {
	switch s {
	case StageDiscover, StageScrape, StageSummarize, StageCategorize, StageGraph:
		return true
	}
	return false
}

// Index returns the stage's position in the sequence, or -1 if unknown.
func (s Stage) Index() int {
	for i, stage := range StageSequence {
		if stage == s {
			return i
		}
	}
	return -1
}

// Next returns the stage that follows s. The second return is false when
// s is the final stage or is not part of the sequence.
func (s Stage) Next() (Stage, bool) {
	i := s.Index()
	if i < 0 || i+1 >= len(StageSequence) {
		return "", false
	}
	return StageSequence[i+1], true
}

// String returns the stage name.
func (s Stage) String() string {
	return string(s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, rejecting unknown names.
func (s *Stage) UnmarshalText(text []byte) error {
	stage, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = stage
	return nil
}
