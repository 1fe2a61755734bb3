// Package graph assembles a communication's extracted discourse into
// typed nodes and edges and upserts them into a graph store. Every node
// carries a natural key and every upsert merges on it, so loading the
// same item twice converges instead of duplicating.
package graph

import (
	"context"

	"github.com/discoursekg/discoursekg/internal/models"
)

// SpeakerNode is the person who delivered a communication. Keyed by
// the registry name.
type SpeakerNode struct {
	NameID         string
	DisplayName    string
	Role           string
	Organization   string
	Industry       string
	Region         string
	DateOfBirth    string
	Bio            string
	InfluenceScore *float64
}

// CommunicationNode is one speech, interview or debate. Keyed by the
// pipeline item ID.
type CommunicationNode struct {
	ID               string
	Title            string
	ContentType      string
	ContentDate      string
	SourceURL        string
	FullText         string
	WordCount        int
	WasSummarized    bool
	CompressionRatio *float64
}

// EntityNode is something the speaker talked about. Keyed by the
// case-folded canonical name; Name keeps the surface form for display.
type EntityNode struct {
	CanonicalName string
	Name          string
	EntityType    models.EntityType
}

// MentionNode files one entity under one topic within one
// communication. Keyed by (CommunicationID, EntityName, Topic).
// AggregatedSentiment is a JSON object of per-sentiment counts and
// proportions over the mention's subjects.
type MentionNode struct {
	CommunicationID     string
	EntityName          string
	Topic               models.Topic
	Context             string
	AggregatedSentiment string
	Subjects            []SubjectNode
}

// SubjectNode is one specific matter discussed within a mention. Key
// is the case-folded subject name, scoped to the parent mention.
type SubjectNode struct {
	Key         string
	SubjectName string
	Sentiment   models.Sentiment
	Quotes      []string
}

// Payload is the full node set for one communication, ready to upsert.
// Edges are implied: Speaker delivers the Communication, the
// Communication has every Mention, each Mention refers to its Entity
// and has its Subjects.
type Payload struct {
	Speaker       SpeakerNode
	Communication CommunicationNode
	Entities      []EntityNode
	Mentions      []MentionNode
}

// MentionCount returns the number of mentions in the payload.
func (p *Payload) MentionCount() int { return len(p.Mentions) }

// SubjectCount returns the number of subjects across all mentions.
func (p *Payload) SubjectCount() int {
	n := 0
	for _, m := range p.Mentions {
		n += len(m.Subjects)
	}
	return n
}

// Stats summarizes one upsert batch. Merged counts nodes that already
// existed and had their attributes refreshed.
type Stats struct {
	NodesCreated int
	NodesMerged  int
	EdgesCreated int
	Warnings     []string
}

// Store upserts payloads into a graph backend.
type Store interface {
	// Upsert merges every node and edge of the payload on its natural
	// key. Non-key attributes overwrite, except an existing entity's
	// type, which is kept with a warning when the payload disagrees.
	Upsert(ctx context.Context, p *Payload) (*Stats, error)
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases the backend connection.
	Close(ctx context.Context) error
}
