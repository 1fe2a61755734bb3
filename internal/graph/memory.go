package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/discoursekg/discoursekg/internal/models"
)

// MemoryStore keeps the graph in process memory, with the same merge
// semantics as the Neo4j store. It backs the "memory" store setting and
// the test suite.
type MemoryStore struct {
	mu       sync.Mutex
	speakers map[string]SpeakerNode
	comms    map[string]CommunicationNode
	entities map[string]EntityNode
	mentions map[string]MentionNode
	subjects map[string]SubjectNode
	edges    map[string]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		speakers: make(map[string]SpeakerNode),
		comms:    make(map[string]CommunicationNode),
		entities: make(map[string]EntityNode),
		mentions: make(map[string]MentionNode),
		subjects: make(map[string]SubjectNode),
		edges:    make(map[string]struct{}),
	}
}

// Ping implements Store.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close implements Store.
func (s *MemoryStore) Close(context.Context) error { return nil }

// Upsert implements Store.
func (s *MemoryStore) Upsert(ctx context.Context, p *Payload) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &Stats{}

	s.countNode(stats, nodeKey("Speaker", p.Speaker.NameID))
	s.speakers[p.Speaker.NameID] = p.Speaker

	s.countNode(stats, nodeKey("Communication", p.Communication.ID))
	s.comms[p.Communication.ID] = p.Communication
	s.countEdge(stats, edgeKey("DELIVERED", p.Speaker.NameID, p.Communication.ID))

	for _, e := range p.Entities {
		s.upsertEntity(stats, e)
	}

	for _, m := range p.Mentions {
		mk := mentionKey(m.CommunicationID, m.EntityName, m.Topic)
		s.countNode(stats, nodeKey("Mention", mk))
		stored := m
		stored.Subjects = nil
		s.mentions[mk] = stored
		s.countEdge(stats, edgeKey("HAS_MENTION", m.CommunicationID, mk))
		s.countEdge(stats, edgeKey("REFERS_TO", mk, m.EntityName))

		for _, sub := range m.Subjects {
			sk := mk + "\x00" + sub.Key
			s.countNode(stats, nodeKey("Subject", sk))
			s.subjects[sk] = sub
			s.countEdge(stats, edgeKey("HAS_SUBJECT", mk, sub.Key))
		}
	}

	return stats, nil
}

func (s *MemoryStore) upsertEntity(stats *Stats, e EntityNode) {
	existing, ok := s.entities[e.CanonicalName]
	if !ok {
		stats.NodesCreated++
		s.entities[e.CanonicalName] = e
		return
	}
	stats.NodesMerged++
	if existing.EntityType != e.EntityType {
		stats.Warnings = append(stats.Warnings,
			fmt.Sprintf("entity %s keeps type %s, payload says %s", e.CanonicalName, existing.EntityType, e.EntityType))
	}
	// First-seen type wins; the display name refreshes.
	existing.Name = e.Name
	s.entities[e.CanonicalName] = existing
}

func (s *MemoryStore) countNode(stats *Stats, key string) {
	if s.nodeExists(key) {
		stats.NodesMerged++
		return
	}
	stats.NodesCreated++
}

func (s *MemoryStore) nodeExists(key string) bool {
	label, id, _ := strings.Cut(key, "\x00")
	switch label {
	case "Speaker":
		_, ok := s.speakers[id]
		return ok
	case "Communication":
		_, ok := s.comms[id]
		return ok
	case "Mention":
		_, ok := s.mentions[id]
		return ok
	case "Subject":
		_, ok := s.subjects[id]
		return ok
	}
	return false
}

func (s *MemoryStore) countEdge(stats *Stats, key string) {
	if _, ok := s.edges[key]; ok {
		return
	}
	s.edges[key] = struct{}{}
	stats.EdgesCreated++
}

func nodeKey(label, id string) string { return label + "\x00" + id }

func edgeKey(rel, from, to string) string { return rel + "\x00" + from + "\x00" + to }

func mentionKey(commID, entity string, topic models.Topic) string {
	return commID + "\x00" + entity + "\x00" + string(topic)
}

// Speaker returns a stored speaker node.
func (s *MemoryStore) Speaker(nameID string) (SpeakerNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.speakers[nameID]
	return node, ok
}

// Communication returns a stored communication node.
func (s *MemoryStore) Communication(id string) (CommunicationNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.comms[id]
	return node, ok
}

// Entity returns a stored entity node by canonical name.
func (s *MemoryStore) Entity(canonicalName string) (EntityNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.entities[canonicalName]
	return node, ok
}

// Mention returns a stored mention node by its natural key.
func (s *MemoryStore) Mention(commID, entityName string, topic models.Topic) (MentionNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.mentions[mentionKey(commID, entityName, topic)]
	return node, ok
}

// Subjects returns a mention's subjects ordered by key.
func (s *MemoryStore) Subjects(commID, entityName string, topic models.Topic) []SubjectNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := mentionKey(commID, entityName, topic) + "\x00"
	var out []SubjectNode
	for key, node := range s.subjects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, node)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

var _ Store = (*MemoryStore)(nil)
