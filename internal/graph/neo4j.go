package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jconfig "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
)

// Neo4jConfig configures the Neo4j-backed store.
type Neo4jConfig struct {
	URL      string
	User     string
	Password string
	// Database is the target database; empty selects the server default.
	Database string
	// PoolSize bounds concurrent connections. Zero keeps the driver
	// default.
	PoolSize int
}

// Neo4jStore is a Store backed by a Neo4j server. Each Upsert runs in
// one write transaction so an item lands atomically.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger

	mu    sync.Mutex
	ready bool
}

// NewNeo4jStore connects a store. The connection is lazy; use Ping to
// verify reachability.
func NewNeo4jStore(cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URL, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4jconfig.Config) {
		if cfg.PoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.PoolSize
		}
	})
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	return &Neo4jStore{
		driver:   driver,
		database: cfg.Database,
		logger:   slog.Default(),
	}, nil
}

// WithLogger sets the logger.
func (s *Neo4jStore) WithLogger(logger *slog.Logger) *Neo4jStore {
	s.logger = logger.With("component", "neo4j")
	return s
}

// Ping implements Store.
func (s *Neo4jStore) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Close implements Store.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

var constraintStatements = []string{
	"CREATE CONSTRAINT speaker_name_id IF NOT EXISTS FOR (s:Speaker) REQUIRE s.name_id IS UNIQUE",
	"CREATE CONSTRAINT communication_id IF NOT EXISTS FOR (c:Communication) REQUIRE c.id IS UNIQUE",
	"CREATE CONSTRAINT entity_canonical_name IF NOT EXISTS FOR (e:Entity) REQUIRE e.canonical_name IS UNIQUE",
}

// ensureConstraints creates the uniqueness constraints once per store.
// Failures are logged, not fatal; a server without schema privileges
// still accepts the data load.
func (s *Neo4jStore) ensureConstraints(ctx context.Context, session neo4j.SessionWithContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return
	}
	for _, stmt := range constraintStatements {
		result, err := session.Run(ctx, stmt, nil)
		if err == nil {
			_, err = result.Consume(ctx)
		}
		if err != nil {
			s.logger.Debug("constraint setup skipped", slog.String("error", err.Error()))
		}
	}
	s.ready = true
}

// Upsert implements Store.
func (s *Neo4jStore) Upsert(ctx context.Context, p *Payload) (*Stats, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	s.ensureConstraints(ctx, session)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return s.load(ctx, tx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j upsert for %s: %w", p.Communication.ID, err)
	}

	stats := out.(*Stats)
	s.logger.Debug("item loaded",
		slog.String("item", p.Communication.ID),
		slog.Int("nodes_created", stats.NodesCreated),
		slog.Int("nodes_merged", stats.NodesMerged),
		slog.Int("edges_created", stats.EdgesCreated),
	)
	return stats, nil
}

const speakerQuery = `
MERGE (s:Speaker {name_id: $name_id})
SET s.name = $display_name,
    s.display_name = $display_name,
    s.role = $role,
    s.organization = $organization,
    s.industry = $industry,
    s.region = $region,
    s.date_of_birth = $date_of_birth,
    s.bio = $bio,
    s.influence_score = $influence_score`

const communicationQuery = `
MATCH (sp:Speaker {name_id: $speaker_name_id})
MERGE (c:Communication {id: $id})
SET c.name = $title,
    c.title = $title,
    c.content_type = $content_type,
    c.content_date = $content_date,
    c.source_url = $source_url,
    c.full_text = $full_text,
    c.word_count = $word_count,
    c.was_summarized = $was_summarized,
    c.compression_ratio = $compression_ratio
MERGE (sp)-[:DELIVERED]->(c)`

const entityQuery = `
MERGE (e:Entity {canonical_name: $canonical_name})
ON CREATE SET e.entity_type = $entity_type
SET e.name = $name
RETURN e.entity_type AS entity_type`

const mentionQuery = `
MATCH (c:Communication {id: $comm_id})
MATCH (e:Entity {canonical_name: $entity_name})
MERGE (c)-[:HAS_MENTION]->(m:Mention {comm_id: $comm_id, entity_name: $entity_name, topic: $topic})
MERGE (m)-[:REFERS_TO]->(e)
SET m.name = $topic,
    m.context = $context,
    m.aggregated_sentiment = $aggregated_sentiment`

const subjectQuery = `
MATCH (m:Mention {comm_id: $comm_id, entity_name: $entity_name, topic: $topic})
MERGE (m)-[:HAS_SUBJECT]->(s:Subject {comm_id: $comm_id, entity_name: $entity_name, topic: $topic, subject_key: $subject_key})
SET s.name = $subject_name,
    s.subject_name = $subject_name,
    s.sentiment = $sentiment,
    s.quotes = $quotes`

func (s *Neo4jStore) load(ctx context.Context, tx neo4j.ManagedTransaction, p *Payload) (*Stats, error) {
	stats := &Stats{}

	err := s.runCounted(ctx, tx, stats, 1, speakerQuery, map[string]any{
		"name_id":         p.Speaker.NameID,
		"display_name":    p.Speaker.DisplayName,
		"role":            p.Speaker.Role,
		"organization":    p.Speaker.Organization,
		"industry":        p.Speaker.Industry,
		"region":          p.Speaker.Region,
		"date_of_birth":   p.Speaker.DateOfBirth,
		"bio":             p.Speaker.Bio,
		"influence_score": nullableFloat(p.Speaker.InfluenceScore),
	})
	if err != nil {
		return nil, fmt.Errorf("speaker node: %w", err)
	}

	comm := p.Communication
	err = s.runCounted(ctx, tx, stats, 1, communicationQuery, map[string]any{
		"speaker_name_id":   p.Speaker.NameID,
		"id":                comm.ID,
		"title":             comm.Title,
		"content_type":      comm.ContentType,
		"content_date":      comm.ContentDate,
		"source_url":        comm.SourceURL,
		"full_text":         comm.FullText,
		"word_count":        comm.WordCount,
		"was_summarized":    comm.WasSummarized,
		"compression_ratio": nullableFloat(comm.CompressionRatio),
	})
	if err != nil {
		return nil, fmt.Errorf("communication node: %w", err)
	}

	for _, e := range p.Entities {
		if err := s.upsertEntity(ctx, tx, stats, e); err != nil {
			return nil, fmt.Errorf("entity %s: %w", e.CanonicalName, err)
		}
	}

	for _, m := range p.Mentions {
		err := s.runCounted(ctx, tx, stats, 1, mentionQuery, map[string]any{
			"comm_id":              m.CommunicationID,
			"entity_name":          m.EntityName,
			"topic":                string(m.Topic),
			"context":              m.Context,
			"aggregated_sentiment": m.AggregatedSentiment,
		})
		if err != nil {
			return nil, fmt.Errorf("mention %s/%s: %w", m.EntityName, m.Topic, err)
		}

		for _, sub := range m.Subjects {
			err := s.runCounted(ctx, tx, stats, 1, subjectQuery, map[string]any{
				"comm_id":      m.CommunicationID,
				"entity_name":  m.EntityName,
				"topic":        string(m.Topic),
				"subject_key":  sub.Key,
				"subject_name": sub.SubjectName,
				"sentiment":    string(sub.Sentiment),
				"quotes":       stringList(sub.Quotes),
			})
			if err != nil {
				return nil, fmt.Errorf("subject %s under %s/%s: %w", sub.Key, m.EntityName, m.Topic, err)
			}
		}
	}

	return stats, nil
}

// runCounted executes one write statement and folds its counters into
// stats. nodes is how many node merges the statement performs.
func (s *Neo4jStore) runCounted(ctx context.Context, tx neo4j.ManagedTransaction, stats *Stats, nodes int, query string, params map[string]any) error {
	result, err := tx.Run(ctx, query, params)
	if err != nil {
		return err
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return err
	}
	created := summary.Counters().NodesCreated()
	stats.NodesCreated += created
	stats.NodesMerged += nodes - created
	stats.EdgesCreated += summary.Counters().RelationshipsCreated()
	return nil
}

// upsertEntity merges the entity and keeps the stored type when it
// disagrees with the payload, recording a warning.
func (s *Neo4jStore) upsertEntity(ctx context.Context, tx neo4j.ManagedTransaction, stats *Stats, e EntityNode) error {
	result, err := tx.Run(ctx, entityQuery, map[string]any{
		"canonical_name": e.CanonicalName,
		"entity_type":    string(e.EntityType),
		"name":           e.Name,
	})
	if err != nil {
		return err
	}
	record, err := result.Single(ctx)
	if err != nil {
		return err
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return err
	}

	created := summary.Counters().NodesCreated()
	stats.NodesCreated += created
	stats.NodesMerged += 1 - created
	stats.EdgesCreated += summary.Counters().RelationshipsCreated()

	if stored, ok := record.Get("entity_type"); ok {
		if storedType, ok := stored.(string); ok && storedType != string(e.EntityType) {
			warning := fmt.Sprintf("entity %s keeps type %s, payload says %s", e.CanonicalName, storedType, e.EntityType)
			stats.Warnings = append(stats.Warnings, warning)
			s.logger.Warn("entity type conflict",
				slog.String("entity", e.CanonicalName),
				slog.String("stored", storedType),
				slog.String("payload", string(e.EntityType)),
			)
		}
	}
	return nil
}

func nullableFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func stringList(xs []string) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

var _ Store = (*Neo4jStore)(nil)
