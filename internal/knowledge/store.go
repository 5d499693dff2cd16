package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
)

// Passage is a retrieved knowledge-base entry
type Passage struct {
	Title string
	Text  string
}

// Store retrieves knowledge passages via vector similarity search
type Store struct {
	pool *pgxpool.Pool
}

// New creates a knowledge store. A nil pool is allowed; searches then return
// no passages, which the lookup layer renders as an empty knowledge section.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Search returns the topK passages nearest to the query embedding
func (s *Store) Search(ctx context.Context, embedding []float32, topK int) ([]Passage, error) {
	if s == nil || s.pool == nil {
		log.Debug().Msg("Knowledge store not provisioned")
		return nil, nil
	}
	if topK <= 0 {
		topK = 2
	}

	vec := pgvector.NewVector(embedding)

	query := `
		SELECT title, text
		FROM knowledge_base
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge base: %w", err)
	}
	defer rows.Close()

	var passages []Passage
	for rows.Next() {
		var p Passage
		if err := rows.Scan(&p.Title, &p.Text); err != nil {
			return nil, fmt.Errorf("failed to scan passage: %w", err)
		}
		passages = append(passages, p)
	}

	log.Debug().
		Int("count", len(passages)).
		Int("top_k", topK).
		Msg("Knowledge search completed")

	return passages, rows.Err()
}
