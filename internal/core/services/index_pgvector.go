// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
	"github.com/pgvector/pgvector-go"
)

const (
	qryPgCreateExtension = "CREATE EXTENSION IF NOT EXISTS vector"
	qryPgCreateChunks    = `CREATE TABLE IF NOT EXISTS %s (
	seq         BIGSERIAL PRIMARY KEY,
	id          TEXT NOT NULL,
	content     TEXT NOT NULL,
	type        TEXT NOT NULL,
	start_time  DOUBLE PRECISION NOT NULL,
	end_time    DOUBLE PRECISION NOT NULL,
	video_uri   TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL,
	embedding   %s NOT NULL
)`
	qryPgInsertChunk = "INSERT INTO %s (id, content, type, start_time, end_time, video_uri, title, description, embedding) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)"
	qryPgSearch      = `SELECT id, content, type, start_time, end_time, video_uri, title, description, 1 - (embedding <=> $1) AS similarity
FROM %s
WHERE ($2::text IS NULL OR type = $2) AND ($3::text IS NULL OR title = $3)
ORDER BY embedding <=> $1, seq
LIMIT $4`
	qryPgCount = "SELECT COUNT(*) FROM %s"
)

// PgVectorIndex stores documents in a Postgres table with a pgvector
// column. Writes are committed by Add, so Persist has nothing to do.
type PgVectorIndex struct {
	pool     *pgxpool.Pool
	table    string
	embedder Embedder
	workers  int
}

// NewPgVectorIndex creates the extension and the collection table when
// missing. A positive dimensions fixes the column type to vector(n).
func NewPgVectorIndex(ctx context.Context, pool *pgxpool.Pool, collection string, dimensions int, embedder Embedder, workers int) (*PgVectorIndex, error) {
	idx := &PgVectorIndex{
		pool:     pool,
		table:    pgx.Identifier{collection}.Sanitize(),
		embedder: embedder,
		workers:  workers,
	}
	column := "vector"
	if dimensions > 0 {
		column = fmt.Sprintf("vector(%d)", dimensions)
	}
	if _, err := pool.Exec(ctx, qryPgCreateExtension); err != nil {
		return nil, fmt.Errorf("failed to enable pgvector: %w", err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(qryPgCreateChunks, idx.table, column)); err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", idx.table, err)
	}
	return idx, nil
}

func (p *PgVectorIndex) Add(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs, err := embedChunks(ctx, p.embedder, chunks, p.workers)
	if err != nil {
		return err
	}
	insert := fmt.Sprintf(qryPgInsertChunk, p.table)
	batch := &pgx.Batch{}
	for _, d := range docs {
		m := d.Metadata
		batch.Queue(insert, d.ID, d.Content, string(m.Type), m.StartTime, m.EndTime, m.VideoURI, m.Title, m.Description, pgvector.NewVector(d.Embedding))
	}
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (p *PgVectorIndex) Persist(_ context.Context) error { return nil }

func (p *PgVectorIndex) Search(ctx context.Context, query string, k int, filter model.Filter) ([]model.SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}
	vector, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	var contentType *string
	if filter.Type != nil {
		t := string(*filter.Type)
		contentType = &t
	}
	rows, err := p.pool.Query(ctx, fmt.Sprintf(qryPgSearch, p.table), pgvector.NewVector(vector), contentType, filter.Title, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", p.table, err)
	}
	defer rows.Close()

	hits := make([]model.SearchHit, 0, k)
	for rows.Next() {
		var hit model.SearchHit
		var contentTypeValue string
		m := &hit.Document.Metadata
		if err := rows.Scan(&hit.Document.ID, &hit.Document.Content, &contentTypeValue, &m.StartTime, &m.EndTime, &m.VideoURI, &m.Title, &m.Description, &hit.Score); err != nil {
			return nil, err
		}
		m.Type = model.ContentType(contentTypeValue)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (p *PgVectorIndex) Count(ctx context.Context) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx, fmt.Sprintf(qryPgCount, p.table)).Scan(&count)
	return count, err
}
