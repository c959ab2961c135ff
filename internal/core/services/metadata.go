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
)

// MetadataRepository stores one record per ingested video.
type MetadataRepository interface {
	Save(ctx context.Context, video *model.VideoMetadata) error
	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]*model.VideoMetadata, error)
}

const (
	qryPgCreateVideos = `CREATE TABLE IF NOT EXISTS %s (
	id                 TEXT PRIMARY KEY,
	title              TEXT NOT NULL,
	description        TEXT NOT NULL,
	video_uri          TEXT NOT NULL,
	transcript         TEXT NOT NULL,
	frame_descriptions TEXT[] NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL
)`
	qryPgInsertVideo = "INSERT INTO %s (id, title, description, video_uri, transcript, frame_descriptions, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)"
	qryPgListVideos  = "SELECT id, title, description, video_uri, transcript, frame_descriptions, created_at FROM %s ORDER BY created_at DESC LIMIT $1"
)

type PostgresMetadataRepository struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresMetadataRepository(ctx context.Context, pool *pgxpool.Pool, table string) (*PostgresMetadataRepository, error) {
	r := &PostgresMetadataRepository{pool: pool, table: pgx.Identifier{table}.Sanitize()}
	if _, err := pool.Exec(ctx, fmt.Sprintf(qryPgCreateVideos, r.table)); err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", r.table, err)
	}
	return r, nil
}

func (r *PostgresMetadataRepository) Save(ctx context.Context, v *model.VideoMetadata) error {
	_, err := r.pool.Exec(ctx, fmt.Sprintf(qryPgInsertVideo, r.table),
		v.ID, v.Title, v.Description, v.VideoURI, v.Transcript, v.FrameDescriptions, v.CreatedAt)
	return err
}

func (r *PostgresMetadataRepository) List(ctx context.Context, limit int) ([]*model.VideoMetadata, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(qryPgListVideos, r.table), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*model.VideoMetadata, 0)
	for rows.Next() {
		v := &model.VideoMetadata{}
		if err := rows.Scan(&v.ID, &v.Title, &v.Description, &v.VideoURI, &v.Transcript, &v.FrameDescriptions, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
