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
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// chunkRow is the BigQuery row of an indexed document.
type chunkRow struct {
	ID          string    `bigquery:"id"`
	Content     string    `bigquery:"content"`
	Type        string    `bigquery:"type"`
	StartTime   float64   `bigquery:"start_time"`
	EndTime     float64   `bigquery:"end_time"`
	VideoURI    string    `bigquery:"video_uri"`
	Title       string    `bigquery:"title"`
	Description string    `bigquery:"description"`
	Embedding   []float64 `bigquery:"embedding"`
	CreatedAt   time.Time `bigquery:"created_at"`
}

type chunkMatch struct {
	ID          string  `bigquery:"id"`
	Content     string  `bigquery:"content"`
	Type        string  `bigquery:"type"`
	StartTime   float64 `bigquery:"start_time"`
	EndTime     float64 `bigquery:"end_time"`
	VideoURI    string  `bigquery:"video_uri"`
	Title       string  `bigquery:"title"`
	Description string  `bigquery:"description"`
	Score       float64 `bigquery:"score"`
}

// BigQueryVectorIndex keeps documents in a BigQuery table and searches
// them with VECTOR_SEARCH. Streaming inserts are durable on return, so
// Persist has nothing to do.
type BigQueryVectorIndex struct {
	client   *bigquery.Client
	dataset  string
	table    string
	embedder Embedder
	workers  int
}

// NewBigQueryVectorIndex creates the chunk table when it does not exist.
func NewBigQueryVectorIndex(ctx context.Context, client *bigquery.Client, dataset string, table string, embedder Embedder, workers int) (*BigQueryVectorIndex, error) {
	idx := &BigQueryVectorIndex{client: client, dataset: dataset, table: table, embedder: embedder, workers: workers}
	if err := ensureTable(ctx, client.Dataset(dataset).Table(table), chunkRow{}); err != nil {
		return nil, err
	}
	return idx, nil
}

// ensureTable creates t with the schema inferred from row. An existing
// table is left alone.
func ensureTable(ctx context.Context, t *bigquery.Table, row any) error {
	schema, err := bigquery.InferSchema(row)
	if err != nil {
		return err
	}
	err = t.Create(ctx, &bigquery.TableMetadata{Schema: schema})
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", t.TableID, err)
	}
	return nil
}

// fqn returns the table name usable in standard SQL.
func fqn(client *bigquery.Client, dataset string, table string) string {
	return strings.Replace(client.Dataset(dataset).Table(table).FullyQualifiedName(), ":", ".", -1)
}

func (b *BigQueryVectorIndex) Add(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs, err := embedChunks(ctx, b.embedder, chunks, b.workers)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	rows := make([]*chunkRow, len(docs))
	for i, d := range docs {
		embedding := make([]float64, len(d.Embedding))
		for j, v := range d.Embedding {
			embedding[j] = float64(v)
		}
		rows[i] = &chunkRow{
			ID:          d.ID,
			Content:     d.Content,
			Type:        string(d.Metadata.Type),
			StartTime:   d.Metadata.StartTime,
			EndTime:     d.Metadata.EndTime,
			VideoURI:    d.Metadata.VideoURI,
			Title:       d.Metadata.Title,
			Description: d.Metadata.Description,
			Embedding:   embedding,
			// Microsecond offsets keep insertion order for equal distances.
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
		}
	}
	if err := b.client.Dataset(b.dataset).Table(b.table).Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

func (b *BigQueryVectorIndex) Persist(_ context.Context) error { return nil }

func (b *BigQueryVectorIndex) Search(ctx context.Context, query string, k int, filter model.Filter) ([]model.SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}
	vector, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	embedding := make([]float64, len(vector))
	for i, v := range vector {
		embedding[i] = float64(v)
	}

	contentType := bigquery.NullString{}
	if filter.Type != nil {
		contentType = bigquery.NullString{StringVal: string(*filter.Type), Valid: true}
	}
	title := bigquery.NullString{}
	if filter.Title != nil {
		title = bigquery.NullString{StringVal: *filter.Title, Valid: true}
	}

	q := b.client.Query(fmt.Sprintf(QryChunkVectorSearch, fqn(b.client, b.dataset, b.table), k))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "query", Value: embedding},
		{Name: "type", Value: contentType},
		{Name: "title", Value: title},
	}
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read from BigQuery: %w", err)
	}
	hits := make([]model.SearchHit, 0, k)
	for {
		var r chunkMatch
		err := itr.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate results: %w", err)
		}
		hits = append(hits, model.SearchHit{
			Document: model.IndexedDocument{
				ID:      r.ID,
				Content: r.Content,
				Metadata: model.DocumentMetadata{
					Type:        model.ContentType(r.Type),
					StartTime:   r.StartTime,
					EndTime:     r.EndTime,
					VideoURI:    r.VideoURI,
					Title:       r.Title,
					Description: r.Description,
				},
			},
			Score: r.Score,
		})
	}
	return hits, nil
}

func (b *BigQueryVectorIndex) Count(ctx context.Context) (int, error) {
	return countRows(ctx, b.client, fqn(b.client, b.dataset, b.table))
}

func countRows(ctx context.Context, client *bigquery.Client, table string) (int, error) {
	itr, err := client.Query(fmt.Sprintf(QryCountRows, table)).Read(ctx)
	if err != nil {
		return 0, err
	}
	var row struct {
		Total int64 `bigquery:"total"`
	}
	if err := itr.Next(&row); err != nil {
		return 0, err
	}
	return int(row.Total), nil
}
