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
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
	milvus "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	milvusVectorField  = "vector"
	milvusTextLength   = 8192
	milvusSearchEf     = 74
	milvusShardsNumber = 2
)

var milvusOutputFields = []string{"id", "content", "type", "start_time", "end_time", "video_uri", "title", "description"}

// MilvusVectorIndex stores documents in a Milvus collection with an HNSW
// cosine index.
type MilvusVectorIndex struct {
	client     milvus.Client
	collection string
	dimensions int
	embedder   Embedder
	workers    int
}

// NewMilvusVectorIndex creates and indexes the collection when missing
// and loads it for search.
func NewMilvusVectorIndex(ctx context.Context, client milvus.Client, collection string, dimensions int, embedder Embedder, workers int) (*MilvusVectorIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("milvus collection %s needs the embedding dimensions", collection)
	}
	idx := &MilvusVectorIndex{client: client, collection: collection, dimensions: dimensions, embedder: embedder, workers: workers}
	has, err := client.HasCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !has {
		if err := idx.createCollection(ctx); err != nil {
			return nil, err
		}
	}
	if err := client.LoadCollection(ctx, collection, false); err != nil {
		return nil, fmt.Errorf("failed to load collection %s: %w", collection, err)
	}
	return idx, nil
}

func (m *MilvusVectorIndex) createCollection(ctx context.Context) error {
	varchar := func(name string, length int64) *entity.Field {
		return entity.NewField().WithName(name).WithDataType(entity.FieldTypeVarChar).WithMaxLength(length)
	}
	schema := entity.NewSchema().WithName(m.collection).WithDescription("video chunks").
		WithField(varchar("id", 64).WithIsPrimaryKey(true)).
		WithField(varchar("content", milvusTextLength)).
		WithField(varchar("type", 32)).
		WithField(entity.NewField().WithName("start_time").WithDataType(entity.FieldTypeDouble)).
		WithField(entity.NewField().WithName("end_time").WithDataType(entity.FieldTypeDouble)).
		WithField(varchar("video_uri", 2048)).
		WithField(varchar("title", 512)).
		WithField(varchar("description", milvusTextLength)).
		WithField(entity.NewField().WithName(milvusVectorField).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(m.dimensions)))
	if err := m.client.CreateCollection(ctx, schema, milvusShardsNumber); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", m.collection, err)
	}
	index, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return err
	}
	if err := m.client.CreateIndex(ctx, m.collection, milvusVectorField, index, false); err != nil {
		return fmt.Errorf("failed to index collection %s: %w", m.collection, err)
	}
	return nil
}

// MilvusFilterExpression renders filter as a Milvus boolean expression.
func MilvusFilterExpression(filter model.Filter) string {
	var terms []string
	if filter.Type != nil {
		terms = append(terms, "type == "+strconv.Quote(string(*filter.Type)))
	}
	if filter.Title != nil {
		terms = append(terms, "title == "+strconv.Quote(*filter.Title))
	}
	return strings.Join(terms, " && ")
}

// truncateUTF8 cuts s to at most limit bytes on a rune boundary.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	end := 0
	for i := range s {
		if i > limit {
			break
		}
		end = i
	}
	return s[:end]
}

func (m *MilvusVectorIndex) Add(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs, err := embedChunks(ctx, m.embedder, chunks, m.workers)
	if err != nil {
		return err
	}
	n := len(docs)
	ids, contents, types := make([]string, n), make([]string, n), make([]string, n)
	uris, titles, descriptions := make([]string, n), make([]string, n), make([]string, n)
	starts, ends := make([]float64, n), make([]float64, n)
	vectors := make([][]float32, n)
	for i, d := range docs {
		ids[i] = d.ID
		contents[i] = truncateUTF8(d.Content, milvusTextLength)
		types[i] = string(d.Metadata.Type)
		starts[i] = d.Metadata.StartTime
		ends[i] = d.Metadata.EndTime
		uris[i] = d.Metadata.VideoURI
		titles[i] = d.Metadata.Title
		descriptions[i] = truncateUTF8(d.Metadata.Description, milvusTextLength)
		vectors[i] = d.Embedding
	}
	_, err = m.client.Insert(ctx, m.collection, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnVarChar("type", types),
		entity.NewColumnDouble("start_time", starts),
		entity.NewColumnDouble("end_time", ends),
		entity.NewColumnVarChar("video_uri", uris),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("description", descriptions),
		entity.NewColumnFloatVector(milvusVectorField, m.dimensions, vectors),
	)
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", m.collection, err)
	}
	return nil
}

func (m *MilvusVectorIndex) Persist(ctx context.Context) error {
	return m.client.Flush(ctx, m.collection, false)
}

func (m *MilvusVectorIndex) Search(ctx context.Context, query string, k int, filter model.Filter) ([]model.SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}
	vector, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	params, err := entity.NewIndexHNSWSearchParam(milvusSearchEf)
	if err != nil {
		return nil, err
	}
	results, err := m.client.Search(ctx, m.collection, []string{}, MilvusFilterExpression(filter), milvusOutputFields,
		[]entity.Vector{entity.FloatVector(vector)}, milvusVectorField, entity.COSINE, k, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", m.collection, err)
	}

	hits := make([]model.SearchHit, 0, k)
	for _, r := range results {
		columns := map[string]entity.Column{}
		for _, c := range r.Fields {
			columns[c.Name()] = c
		}
		text := func(name string, i int) string {
			if c, ok := columns[name].(*entity.ColumnVarChar); ok && i < c.Len() {
				return c.Data()[i]
			}
			return ""
		}
		number := func(name string, i int) float64 {
			if c, ok := columns[name].(*entity.ColumnDouble); ok && i < c.Len() {
				return c.Data()[i]
			}
			return 0
		}
		for i := 0; i < r.ResultCount; i++ {
			hits = append(hits, model.SearchHit{
				Document: model.IndexedDocument{
					ID:      text("id", i),
					Content: text("content", i),
					Metadata: model.DocumentMetadata{
						Type:        model.ContentType(text("type", i)),
						StartTime:   number("start_time", i),
						EndTime:     number("end_time", i),
						VideoURI:    text("video_uri", i),
						Title:       text("title", i),
						Description: text("description", i),
					},
				},
				Score: float64(r.Scores[i]),
			})
		}
	}
	return hits, nil
}

func (m *MilvusVectorIndex) Count(ctx context.Context) (int, error) {
	stats, err := m.client.GetCollectionStatistics(ctx, m.collection)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(stats["row_count"])
}
