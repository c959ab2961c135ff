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
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
)

// VectorIndex stores embedded chunks and answers similarity queries.
// Documents are only ever appended; ingesting a video twice stores its
// chunks twice.
type VectorIndex interface {
	Add(ctx context.Context, chunks []model.Chunk) error
	// Persist makes previously added documents durable.
	Persist(ctx context.Context) error
	// Search returns at most k hits matching filter, most similar first.
	Search(ctx context.Context, query string, k int, filter model.Filter) ([]model.SearchHit, error)
	Count(ctx context.Context) (int, error)
}

// embedChunks turns chunks into indexed documents carrying their vectors.
func embedChunks(ctx context.Context, embedder Embedder, chunks []model.Chunk, workers int) ([]model.IndexedDocument, error) {
	docs := make([]model.IndexedDocument, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		docs[i] = model.NewIndexedDocument(c)
		texts[i] = docs[i].Content
	}
	vectors, err := EmbedAll(ctx, embedder, texts, workers)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].Embedding = vectors[i]
	}
	return docs, nil
}

// CosineSimilarity returns 0 when either vector has no magnitude or the
// lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// LocalVectorIndex keeps a collection in memory and persists it as JSON
// at <dir>/<collection>.json.
type LocalVectorIndex struct {
	path     string
	embedder Embedder
	workers  int

	mu   sync.RWMutex
	docs []model.IndexedDocument

	// persistMu orders snapshots so the file always holds the newest one.
	persistMu sync.Mutex
}

// NewLocalVectorIndex opens the named collection, loading what was
// persisted earlier.
func NewLocalVectorIndex(dir string, collection string, embedder Embedder, workers int) (*LocalVectorIndex, error) {
	idx := &LocalVectorIndex{
		path:     filepath.Join(dir, collection+".json"),
		embedder: embedder,
		workers:  workers,
	}
	raw, err := os.ReadFile(idx.path)
	switch {
	case os.IsNotExist(err):
		return idx, nil
	case err != nil:
		return nil, err
	}
	if err := json.Unmarshal(raw, &idx.docs); err != nil {
		return nil, fmt.Errorf("failed to load collection %s: %w", idx.path, err)
	}
	return idx, nil
}

func (l *LocalVectorIndex) Add(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs, err := embedChunks(ctx, l.embedder, chunks, l.workers)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.docs = append(l.docs, docs...)
	l.mu.Unlock()
	return nil
}

// Persist writes a snapshot of the collection to a private temporary file
// and renames it over the collection file.
func (l *LocalVectorIndex) Persist(_ context.Context) error {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	l.mu.RLock()
	raw, err := json.Marshal(l.docs)
	l.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (l *LocalVectorIndex) Search(ctx context.Context, query string, k int, filter model.Filter) ([]model.SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}
	vector, err := l.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	l.mu.RLock()
	hits := make([]model.SearchHit, 0, len(l.docs))
	for _, d := range l.docs {
		if !filter.Matches(d.Metadata) {
			continue
		}
		hits = append(hits, model.SearchHit{Document: d, Score: CosineSimilarity(vector, d.Embedding)})
	}
	l.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	for i := range hits {
		hits[i].Document.Embedding = nil
	}
	return hits, nil
}

func (l *LocalVectorIndex) Count(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.docs), nil
}
