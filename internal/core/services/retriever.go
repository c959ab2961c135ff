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
	"strings"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
)

// Retrieval is the outcome of a retrieval: the hits and the context block
// built from them.
type Retrieval struct {
	Intent  model.ContentType
	Hits    []model.SearchHit
	Context string
}

// Retriever searches the index for one content type. Classification happens
// upstream, in the query chain.
type Retriever struct {
	index   VectorIndex
	maxTopK int
}

func NewRetriever(index VectorIndex, maxTopK int) *Retriever {
	if maxTopK < 1 {
		maxTopK = 10
	}
	return &Retriever{index: index, maxTopK: maxTopK}
}

// ClampTopK keeps k within 1..limit.
func ClampTopK(k int, limit int) int {
	if k < 1 {
		return 1
	}
	if k > limit {
		return limit
	}
	return k
}

// NewFilter restricts to contentType and, when title is non-empty, to
// that title.
func NewFilter(contentType model.ContentType, title *string) model.Filter {
	filter := model.Filter{Type: &contentType}
	if title != nil && *title != "" {
		t := *title
		filter.Title = &t
	}
	return filter
}

// RetrieveByType returns the topK hits of contentType, optionally restricted
// to one title. topK is clamped to 1..maxTopK.
func (r *Retriever) RetrieveByType(ctx context.Context, question string, contentType model.ContentType, topK int, title *string) ([]model.SearchHit, error) {
	hits, err := r.index.Search(ctx, question, ClampTopK(topK, r.maxTopK), NewFilter(contentType, title))
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	return hits, nil
}

// FormatContext renders hits as numbered blocks separated by a blank line.
func FormatContext(hits []model.SearchHit) string {
	blocks := make([]string, 0, len(hits))
	for i, h := range hits {
		m := h.Document.Metadata
		blocks = append(blocks, fmt.Sprintf("Chunk %d:\nContent: %s\nType: %s\nStart Time: %v\nEnd Time: %v\nVideo URI: %s\nRelevance Score: %v",
			i+1, h.Document.Content, m.Type, m.StartTime, m.EndTime, m.VideoURI, h.Score))
	}
	return strings.Join(blocks, "\n\n")
}
