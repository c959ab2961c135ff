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
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Embedder turns text into a vector. Implementations are safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Name identifies the model, so vectors of different models are never
	// mixed in a cache.
	Name() string
}

type embedJob struct {
	index int
	text  string
}

type embedResult struct {
	index  int
	vector []float32
	err    error
}

// EmbedAll embeds texts with a pool of workers and returns the vectors in
// input order. The first error cancels the remaining work.
func EmbedAll(ctx context.Context, embedder Embedder, texts []string, workers int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan embedJob, len(texts))
	results := make(chan embedResult, len(texts))
	var wg sync.WaitGroup
	for w := 0; w < min(workers, len(texts)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					results <- embedResult{index: job.index, err: ctx.Err()}
					continue
				}
				vector, err := embedder.Embed(ctx, job.text)
				if err != nil {
					cancel()
				}
				results <- embedResult{index: job.index, vector: vector, err: err}
			}
		}()
	}
	for i, t := range texts {
		jobs <- embedJob{index: i, text: t}
	}
	close(jobs)
	wg.Wait()
	close(results)

	vectors := make([][]float32, len(texts))
	var firstErr error
	for r := range results {
		if r.err != nil {
			if firstErr == nil || (errors.Is(firstErr, context.Canceled) && !errors.Is(r.err, context.Canceled)) {
				firstErr = r.err
			}
			continue
		}
		vectors[r.index] = r.vector
	}
	if firstErr != nil {
		return nil, fmt.Errorf("failed to embed texts: %w", firstErr)
	}
	return vectors, nil
}

func newPerMinuteLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
}

// VertexEmbedder calls a Vertex AI text embedding model.
type VertexEmbedder struct {
	models     *genai.Models
	model      string
	dimensions int32
	limiter    *rate.Limiter
}

func NewVertexEmbedder(models *genai.Models, model string, dimensions int, requestsPerMinute int) *VertexEmbedder {
	return &VertexEmbedder{models: models, model: model, dimensions: int32(dimensions), limiter: newPerMinuteLimiter(requestsPerMinute)}
}

func (v *VertexEmbedder) Name() string { return "vertex/" + v.model }

func (v *VertexEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var config *genai.EmbedContentConfig
	if v.dimensions > 0 {
		config = &genai.EmbedContentConfig{OutputDimensionality: &v.dimensions}
	}
	resp, err := v.models.EmbedContent(ctx, v.model, []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, config)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, errors.New("embedding response is empty")
	}
	return resp.Embeddings[0].Values, nil
}

// OpenAIEmbedder calls an OpenAI compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	limiter    *rate.Limiter
}

func NewOpenAIEmbedder(client *openai.Client, model string, dimensions int, requestsPerMinute int) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client, model: model, dimensions: dimensions, limiter: newPerMinuteLimiter(requestsPerMinute)}
}

func (o *OpenAIEmbedder) Name() string { return "openai/" + o.model }

func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(o.model),
		Input:      []string{text},
		Dimensions: o.dimensions,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding response is empty")
	}
	return resp.Data[0].Embedding, nil
}

// CachedEmbedder keeps vectors in redis keyed by model name and the SHA-256
// of the text. Cache failures are logged and fall through to the model.
type CachedEmbedder struct {
	next   Embedder
	client *redis.Client
	ttl    time.Duration
}

func NewCachedEmbedder(next Embedder, client *redis.Client, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{next: next, client: client, ttl: ttl}
}

func (c *CachedEmbedder) Name() string { return c.next.Name() }

// CacheKey is the redis key of the vector of text under model.
func CacheKey(model string, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + model + ":" + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(c.next.Name(), text)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if vector, ok := DecodeVector(raw); ok {
			return vector, nil
		}
	case !errors.Is(err, redis.Nil):
		slog.WarnContext(ctx, "embedding cache read failed", "error", err)
	}

	vector, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, EncodeVector(vector), c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "embedding cache write failed", "error", err)
	}
	return vector, nil
}

// EncodeVector packs a vector as little-endian float32 values.
func EncodeVector(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(f))
	}
	return out
}

// DecodeVector reverses EncodeVector.
func DecodeVector(raw []byte) ([]float32, bool) {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, false
	}
	v := make([]float32, len(raw)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return v, true
}
