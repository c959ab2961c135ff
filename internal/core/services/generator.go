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

	"github.com/jaycherian/gcp-go-video-rag/internal/cloud"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// TextGenerator completes a text prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

type GeminiGenerator struct {
	caller geminiCaller
}

// NewGeminiGenerator wraps model. Token counters are named after name.
func NewGeminiGenerator(name string, model *cloud.QuotaAwareGenerativeAIModel, maxRetries int) *GeminiGenerator {
	return &GeminiGenerator{caller: newGeminiCaller(name, model, maxRetries)}
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.caller.generate(ctx, cloud.NewTextContent(prompt))
}

func (g *GeminiGenerator) ModelName() string { return g.caller.model.ModelName }

// OpenAIGenerator uses the chat completion endpoint with a single user
// message, preceded by the system instructions when configured.
type OpenAIGenerator struct {
	client  *openai.Client
	config  cloud.LLMModel
	limiter *rate.Limiter
}

func NewOpenAIGenerator(client *openai.Client, config cloud.LLMModel) *OpenAIGenerator {
	limit := rate.Inf
	burst := 1
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
		burst = config.RateLimit
	}
	return &OpenAIGenerator{client: client, config: config, limiter: rate.NewLimiter(limit, burst)}
}

// WithTemperature returns a copy sharing the client and rate limiter.
func (o *OpenAIGenerator) WithTemperature(temperature float32) *OpenAIGenerator {
	config := o.config
	config.Temperature = temperature
	return &OpenAIGenerator{client: o.client, config: config, limiter: o.limiter}
}

func (o *OpenAIGenerator) ModelName() string { return o.config.Model }

func (o *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", err
	}
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if o.config.SystemInstructions != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: o.config.SystemInstructions})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.config.Model,
		Messages:    messages,
		MaxTokens:   int(o.config.MaxTokens),
		Temperature: o.config.Temperature,
		TopP:        o.config.TopP,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
