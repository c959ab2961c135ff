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

package cloud

import (
	"context"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// QuotaAwareGenerativeAIModel pairs a generation config and model name with a
// rate limiter shared by every caller of the model.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig
	ModelName               string
	ModelHandle             *genai.Models
	RateLimit               *rate.Limiter
}

// NewQuotaAwareModel creates a model limited to requestsPerSecond. A value of
// zero or less leaves the model unlimited.
func NewQuotaAwareModel(config *genai.GenerateContentConfig, name string, handle *genai.Models, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	limit := rate.Inf
	burst := 1
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
		burst = requestsPerSecond
	}
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: config,
		ModelName:               name,
		ModelHandle:             handle,
		RateLimit:               rate.NewLimiter(limit, burst),
	}
}

// GenerateContent waits for a rate limit token and calls the model. The wait
// is abandoned when ctx is cancelled.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, err
	}
	return q.ModelHandle.GenerateContent(ctx, q.ModelName, content, q.GenerativeContentConfig)
}

// WithTemperature returns a copy of the model using temperature. The copy
// shares the rate limiter and model handle.
func (q *QuotaAwareGenerativeAIModel) WithTemperature(temperature float32) *QuotaAwareGenerativeAIModel {
	config := genai.GenerateContentConfig{}
	if q.GenerativeContentConfig != nil {
		config = *q.GenerativeContentConfig
	}
	config.Temperature = genai.Ptr[float32](temperature)
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: &config,
		ModelName:               q.ModelName,
		ModelHandle:             q.ModelHandle,
		RateLimit:               q.RateLimit,
	}
}

// NewGenerateContentConfig converts an LLMModel into a genai config.
func NewGenerateContentConfig(values LLMModel) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](values.Temperature),
		MaxOutputTokens:  values.MaxTokens,
		SafetySettings:   DefaultSafetySettings,
		ResponseMIMEType: values.OutputFormat,
	}
	if values.TopP > 0 {
		config.TopP = genai.Ptr[float32](values.TopP)
	}
	if values.TopK > 0 {
		config.TopK = genai.Ptr[float32](values.TopK)
	}
	if values.SystemInstructions != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}}
	}
	return config
}
