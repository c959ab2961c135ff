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
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/jaycherian/gcp-go-video-rag/internal/cloud"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/cor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

// geminiCaller sends prompts to a Vertex AI model and records token usage
// under "<name>.gemini.*" counters.
type geminiCaller struct {
	model        *cloud.QuotaAwareGenerativeAIModel
	maxRetries   int
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	retryCounter metric.Int64Counter
}

func newGeminiCaller(name string, model *cloud.QuotaAwareGenerativeAIModel, maxRetries int) geminiCaller {
	meter := otel.Meter(cor.MeterName)
	c := geminiCaller{model: model, maxRetries: maxRetries}
	c.inputTokens, _ = meter.Int64Counter(fmt.Sprintf("%s.gemini.token.input", name))
	c.outputTokens, _ = meter.Int64Counter(fmt.Sprintf("%s.gemini.token.output", name))
	c.retryCounter, _ = meter.Int64Counter(fmt.Sprintf("%s.gemini.retry", name))
	return c
}

func (g geminiCaller) generate(ctx context.Context, contents []*genai.Content) (string, error) {
	return cloud.GenerateMultiModalResponse(ctx, g.inputTokens, g.outputTokens, g.retryCounter, g.maxRetries, g.model, contents)
}

// ParsePrompt parses a prompt template. It panics on malformed templates, as
// prompts come from configuration read at startup.
func ParsePrompt(name string, source string) *template.Template {
	return template.Must(template.New(name).Parse(source))
}

// RenderPrompt executes t with the given vocabulary.
func RenderPrompt(t *template.Template, vocabulary map[string]string) (string, error) {
	var doc bytes.Buffer
	if err := t.Execute(&doc, vocabulary); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", t.Name(), err)
	}
	return doc.String(), nil
}
