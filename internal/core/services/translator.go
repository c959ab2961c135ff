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
	"strings"
	"text/template"

	"github.com/jaycherian/gcp-go-video-rag/internal/cloud"
)

// Translator translates a single caption.
type Translator interface {
	Translate(ctx context.Context, text string, source string, target string) (string, error)
}

type GeminiTranslator struct {
	caller geminiCaller
	prompt *template.Template
}

func NewGeminiTranslator(model *cloud.QuotaAwareGenerativeAIModel, prompt *template.Template, maxRetries int) *GeminiTranslator {
	return &GeminiTranslator{caller: newGeminiCaller("caption-translator", model, maxRetries), prompt: prompt}
}

func (g *GeminiTranslator) Translate(ctx context.Context, text string, source string, target string) (string, error) {
	prompt, err := RenderPrompt(g.prompt, map[string]string{
		"TEXT":            text,
		"SOURCE_LANGUAGE": source,
		"TARGET_LANGUAGE": target,
	})
	if err != nil {
		return "", err
	}
	out, err := g.caller.generate(ctx, cloud.NewTextContent(prompt))
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("translation is empty")
	}
	return out, nil
}
