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
	"log/slog"
	"strings"
	"text/template"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
)

// QueryClassifier decides whether a question is about what is shown or
// what is said. Only an exact "scene" answer selects scenes; anything else,
// including a failed call, selects the transcript.
type QueryClassifier struct {
	generator TextGenerator
	prompt    *template.Template
}

func NewQueryClassifier(generator TextGenerator, prompt *template.Template) *QueryClassifier {
	return &QueryClassifier{generator: generator, prompt: prompt}
}

func (c *QueryClassifier) Classify(ctx context.Context, question string) model.ContentType {
	prompt, err := RenderPrompt(c.prompt, map[string]string{"QUESTION": question})
	if err != nil {
		slog.WarnContext(ctx, "classifier prompt failed, using transcript", "error", err)
		return model.ContentTypeTranscript
	}
	out, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		slog.WarnContext(ctx, "classification failed, using transcript", "error", err)
		return model.ContentTypeTranscript
	}
	return IntentFromResponse(out)
}

// IntentFromResponse maps a classifier reply to a content type.
func IntentFromResponse(out string) model.ContentType {
	if strings.ToLower(strings.TrimSpace(out)) == string(model.ContentTypeScene) {
		return model.ContentTypeScene
	}
	return model.ContentTypeTranscript
}
