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
	"text/template"
)

// AnswerTemperature is the sampling temperature of answer generation.
const AnswerTemperature float32 = 0.4

// AnswerSynthesizer asks the language model to answer from the retrieved
// context. The reply is returned as is.
type AnswerSynthesizer struct {
	generator TextGenerator
	prompt    *template.Template
}

// NewAnswerSynthesizer expects generator to already run at
// AnswerTemperature.
func NewAnswerSynthesizer(generator TextGenerator, prompt *template.Template) *AnswerSynthesizer {
	return &AnswerSynthesizer{generator: generator, prompt: prompt}
}

func (a *AnswerSynthesizer) ModelName() string { return a.generator.ModelName() }

func (a *AnswerSynthesizer) Answer(ctx context.Context, question string, retrieved string) (string, error) {
	prompt, err := RenderPrompt(a.prompt, map[string]string{"CONTEXT": retrieved, "QUESTION": question})
	if err != nil {
		return "", err
	}
	out, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	return out, nil
}
