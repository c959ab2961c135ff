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
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-video-rag/internal/cloud"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
	"google.golang.org/genai"
)

const defaultFrameMIMEType = "image/jpeg"

// Captioner describes a batch of frames, one caption per frame path.
type Captioner interface {
	Caption(ctx context.Context, framePaths []string) ([]string, error)
}

// GeminiCaptioner sends a batch of frames as inline images in one request
// and expects a JSON array of captions back.
type GeminiCaptioner struct {
	caller geminiCaller
	prompt *template.Template
}

func NewGeminiCaptioner(model *cloud.QuotaAwareGenerativeAIModel, prompt *template.Template, maxRetries int) *GeminiCaptioner {
	return &GeminiCaptioner{caller: newGeminiCaller("scene-captioner", model, maxRetries), prompt: prompt}
}

func (g *GeminiCaptioner) Caption(ctx context.Context, framePaths []string) ([]string, error) {
	text, err := RenderPrompt(g.prompt, map[string]string{
		"FRAME_COUNT":  strconv.Itoa(len(framePaths)),
		"EXAMPLE_JSON": model.ExampleFrameDescriptionsJSON(),
	})
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{genai.NewPartFromText(text)}
	for _, path := range framePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read frame %s: %w", path, err)
		}
		parts = append(parts, genai.NewPartFromBytes(data, FrameMIMEType(data)))
	}

	out, err := g.caller.generate(ctx, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)})
	if err != nil {
		return nil, err
	}
	return ParseCaptions(out, len(framePaths))
}

// FrameMIMEType sniffs the image type of data, defaulting to JPEG.
func FrameMIMEType(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown || !filetype.IsImage(data) {
		return defaultFrameMIMEType
	}
	return kind.MIME.Value
}

// ParseCaptions decodes a JSON array of captions and checks that there is
// exactly one caption per frame.
func ParseCaptions(out string, expected int) ([]string, error) {
	var captions []string
	if err := json.Unmarshal([]byte(out), &captions); err != nil {
		return nil, fmt.Errorf("captioner returned invalid json: %w", err)
	}
	if len(captions) != expected {
		return nil, fmt.Errorf("captioner returned %d captions for %d frames", len(captions), expected)
	}
	for i := range captions {
		captions[i] = strings.TrimSpace(captions[i])
	}
	return captions, nil
}
