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

	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
	openai "github.com/sashabaranov/go-openai"
)

// SpeechToText transcribes an audio file spoken in language.
type SpeechToText interface {
	Transcribe(ctx context.Context, audioPath string, language string) ([]model.TranscriptSegment, error)
}

// WhisperSpeechToText uses the OpenAI transcription endpoint with verbose
// JSON output so segment timings are preserved.
type WhisperSpeechToText struct {
	client *openai.Client
	model  string
}

func NewWhisperSpeechToText(client *openai.Client, model string) *WhisperSpeechToText {
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperSpeechToText{client: client, model: model}
}

func (w *WhisperSpeechToText) Transcribe(ctx context.Context, audioPath string, language string) ([]model.TranscriptSegment, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: audioPath,
		Language: language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, err
	}

	segments := make([]model.TranscriptSegment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, model.TranscriptSegment{Text: text, StartTime: s.Start, EndTime: s.End})
	}
	if len(segments) == 0 && strings.TrimSpace(resp.Text) != "" {
		segments = append(segments, model.TranscriptSegment{Text: strings.TrimSpace(resp.Text), StartTime: 0, EndTime: resp.Duration})
	}
	if len(segments) == 0 {
		return nil, errors.New("speech to text returned no speech")
	}
	return segments, nil
}
