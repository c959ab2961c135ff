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

package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/services"
	test "github.com/jaycherian/gcp-go-video-rag/internal/testutil"
	"github.com/stretchr/testify/assert"
)

var (
	classifierPrompt = services.ParsePrompt("classifier", "Answer scene or transcript.\nQuestion: {{ .QUESTION }}")
	answerPrompt     = services.ParsePrompt("answer", "Context:\n{{ .CONTEXT }}\n\nQuestion: {{ .QUESTION }}")
)

func TestIntentFromResponse(t *testing.T) {
	assert.Equal(t, model.ContentTypeScene, services.IntentFromResponse("scene"))
	assert.Equal(t, model.ContentTypeScene, services.IntentFromResponse("  SCENE\n"))
	assert.Equal(t, model.ContentTypeTranscript, services.IntentFromResponse("transcript"))
	assert.Equal(t, model.ContentTypeTranscript, services.IntentFromResponse("transcription"))
	assert.Equal(t, model.ContentTypeTranscript, services.IntentFromResponse("a scene"))
	assert.Equal(t, model.ContentTypeTranscript, services.IntentFromResponse(""))
}

func TestClassifierFallsBackToTranscriptOnError(t *testing.T) {
	generator := &test.ScriptedGenerator{Err: errors.New("unavailable")}
	classifier := services.NewQueryClassifier(generator, classifierPrompt)
	assert.Equal(t, model.ContentTypeTranscript, classifier.Classify(context.Background(), "what is shown?"))
	assert.Equal(t, []string{"Answer scene or transcript.\nQuestion: what is shown?"}, generator.Prompts)
}

func TestClampTopK(t *testing.T) {
	assert.Equal(t, 1, services.ClampTopK(0, 10))
	assert.Equal(t, 1, services.ClampTopK(-4, 10))
	assert.Equal(t, 3, services.ClampTopK(3, 10))
	assert.Equal(t, 10, services.ClampTopK(50, 10))
}

func TestNewFilterIgnoresEmptyTitle(t *testing.T) {
	empty := ""
	filter := services.NewFilter(model.ContentTypeScene, &empty)
	assert.Nil(t, filter.Title)
	assert.Equal(t, model.ContentTypeScene, *filter.Type)

	assert.Nil(t, services.NewFilter(model.ContentTypeScene, nil).Title)

	title := "sky"
	assert.Equal(t, "sky", *services.NewFilter(model.ContentTypeTranscript, &title).Title)
}

func TestFormatContext(t *testing.T) {
	hits := []model.SearchHit{
		{Document: model.IndexedDocument{Content: "Transcript: The sky is blue today", Metadata: model.DocumentMetadata{
			Type: model.ContentTypeTranscript, StartTime: 0, EndTime: 2, VideoURI: "https://example.com/sky"}}, Score: 0.5},
		{Document: model.IndexedDocument{Content: "Transcript: Clouds", Metadata: model.DocumentMetadata{
			Type: model.ContentTypeTranscript, StartTime: 2.5, EndTime: 6, VideoURI: "https://example.com/sky"}}, Score: 0.25},
	}
	expected := "Chunk 1:\nContent: Transcript: The sky is blue today\nType: transcript\nStart Time: 0\nEnd Time: 2\nVideo URI: https://example.com/sky\nRelevance Score: 0.5" +
		"\n\n" +
		"Chunk 2:\nContent: Transcript: Clouds\nType: transcript\nStart Time: 2.5\nEnd Time: 6\nVideo URI: https://example.com/sky\nRelevance Score: 0.25"
	assert.Equal(t, expected, services.FormatContext(hits))
	assert.Equal(t, "", services.FormatContext(nil))
}

func TestRetrieverSearchesOneTypeWithClampedTopK(t *testing.T) {
	idx := newLocalIndex(t, t.TempDir())
	seed(t, idx)
	retriever := services.NewRetriever(idx, 10)

	hits, err := retriever.RetrieveByType(context.Background(), "what does the sky look like", model.ContentTypeScene, 0, nil)
	test.HandleErr(err, t)
	assert.Len(t, hits, 1)
	assert.True(t, strings.HasPrefix(services.FormatContext(hits), "Chunk 1:\nContent: Scene: A blue sky"))
}

func TestRetrieverRestrictsToTitle(t *testing.T) {
	idx := newLocalIndex(t, t.TempDir())
	seed(t, idx)
	retriever := services.NewRetriever(idx, 10)

	title := "sky"
	hits, err := retriever.RetrieveByType(context.Background(), "is the sky blue", model.ContentTypeTranscript, 100, &title)
	test.HandleErr(err, t)
	assert.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, "sky", h.Document.Metadata.Title)
	}
}

func TestAnswerSynthesizerFillsPrompt(t *testing.T) {
	generator := &test.ScriptedGenerator{Model: "gemini-2.5-flash", Reply: "  The sky is blue.  "}
	synthesizer := services.NewAnswerSynthesizer(generator, answerPrompt)

	answer, err := synthesizer.Answer(context.Background(), "What color is the sky?", "Chunk 1:\nContent: Transcript: The sky is blue today")
	test.HandleErr(err, t)
	assert.Equal(t, "  The sky is blue.  ", answer)
	assert.Equal(t, "gemini-2.5-flash", synthesizer.ModelName())
	assert.Equal(t, "Context:\nChunk 1:\nContent: Transcript: The sky is blue today\n\nQuestion: What color is the sky?", generator.Prompts[0])

	failing := services.NewAnswerSynthesizer(&test.ScriptedGenerator{Err: errors.New("quota")}, answerPrompt)
	_, err = failing.Answer(context.Background(), "q", "c")
	assert.ErrorContains(t, err, "quota")
}
