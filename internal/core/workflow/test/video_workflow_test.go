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

package workflow_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/commands"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-video-rag/internal/testutil"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/codes"
)

const videoURL = "https://www.youtube.com/watch?v=abc123"

func TestIngestThenQuery(t *testing.T) {
	traceCtx, span := tracer.Start(ctx, "ingest-then-query")
	defer span.End()

	h := newHarness(t, test.NewHashEmbedder())
	ingestion := workflow.NewVideoIngestionWorkflow(h.components)

	result, err := ingestion.Ingest(traceCtx, videoURL)
	if err != nil {
		span.SetStatus(codes.Error, "ingestion failed")
	}
	test.HandleErr(err, t)

	captionFile := filepath.Join(h.captionDir, "sky-facts-why-is-it-blue.vtt")
	assert.Equal(t, &model.IngestionResult{
		Message:          "Video processed successfully",
		Title:            "sky-facts-why-is-it-blue",
		SceneCount:       2,
		TranscriptChunks: 1,
		ProcessedFile:    captionFile,
		Description:      "A short video about the sky.",
	}, result)
	assert.FileExists(t, captionFile)
	assert.Empty(t, h.audio.Calls)

	count, err := h.components.Index.Count(traceCtx)
	test.HandleErr(err, t)
	assert.Equal(t, 3, count)
	if assert.Len(t, h.metadata.Videos, 1) {
		assert.Equal(t, "The sky is blue today", h.metadata.Videos[0].Transcript)
		assert.Equal(t, []string{"frame frame-00000.jpg", "frame frame-00300.jpg"}, h.metadata.Videos[0].FrameDescriptions)
	}

	query := workflow.NewVideoQueryWorkflow(h.components, 3)
	answer, err := query.Query(traceCtx, &model.Query{Question: "What color is the sky?"})
	test.HandleErr(err, t)

	assert.Equal(t, "What color is the sky?", answer.Query)
	assert.Equal(t, "The sky is blue (0s-2s).", answer.Answer)
	assert.Equal(t, "fake-llm", answer.Model)
	if assert.Len(t, answer.Sources, 1) {
		source := answer.Sources[0]
		assert.Equal(t, "Transcript: The sky is blue today", source.Content)
		assert.Equal(t, model.ContentTypeTranscript, source.Type)
		assert.Equal(t, 0.0, source.StartTime)
		assert.Equal(t, 2.0, source.EndTime)
		assert.Equal(t, videoURL, source.VideoURI)
	}
	assert.Contains(t, h.llm.Prompts[0], "Start Time: 0\nEnd Time: 2")
	span.SetStatus(codes.Ok, "passed")
}

func TestQueryWithUnknownTitleHasNoSources(t *testing.T) {
	h := newHarness(t, test.NewHashEmbedder())
	_, err := workflow.NewVideoIngestionWorkflow(h.components).Ingest(ctx, videoURL)
	test.HandleErr(err, t)

	title := "another-video"
	answer, err := workflow.NewVideoQueryWorkflow(h.components, 3).Query(ctx, &model.Query{Question: "What color is the sky?", Title: &title})
	test.HandleErr(err, t)
	assert.Empty(t, answer.Sources)
	assert.NotContains(t, h.llm.Prompts[0], "Chunk 1:")
}

func TestIngestExtractsAudioWhenMissing(t *testing.T) {
	h := newHarness(t, test.NewHashEmbedder())
	h.downloader.NoAudio = true

	_, err := workflow.NewVideoIngestionWorkflow(h.components).Ingest(ctx, videoURL)
	test.HandleErr(err, t)
	if assert.Len(t, h.audio.Calls, 1) {
		assert.Equal(t, filepath.Join(h.downloader.Dir, "sky-facts-why-is-it-blue.m4a"), h.audio.Calls[0][1])
	}
}

func TestFailedIngestionRemovesCaptionFile(t *testing.T) {
	h := newHarness(t, test.FailingEmbedder{Err: errors.New("embedding quota exhausted")})

	result, err := workflow.NewVideoIngestionWorkflow(h.components).Ingest(ctx, videoURL)
	assert.Nil(t, result)
	assert.ErrorContains(t, err, "embedding quota exhausted")
	assert.NoFileExists(t, filepath.Join(h.captionDir, "sky-facts-why-is-it-blue.vtt"))
	assert.Empty(t, h.metadata.Videos)
}

func TestFailedDownloadStopsIngestion(t *testing.T) {
	h := newHarness(t, test.NewHashEmbedder())
	h.downloader.Err = errors.New("HTTP Error 404")

	_, err := workflow.NewVideoIngestionWorkflow(h.components).Ingest(ctx, videoURL)
	assert.ErrorContains(t, err, "HTTP Error 404")
	count, cErr := h.components.Index.Count(ctx)
	test.HandleErr(cErr, t)
	assert.Zero(t, count)
}

func TestIngestionTriggerWorkflow(t *testing.T) {
	h := newHarness(t, test.NewHashEmbedder())
	trigger := workflow.NewIngestionTriggerWorkflow(workflow.NewVideoIngestionWorkflow(h.components))

	chCtx := cor.NewBaseContext()
	defer chCtx.Close()
	chCtx.SetContext(ctx)
	chCtx.Add(cor.CtxIn, `{"video_url": "`+videoURL+`"}`)
	trigger.Execute(chCtx)

	assert.False(t, chCtx.HasErrors())
	assert.Equal(t, []string{videoURL}, h.downloader.Requests)
	assert.NotNil(t, chCtx.Get(commands.ParamIngestionResult))

	bad := cor.NewBaseContext()
	defer bad.Close()
	bad.SetContext(ctx)
	bad.Add(cor.CtxIn, `{}`)
	trigger.Execute(bad)
	assert.True(t, bad.HasErrors())
	assert.Len(t, h.downloader.Requests, 1)
}
