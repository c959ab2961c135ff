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

package workflow

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/commands"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
)

// VideoIngestionWorkflow runs the write path for one video URL:
//
//	download (yt-dlp or gs://) -> audio -> scenes -> transcript -> chunks ->
//	vector index -> metadata record -> caption archive -> result
//
// The input is the URL under commands.ParamVideoURL.
type VideoIngestionWorkflow struct {
	cor.BaseCommand
	components *Components
	chain      cor.Chain
}

func NewVideoIngestionWorkflow(components *Components) *VideoIngestionWorkflow {
	w := &VideoIngestionWorkflow{
		BaseCommand: *cor.NewBaseCommand("video-ingestion-workflow"),
		components:  components,
	}
	w.InputParamName = commands.ParamVideoURL
	w.initializeChain()
	return w
}

// initializeChain assembles the ingestion steps. Steps whose input is absent
// or whose backend is not configured report themselves as not executable and
// are skipped by the chain.
func (w *VideoIngestionWorkflow) initializeChain() {
	c := w.components
	out := cor.NewBaseChain(w.GetName())

	// Step 1: gs:// sources are copied to the download directory; any other
	// URL is fetched with yt-dlp.
	out.AddCommand(commands.NewGCSVideoFetch("gcs-video-fetch", c.StorageClient, c.DownloadDir))
	out.AddCommand(commands.NewVideoDownload("video-download", c.Downloader))

	// Step 2: make sure an audio track exists for speech to text.
	out.AddCommand(commands.NewAudioExtract("audio-extract", c.AudioExtractor))

	// Step 3: caption one frame per interval.
	out.AddCommand(commands.NewSceneSampling("scene-sampling", c.Scenes))

	// Step 4: platform captions, speech to text fallback, translation.
	out.AddCommand(commands.NewTranscriptAcquisition("transcript-acquisition", c.Transcripts))

	// Step 5: one chunk per segment and per scene, embedded into the index.
	out.AddCommand(commands.NewChunking("chunking"))
	out.AddCommand(commands.NewIndexWrite("index-write", c.Index))

	// Step 6: optional relational record and caption archive.
	out.AddCommand(commands.NewMetadataPersist("metadata-persist", c.Metadata))
	out.AddCommand(commands.NewCaptionArchiveUpload("caption-archive-upload", c.StorageClient, c.ArchiveBucket))

	// Step 7: the response returned to the caller.
	out.AddCommand(commands.NewIngestionSummary("ingestion-summary"))
	w.chain = out
}

// Execute runs the chain. When any stage fails, the caption file written for
// this video is registered for removal by the context's Close.
func (w *VideoIngestionWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
	if !context.HasErrors() {
		w.Succeed(context, nil)
		return
	}
	w.GetErrorCounter().Add(context.GetContext(), 1)
	if v := context.Get(commands.ParamTranscript); v != nil {
		if file := v.(*model.Transcript).CaptionFile; file != "" {
			context.AddTempFile(file)
		}
	}
}

// Ingest processes url and returns the ingestion summary.
func (w *VideoIngestionWorkflow) Ingest(ctx context.Context, url string) (*model.IngestionResult, error) {
	chainCtx := cor.NewBaseContext()
	defer chainCtx.Close()
	chainCtx.SetContext(ctx)
	chainCtx.Add(commands.ParamVideoURL, url)

	w.Execute(chainCtx)
	if chainCtx.HasErrors() {
		err := cor.Err(chainCtx)
		slog.ErrorContext(ctx, "video ingestion failed", "url", url, "error", err)
		return nil, err
	}
	return chainCtx.Get(commands.ParamIngestionResult).(*model.IngestionResult), nil
}

// IngestionTriggerWorkflow decodes a Pub/Sub message and runs the ingestion
// workflow on the URL it carries.
type IngestionTriggerWorkflow struct {
	cor.BaseCommand
	ingestion *VideoIngestionWorkflow
	chain     cor.Chain
}

func NewIngestionTriggerWorkflow(ingestion *VideoIngestionWorkflow) *IngestionTriggerWorkflow {
	w := &IngestionTriggerWorkflow{
		BaseCommand: *cor.NewBaseCommand("ingestion-trigger-workflow"),
		ingestion:   ingestion,
	}
	w.chain = cor.NewBaseChain(w.GetName()).
		AddCommand(commands.NewIngestionTriggerReader("ingestion-trigger-reader")).
		AddCommand(ingestion)
	return w
}

func (w *IngestionTriggerWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
	if result := context.Get(commands.ParamIngestionResult); result != nil {
		r := result.(*model.IngestionResult)
		slog.InfoContext(context.GetContext(), "video ingested from trigger",
			"title", r.Title, "scenes", r.SceneCount, "transcript_chunks", r.TranscriptChunks)
	}
}
