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

package commands

import (
	"github.com/jaycherian/gcp-go-video-rag/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
)

const IngestionSuccessMessage = "Video processed successfully"

// IngestionSummary assembles the response of a successful ingestion.
type IngestionSummary struct {
	cor.BaseCommand
}

func NewIngestionSummary(name string) *IngestionSummary {
	out := &IngestionSummary{BaseCommand: *cor.NewBaseCommand(name)}
	out.InputParamName = ParamChunkCounts
	out.OutputParamName = ParamIngestionResult
	return out
}

func (c *IngestionSummary) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && context.Get(ParamDownload) != nil && context.Get(ParamTranscript) != nil
}

func (c *IngestionSummary) Execute(context cor.Context) {
	counts := context.Get(c.GetInputParam()).(*ChunkCounts)
	download := context.Get(ParamDownload).(*model.DownloadResult)
	transcript := context.Get(ParamTranscript).(*model.Transcript)

	c.Succeed(context, &model.IngestionResult{
		Message:          IngestionSuccessMessage,
		Title:            download.Title,
		SceneCount:       counts.Scene,
		TranscriptChunks: counts.Transcript,
		ProcessedFile:    transcript.CaptionFile,
		Description:      download.Description,
	})
}
