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
	"github.com/jaycherian/gcp-go-video-rag/internal/core/services"
)

// Chunking turns the transcript and scene captions into index chunks,
// transcript chunks first.
type Chunking struct {
	cor.BaseCommand
}

func NewChunking(name string) *Chunking {
	out := &Chunking{BaseCommand: *cor.NewBaseCommand(name)}
	out.InputParamName = ParamTranscript
	out.OutputParamName = ParamChunks
	return out
}

func (c *Chunking) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && context.Get(ParamDownload) != nil
}

func (c *Chunking) Execute(context cor.Context) {
	transcript := context.Get(c.GetInputParam()).(*model.Transcript)
	info := context.Get(ParamDownload).(*model.DownloadResult).VideoInfo
	var scenes []model.SceneCaption
	if v := context.Get(ParamSceneCaptions); v != nil {
		scenes = v.([]model.SceneCaption)
	}

	transcriptChunks := services.ChunkTranscript(transcript.Segments, info)
	sceneChunks := services.ChunkScenes(scenes, info)
	chunks := append(transcriptChunks, sceneChunks...)

	context.Add(ParamChunkCounts, &ChunkCounts{Transcript: len(transcriptChunks), Scene: len(sceneChunks)})
	c.Succeed(context, chunks)
}
