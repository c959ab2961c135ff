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
	"fmt"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/services"
)

// MetadataPersist writes one VideoMetadata record for the ingested video.
// It is skipped when no repository is configured.
type MetadataPersist struct {
	cor.BaseCommand
	repository services.MetadataRepository
}

func NewMetadataPersist(name string, repository services.MetadataRepository) *MetadataPersist {
	out := &MetadataPersist{BaseCommand: *cor.NewBaseCommand(name), repository: repository}
	out.InputParamName = ParamTranscript
	out.OutputParamName = ParamVideoMetadata
	return out
}

func (c *MetadataPersist) IsExecutable(context cor.Context) bool {
	return c.repository != nil && c.BaseCommand.IsExecutable(context) && context.Get(ParamDownload) != nil
}

func (c *MetadataPersist) Execute(context cor.Context) {
	transcript := context.Get(c.GetInputParam()).(*model.Transcript)
	info := context.Get(ParamDownload).(*model.DownloadResult).VideoInfo
	var scenes []model.SceneCaption
	if v := context.Get(ParamSceneCaptions); v != nil {
		scenes = v.([]model.SceneCaption)
	}

	video := model.NewVideoMetadata(info, transcript.Text(), scenes)
	if err := c.repository.Save(context.GetContext(), video); err != nil {
		c.Fail(context, fmt.Errorf("failed to save video metadata: %w", err))
		return
	}
	c.Succeed(context, video)
}
