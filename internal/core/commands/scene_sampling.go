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
	"context"
	"iter"
	"log/slog"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
)

// SceneSource produces the scene captions of a video file.
type SceneSource interface {
	Sample(ctx context.Context, videoPath string) (iter.Seq[model.SceneCaption], error)
}

// SceneSampling captions the downloaded video. Failed batches are already
// replaced by placeholders, so only an unreadable video fails the command.
type SceneSampling struct {
	cor.BaseCommand
	sampler SceneSource
}

func NewSceneSampling(name string, sampler SceneSource) *SceneSampling {
	out := &SceneSampling{BaseCommand: *cor.NewBaseCommand(name), sampler: sampler}
	out.InputParamName = ParamDownload
	out.OutputParamName = ParamSceneCaptions
	return out
}

func (c *SceneSampling) Execute(context cor.Context) {
	download := context.Get(c.GetInputParam()).(*model.DownloadResult)
	captions, err := c.sampler.Sample(context.GetContext(), download.VideoPath)
	if err != nil {
		c.Fail(context, err)
		return
	}
	out := make([]model.SceneCaption, 0)
	for caption := range captions {
		out = append(out, caption)
	}
	if err := context.GetContext().Err(); err != nil {
		c.Fail(context, err)
		return
	}
	slog.InfoContext(context.GetContext(), "scenes captioned", "title", download.Title, "scenes", len(out))
	c.Succeed(context, out)
}
