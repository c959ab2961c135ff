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

	"github.com/jaycherian/gcp-go-video-rag/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
)

// TranscriptSource returns the target language transcript of a video and
// writes its caption file.
type TranscriptSource interface {
	Acquire(ctx context.Context, info model.VideoInfo, audioPath string) (*model.Transcript, error)
}

type TranscriptAcquisition struct {
	cor.BaseCommand
	acquirer TranscriptSource
}

func NewTranscriptAcquisition(name string, acquirer TranscriptSource) *TranscriptAcquisition {
	out := &TranscriptAcquisition{BaseCommand: *cor.NewBaseCommand(name), acquirer: acquirer}
	out.InputParamName = ParamDownload
	out.OutputParamName = ParamTranscript
	return out
}

func (c *TranscriptAcquisition) Execute(context cor.Context) {
	download := context.Get(c.GetInputParam()).(*model.DownloadResult)
	transcript, err := c.acquirer.Acquire(context.GetContext(), download.VideoInfo, download.AudioPath)
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context, transcript)
}
