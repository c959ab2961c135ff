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
	"path/filepath"
	"strings"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
)

// AudioExtractor writes the audio track of a video to a file.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath string, outPath string) error
}

// AudioExtract fills in the audio path of a download that came without a
// separate audio file. The audio is written next to the video.
type AudioExtract struct {
	cor.BaseCommand
	extractor AudioExtractor
}

func NewAudioExtract(name string, extractor AudioExtractor) *AudioExtract {
	out := &AudioExtract{BaseCommand: *cor.NewBaseCommand(name), extractor: extractor}
	out.InputParamName = ParamDownload
	return out
}

func (c *AudioExtract) IsExecutable(context cor.Context) bool {
	if !c.BaseCommand.IsExecutable(context) || c.extractor == nil {
		return false
	}
	return context.Get(c.GetInputParam()).(*model.DownloadResult).AudioPath == ""
}

func (c *AudioExtract) Execute(context cor.Context) {
	download := context.Get(c.GetInputParam()).(*model.DownloadResult)
	audioPath := strings.TrimSuffix(download.VideoPath, filepath.Ext(download.VideoPath)) + ".m4a"
	if err := c.extractor.ExtractAudio(context.GetContext(), download.VideoPath, audioPath); err != nil {
		c.Fail(context, err)
		return
	}
	download.AudioPath = audioPath
	c.Succeed(context, nil)
}
