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

// VideoDownloader fetches a video and its metadata from a platform URL.
type VideoDownloader interface {
	Download(ctx context.Context, url string) (*model.DownloadResult, error)
}

type VideoDownload struct {
	cor.BaseCommand
	downloader VideoDownloader
}

func NewVideoDownload(name string, downloader VideoDownloader) *VideoDownload {
	out := &VideoDownload{BaseCommand: *cor.NewBaseCommand(name), downloader: downloader}
	out.InputParamName = ParamVideoURL
	out.OutputParamName = ParamDownload
	return out
}

// IsExecutable is false once another command produced the download.
func (c *VideoDownload) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && context.Get(ParamDownload) == nil
}

func (c *VideoDownload) Execute(context cor.Context) {
	url := context.Get(c.GetInputParam()).(string)
	result, err := c.downloader.Download(context.GetContext(), url)
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context, result)
}
