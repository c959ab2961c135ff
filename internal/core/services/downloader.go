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

package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
)

// Downloader resolves a video's metadata and fetches its media streams.
type Downloader struct {
	ytdlp     *YtDlp
	outputDir string
}

func NewDownloader(ytdlp *YtDlp, outputDir string) *Downloader {
	return &Downloader{ytdlp: ytdlp, outputDir: outputDir}
}

// Download resolves the title and description of url and downloads its
// video and audio into the output directory. The title is slugified. It
// fails without retrying when yt-dlp fails or returns an empty title.
func (d *Downloader) Download(ctx context.Context, url string) (*model.DownloadResult, error) {
	descriptor, err := d.ytdlp.Describe(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve video metadata: %w", err)
	}
	title := Slugify(descriptor.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	videoPath, audioPath, err := d.ytdlp.Download(ctx, url, d.outputDir, title)
	if err != nil {
		return nil, fmt.Errorf("failed to download video: %w", err)
	}
	slog.InfoContext(ctx, "video downloaded", "title", title, "video", videoPath, "audio", audioPath)

	return &model.DownloadResult{
		VideoInfo: model.VideoInfo{Title: title, Description: descriptor.Description, VideoURI: url},
		VideoPath: videoPath,
		AudioPath: audioPath,
	}, nil
}
