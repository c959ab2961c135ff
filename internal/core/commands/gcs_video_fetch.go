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
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-video-rag/internal/cloud"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/services"
)

// GCSVideoFetch copies a gs:// video into the download directory. The
// object's base name, slugified, becomes the video title. Other URLs are
// left to the platform downloader.
type GCSVideoFetch struct {
	cor.BaseCommand
	client    *storage.Client
	outputDir string
}

func NewGCSVideoFetch(name string, client *storage.Client, outputDir string) *GCSVideoFetch {
	out := &GCSVideoFetch{BaseCommand: *cor.NewBaseCommand(name), client: client, outputDir: outputDir}
	out.InputParamName = ParamVideoURL
	out.OutputParamName = ParamDownload
	return out
}

func (c *GCSVideoFetch) IsExecutable(context cor.Context) bool {
	if !c.BaseCommand.IsExecutable(context) || context.Get(ParamDownload) != nil {
		return false
	}
	return cloud.IsGCSURI(context.Get(c.GetInputParam()).(string))
}

func (c *GCSVideoFetch) Execute(context cor.Context) {
	uri := context.Get(c.GetInputParam()).(string)
	if c.client == nil {
		c.Fail(context, fmt.Errorf("cannot fetch %s: no storage client configured", uri))
		return
	}
	object, err := cloud.ParseGCSURI(uri)
	if err != nil {
		c.Fail(context, err)
		return
	}

	base := path.Base(object.Name)
	title := services.Slugify(strings.TrimSuffix(base, path.Ext(base)))
	if title == "" {
		c.Fail(context, services.ErrEmptyTitle)
		return
	}

	reader, err := c.client.Bucket(object.Bucket).Object(object.Name).NewReader(context.GetContext())
	if err != nil {
		c.Fail(context, fmt.Errorf("failed to create GCS reader for %s: %w", uri, err))
		return
	}
	defer reader.Close()

	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		c.Fail(context, err)
		return
	}
	videoPath := filepath.Join(c.outputDir, title+strings.ToLower(path.Ext(base)))
	file, err := os.Create(videoPath)
	if err != nil {
		c.Fail(context, fmt.Errorf("could not create %s: %w", videoPath, err))
		return
	}
	written, err := io.Copy(file, reader)
	if cErr := file.Close(); err == nil {
		err = cErr
	}
	if err != nil {
		_ = os.Remove(videoPath)
		c.Fail(context, fmt.Errorf("failed to copy %s after %d bytes: %w", uri, written, err))
		return
	}

	slog.InfoContext(context.GetContext(), "video fetched from cloud storage", "uri", uri, "path", videoPath, "bytes", written)
	c.Succeed(context, &model.DownloadResult{
		VideoInfo: model.VideoInfo{Title: title, VideoURI: uri},
		VideoPath: videoPath,
	})
}
