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

	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-video-rag/internal/cloud"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
)

// CaptionArchiveUpload copies the final caption file to
// gs://<bucket>/captions/<title>.vtt. It is skipped when no bucket is set.
type CaptionArchiveUpload struct {
	cor.BaseCommand
	client *storage.Client
	bucket string
}

func NewCaptionArchiveUpload(name string, client *storage.Client, bucket string) *CaptionArchiveUpload {
	out := &CaptionArchiveUpload{BaseCommand: *cor.NewBaseCommand(name), client: client, bucket: bucket}
	out.InputParamName = ParamTranscript
	return out
}

func (c *CaptionArchiveUpload) IsExecutable(context cor.Context) bool {
	return c.client != nil && c.bucket != "" && c.BaseCommand.IsExecutable(context)
}

func (c *CaptionArchiveUpload) Execute(context cor.Context) {
	transcript := context.Get(c.GetInputParam()).(*model.Transcript)
	object := cloud.CaptionArchiveObject(c.bucket, transcript.CaptionFile)

	file, err := os.Open(transcript.CaptionFile)
	if err != nil {
		c.Fail(context, fmt.Errorf("failed to open file %s: %w", transcript.CaptionFile, err))
		return
	}
	defer file.Close()

	writer := c.client.Bucket(object.Bucket).Object(object.Name).NewWriter(context.GetContext())
	writer.ContentType = object.MIMEType
	if written, err := io.Copy(writer, file); err != nil {
		_ = writer.Close()
		c.Fail(context, fmt.Errorf("failed to upload caption file after %d bytes: %w", written, err))
		return
	}
	if err := writer.Close(); err != nil {
		c.Fail(context, fmt.Errorf("failed to finalize %s: %w", object.URI(), err))
		return
	}
	slog.InfoContext(context.GetContext(), "caption file archived", "uri", object.URI())
	c.Succeed(context, nil)
}
