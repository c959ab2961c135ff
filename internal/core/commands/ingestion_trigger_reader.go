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
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
)

// IngestionTriggerReader decodes a Pub/Sub ingestion message into the video
// URL the ingestion chain starts from.
type IngestionTriggerReader struct {
	cor.BaseCommand
}

func NewIngestionTriggerReader(name string) *IngestionTriggerReader {
	out := &IngestionTriggerReader{BaseCommand: *cor.NewBaseCommand(name)}
	out.OutputParamName = ParamVideoURL
	return out
}

func (c *IngestionTriggerReader) Execute(context cor.Context) {
	in := context.Get(c.GetInputParam()).(string)

	var trigger model.IngestionTrigger
	if err := json.Unmarshal([]byte(in), &trigger); err != nil {
		c.Fail(context, fmt.Errorf("failed to unmarshal ingestion trigger: %w", err))
		return
	}
	url := strings.TrimSpace(trigger.VideoURL)
	if url == "" {
		c.Fail(context, errors.New("ingestion trigger has no video_url"))
		return
	}
	c.Succeed(context, url)
}
