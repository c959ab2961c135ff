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
	"log/slog"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/services"
)

// IndexWrite embeds the chunks into the vector index and persists it.
type IndexWrite struct {
	cor.BaseCommand
	index services.VectorIndex
}

func NewIndexWrite(name string, index services.VectorIndex) *IndexWrite {
	out := &IndexWrite{BaseCommand: *cor.NewBaseCommand(name), index: index}
	out.InputParamName = ParamChunks
	return out
}

func (c *IndexWrite) Execute(context cor.Context) {
	chunks := context.Get(c.GetInputParam()).([]model.Chunk)
	if err := c.index.Add(context.GetContext(), chunks); err != nil {
		c.Fail(context, fmt.Errorf("failed to index chunks: %w", err))
		return
	}
	if err := c.index.Persist(context.GetContext()); err != nil {
		c.Fail(context, fmt.Errorf("failed to persist index: %w", err))
		return
	}
	slog.InfoContext(context.GetContext(), "chunks indexed", "chunks", len(chunks))
	c.Succeed(context, nil)
}
