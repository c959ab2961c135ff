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
	"iter"
	"log/slog"
	"math"
	"os"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
)

// FrameSource reads frames out of a video file.
type FrameSource interface {
	Probe(ctx context.Context, videoPath string) (*VideoStream, error)
	ExtractFrames(ctx context.Context, videoPath string, fps float64, indices []int, outDir string) ([]string, error)
}

// SceneSampler captions one frame every Interval seconds.
type SceneSampler struct {
	frames      FrameSource
	captioner   Captioner
	interval    float64
	batchSize   int
	placeholder string
	workDir     string
}

func NewSceneSampler(frames FrameSource, captioner Captioner, interval float64, batchSize int, placeholder string, workDir string) *SceneSampler {
	if batchSize < 1 {
		batchSize = 1
	}
	return &SceneSampler{
		frames:      frames,
		captioner:   captioner,
		interval:    interval,
		batchSize:   batchSize,
		placeholder: placeholder,
		workDir:     workDir,
	}
}

// SampleFrameIndices returns 0, step, 2*step, ... below frameCount where
// step is round(fps*interval), at least 1.
func SampleFrameIndices(fps float64, interval float64, frameCount int) []int {
	step := int(math.Round(fps * interval))
	if step < 1 {
		step = 1
	}
	indices := make([]int, 0, frameCount/step+1)
	for i := 0; i < frameCount; i += step {
		indices = append(indices, i)
	}
	return indices
}

// Sample probes videoPath and returns a lazy sequence of scene captions. Each
// batch of frames is extracted and captioned when the consumer reaches it.
// A batch that fails gets the placeholder description for every frame. The
// sequence ends early when ctx is cancelled.
func (s *SceneSampler) Sample(ctx context.Context, videoPath string) (iter.Seq[model.SceneCaption], error) {
	stream, err := s.frames.Probe(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	indices := SampleFrameIndices(stream.FPS, s.interval, stream.FrameCount)

	return func(yield func(model.SceneCaption) bool) {
		for b := 0; b < len(indices); b += s.batchSize {
			if ctx.Err() != nil {
				return
			}
			batch := indices[b:min(b+s.batchSize, len(indices))]
			descriptions := s.captionBatch(ctx, videoPath, stream.FPS, batch)
			for i, idx := range batch {
				start := float64(idx) / stream.FPS
				if !yield(model.SceneCaption{StartTime: start, EndTime: start + s.interval, Description: descriptions[i]}) {
					return
				}
			}
		}
	}, nil
}

func (s *SceneSampler) captionBatch(ctx context.Context, videoPath string, fps float64, batch []int) []string {
	descriptions, err := s.tryCaptionBatch(ctx, videoPath, fps, batch)
	if err == nil {
		return descriptions
	}
	slog.WarnContext(ctx, "scene captioning failed for batch, using placeholder",
		"video", videoPath, "first_frame", batch[0], "frames", len(batch), "error", err)
	descriptions = make([]string, len(batch))
	for i := range descriptions {
		descriptions[i] = s.placeholder
	}
	return descriptions
}

func (s *SceneSampler) tryCaptionBatch(ctx context.Context, videoPath string, fps float64, batch []int) ([]string, error) {
	if s.workDir != "" {
		if err := os.MkdirAll(s.workDir, 0o755); err != nil {
			return nil, err
		}
	}
	dir, err := os.MkdirTemp(s.workDir, "frames-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	paths, err := s.frames.ExtractFrames(ctx, videoPath, fps, batch, dir)
	if err != nil {
		return nil, err
	}
	descriptions, err := s.captioner.Caption(ctx, paths)
	if err != nil {
		return nil, err
	}
	if len(descriptions) != len(batch) {
		return nil, fmt.Errorf("captioner returned %d captions for %d frames", len(descriptions), len(batch))
	}
	return descriptions, nil
}
