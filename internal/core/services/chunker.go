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

import "github.com/jaycherian/gcp-go-video-rag/internal/core/model"

// ChunkTranscript maps each segment to one transcript chunk carrying info.
func ChunkTranscript(segments []model.TranscriptSegment, info model.VideoInfo) []model.Chunk {
	chunks := make([]model.Chunk, 0, len(segments))
	for _, s := range segments {
		chunks = append(chunks, newChunk(s.Text, model.ContentTypeTranscript, s.StartTime, s.EndTime, info))
	}
	return chunks
}

// ChunkScenes maps each caption to one scene chunk carrying info.
func ChunkScenes(captions []model.SceneCaption, info model.VideoInfo) []model.Chunk {
	chunks := make([]model.Chunk, 0, len(captions))
	for _, c := range captions {
		chunks = append(chunks, newChunk(c.Description, model.ContentTypeScene, c.StartTime, c.EndTime, info))
	}
	return chunks
}

func newChunk(text string, t model.ContentType, start, end float64, info model.VideoInfo) model.Chunk {
	if end < start {
		end = start
	}
	return model.Chunk{
		Text:        text,
		Type:        t,
		StartTime:   start,
		EndTime:     end,
		Title:       info.Title,
		Description: info.Description,
		VideoURI:    info.VideoURI,
	}
}
