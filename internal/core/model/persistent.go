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

package model

import (
	"time"

	"github.com/google/uuid"
)

// Content prefixes of indexed documents.
const (
	TranscriptPrefix = "Transcript: "
	ScenePrefix      = "Scene: "
)

// VideoMetadata is the durable record of one processed video. A record is
// written once per successful ingestion and never updated.
type VideoMetadata struct {
	ID                string    `json:"id" bigquery:"id"`
	Title             string    `json:"title" bigquery:"title"`
	Description       string    `json:"description" bigquery:"description"`
	VideoURI          string    `json:"video_uri" bigquery:"video_uri"`
	Transcript        string    `json:"transcript" bigquery:"transcript"`
	FrameDescriptions []string  `json:"frame_descriptions" bigquery:"frame_descriptions"`
	CreatedAt         time.Time `json:"created_at" bigquery:"created_at"`
}

// NewVideoMetadata builds the record for a finished ingestion.
func NewVideoMetadata(info VideoInfo, transcript string, frames []SceneCaption) *VideoMetadata {
	descriptions := make([]string, 0, len(frames))
	for _, f := range frames {
		descriptions = append(descriptions, f.Description)
	}
	return &VideoMetadata{
		ID:                uuid.New().String(),
		Title:             info.Title,
		Description:       info.Description,
		VideoURI:          info.VideoURI,
		Transcript:        transcript,
		FrameDescriptions: descriptions,
		CreatedAt:         time.Now().UTC(),
	}
}

// DocumentMetadata is the filterable part of an indexed document.
type DocumentMetadata struct {
	Type        ContentType `json:"type" bigquery:"type"`
	StartTime   float64     `json:"start_time" bigquery:"start_time"`
	EndTime     float64     `json:"end_time" bigquery:"end_time"`
	VideoURI    string      `json:"video_uri" bigquery:"video_uri"`
	Title       string      `json:"title" bigquery:"title"`
	Description string      `json:"description" bigquery:"description"`
}

// IndexedDocument is a chunk as stored in the vector index.
type IndexedDocument struct {
	ID        string           `json:"id"`
	Content   string           `json:"content"`
	Embedding []float32        `json:"embedding,omitempty"`
	Metadata  DocumentMetadata `json:"metadata"`
}

// NewIndexedDocument converts a chunk into its stored form. Every call gets a
// fresh id, so indexing the same chunk twice stores two documents.
func NewIndexedDocument(chunk Chunk) IndexedDocument {
	prefix := TranscriptPrefix
	if chunk.Type == ContentTypeScene {
		prefix = ScenePrefix
	}
	return IndexedDocument{
		ID:      uuid.New().String(),
		Content: prefix + chunk.Text,
		Metadata: DocumentMetadata{
			Type:        chunk.Type,
			StartTime:   chunk.StartTime,
			EndTime:     chunk.EndTime,
			VideoURI:    chunk.VideoURI,
			Title:       chunk.Title,
			Description: chunk.Description,
		},
	}
}

// Source converts a hit into the form returned to API callers.
func (h SearchHit) Source() Source {
	m := h.Document.Metadata
	return Source{
		Content:   h.Document.Content,
		Type:      m.Type,
		StartTime: m.StartTime,
		EndTime:   m.EndTime,
		VideoURI:  m.VideoURI,
		Title:     m.Title,
		Score:     h.Score,
	}
}
