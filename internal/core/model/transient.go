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

// Package model holds the data passed between pipeline stages and the records
// that are persisted. Transient values live for a single ingestion or query
// and are discarded afterwards.
package model

import "fmt"

// ContentType tags a chunk with the stream it came from.
type ContentType string

const (
	ContentTypeTranscript ContentType = "transcript"
	ContentTypeScene      ContentType = "scene"
)

// ParseContentType maps a stored type string back to a ContentType.
func ParseContentType(in string) (ContentType, error) {
	switch ContentType(in) {
	case ContentTypeTranscript, ContentTypeScene:
		return ContentType(in), nil
	}
	return "", fmt.Errorf("unknown content type %q", in)
}

// TranscriptSegment is one span of speech. Times are in seconds.
type TranscriptSegment struct {
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// SceneCaption describes one sampled frame.
type SceneCaption struct {
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	Description string  `json:"description"`
}

// VideoInfo is the video-level metadata attached to every chunk.
type VideoInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	VideoURI    string `json:"video_uri"`
}

// DownloadResult is what the downloader leaves on disk for one video.
type DownloadResult struct {
	VideoInfo
	VideoPath string `json:"video_path"`
	AudioPath string `json:"audio_path"`
}

// Transcript is a time-aligned transcript in Language, written to
// CaptionFile as WebVTT.
type Transcript struct {
	Segments    []TranscriptSegment `json:"segments"`
	Language    string              `json:"language"`
	CaptionFile string              `json:"caption_file"`
}

// Text joins the segment texts with single spaces.
func (t *Transcript) Text() string {
	out := ""
	for i, s := range t.Segments {
		if i > 0 {
			out += " "
		}
		out += s.Text
	}
	return out
}

// Chunk is the unit written to the vector index.
type Chunk struct {
	Text        string      `json:"text"`
	Type        ContentType `json:"type"`
	StartTime   float64     `json:"start_time"`
	EndTime     float64     `json:"end_time"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	VideoURI    string      `json:"video_uri"`
}

// Filter restricts a search by equality. A nil field places no constraint.
type Filter struct {
	Type  *ContentType
	Title *string
}

// Matches reports whether metadata satisfies every set field of the filter.
func (f Filter) Matches(m DocumentMetadata) bool {
	if f.Type != nil && m.Type != *f.Type {
		return false
	}
	if f.Title != nil && m.Title != *f.Title {
		return false
	}
	return true
}

// SearchHit is a document returned by the index with its similarity score.
// Higher scores are closer.
type SearchHit struct {
	Document IndexedDocument `json:"document"`
	Score    float64         `json:"score"`
}

// Query is a question about indexed videos. Title, when set, limits the
// search to one video.
type Query struct {
	Question string  `json:"question"`
	TopK     int     `json:"top_k"`
	Title    *string `json:"title,omitempty"`
}

// Source is a retrieved chunk as reported back to the caller.
type Source struct {
	Content   string      `json:"content"`
	Type      ContentType `json:"type"`
	StartTime float64     `json:"start_time"`
	EndTime   float64     `json:"end_time"`
	VideoURI  string      `json:"video_uri"`
	Title     string      `json:"title"`
	Score     float64     `json:"score"`
}

// QueryResult is the answer to a Query.
type QueryResult struct {
	Query   string      `json:"query"`
	Answer  string      `json:"answer"`
	Sources []Source    `json:"sources"`
	Model   string      `json:"model"`
	Intent  ContentType `json:"-"`
}

// IngestionResult summarises a completed ingestion.
type IngestionResult struct {
	Message          string `json:"message"`
	Title            string `json:"title"`
	SceneCount       int    `json:"scene_count"`
	TranscriptChunks int    `json:"transcript_chunks"`
	ProcessedFile    string `json:"processed_file"`
	Description      string `json:"description"`
}

// IngestionTrigger is the Pub/Sub message that starts an ingestion.
type IngestionTrigger struct {
	VideoURL string `json:"video_url"`
}
