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

package model_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
	"github.com/stretchr/testify/assert"
)

var info = model.VideoInfo{Title: "blue-sky", Description: "weather", VideoURI: "https://example.com/v"}

func TestNewVideoMetadata(t *testing.T) {
	frames := []model.SceneCaption{
		{StartTime: 0, EndTime: 10, Description: "a blue sky"},
		{StartTime: 10, EndTime: 20, Description: "a cloud"},
	}
	meta := model.NewVideoMetadata(info, "The sky is blue today", frames)

	_, err := uuid.Parse(meta.ID)
	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now(), meta.CreatedAt, time.Second)
	assert.Equal(t, "blue-sky", meta.Title)
	assert.Equal(t, "https://example.com/v", meta.VideoURI)
	assert.Equal(t, []string{"a blue sky", "a cloud"}, meta.FrameDescriptions)

	again := model.NewVideoMetadata(info, "The sky is blue today", frames)
	assert.NotEqual(t, meta.ID, again.ID)
}

func TestNewIndexedDocumentPrefixesContent(t *testing.T) {
	transcript := model.NewIndexedDocument(model.Chunk{Text: "hello", Type: model.ContentTypeTranscript, StartTime: 1, EndTime: 2, Title: "t"})
	scene := model.NewIndexedDocument(model.Chunk{Text: "a dog", Type: model.ContentTypeScene, StartTime: 0, EndTime: 10, Title: "t"})

	assert.Equal(t, "Transcript: hello", transcript.Content)
	assert.Equal(t, "Scene: a dog", scene.Content)
	assert.Equal(t, model.ContentTypeScene, scene.Metadata.Type)
	assert.Equal(t, 10.0, scene.Metadata.EndTime)
	assert.NotEqual(t, transcript.ID, scene.ID)
}

func TestFilterMatches(t *testing.T) {
	scene := model.ContentTypeScene
	title := "x"
	doc := model.DocumentMetadata{Type: model.ContentTypeScene, Title: "x"}

	assert.True(t, model.Filter{}.Matches(doc))
	assert.True(t, model.Filter{Type: &scene}.Matches(doc))
	assert.True(t, model.Filter{Type: &scene, Title: &title}.Matches(doc))

	other := "y"
	assert.False(t, model.Filter{Type: &scene, Title: &other}.Matches(doc))
	transcript := model.ContentTypeTranscript
	assert.False(t, model.Filter{Type: &transcript}.Matches(doc))
}

func TestTranscriptText(t *testing.T) {
	tr := model.Transcript{Segments: []model.TranscriptSegment{{Text: "The sky"}, {Text: "is blue today"}}}
	assert.Equal(t, "The sky is blue today", tr.Text())
}

func TestParseContentType(t *testing.T) {
	ct, err := model.ParseContentType("scene")
	assert.NoError(t, err)
	assert.Equal(t, model.ContentTypeScene, ct)
	_, err = model.ParseContentType("audio")
	assert.Error(t, err)
}
