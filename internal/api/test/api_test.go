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

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-video-rag/internal/api"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
	test "github.com/jaycherian/gcp-go-video-rag/internal/testutil"
	"github.com/stretchr/testify/assert"
)

type fakeIngestor struct {
	result *model.IngestionResult
	err    error
	urls   []string
}

func (f *fakeIngestor) Ingest(_ context.Context, url string) (*model.IngestionResult, error) {
	f.urls = append(f.urls, url)
	return f.result, f.err
}

type fakeQuerier struct {
	result  *model.QueryResult
	err     error
	queries []*model.Query
}

func (f *fakeQuerier) Query(_ context.Context, query *model.Query) (*model.QueryResult, error) {
	f.queries = append(f.queries, query)
	return f.result, f.err
}

type fakeCounter struct {
	count int
	err   error
}

func (f fakeCounter) Count(context.Context) (int, error) { return f.count, f.err }

func newRouter(ingestor api.Ingestor, querier api.Querier, lister api.VideoLister) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api.Health(r)
	api.VideoRouter(r, ingestor, querier)
	api.Dashboard(r.Group("/api/v1"), lister, fakeCounter{count: 7})
	return r
}

func post(r http.Handler, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	test.HandleErr(json.Unmarshal(w.Body.Bytes(), &out), t)
	return out
}

func TestProcessVideo(t *testing.T) {
	ingestor := &fakeIngestor{result: &model.IngestionResult{
		Message:          "Video processed successfully",
		Title:            "sky-facts",
		SceneCount:       2,
		TranscriptChunks: 1,
		ProcessedFile:    "uploads/captions/sky-facts.vtt",
		Description:      "About the sky",
	}}
	r := newRouter(ingestor, &fakeQuerier{}, nil)

	w := post(r, "/process-video/", `{"video_url": "https://www.youtube.com/watch?v=abc123"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"message": "Video processed successfully",
		"title": "sky-facts",
		"scene_count": 2,
		"transcript_chunks": 1,
		"processed_file": "uploads/captions/sky-facts.vtt",
		"description": "About the sky"
	}`, w.Body.String())
	assert.Equal(t, []string{"https://www.youtube.com/watch?v=abc123"}, ingestor.urls)
}

func TestProcessVideoValidation(t *testing.T) {
	ingestor := &fakeIngestor{}
	r := newRouter(ingestor, &fakeQuerier{}, nil)

	w := post(r, "/process-video/", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]any{"video_url": "This field is required."}, decode(t, w)["errors"])

	w = post(r, "/process-video/", `{"video_url": "not a url"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]any{"video_url": "Enter a valid URL."}, decode(t, w)["errors"])

	w = post(r, "/process-video/", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["errors"], "non_field_errors")

	assert.Empty(t, ingestor.urls)
}

func TestProcessVideoFailure(t *testing.T) {
	r := newRouter(&fakeIngestor{err: errors.New("video-download: HTTP Error 404")}, &fakeQuerier{}, nil)
	w := post(r, "/process-video/", `{"video_url": "https://example.com/missing"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, map[string]any{"error": "video-download: HTTP Error 404"}, decode(t, w))
}

func TestQueryVideo(t *testing.T) {
	querier := &fakeQuerier{result: &model.QueryResult{
		Query:  "What color is the sky?",
		Answer: "Blue.",
		Sources: []model.Source{{
			Content: "Transcript: The sky is blue today", Type: model.ContentTypeTranscript,
			StartTime: 0, EndTime: 2, VideoURI: "https://example.com/v", Title: "sky-facts", Score: 0.9,
		}},
		Model: "fake-llm",
	}}
	r := newRouter(&fakeIngestor{}, querier, nil)

	w := post(r, "/query-video/", `{"question": "What color is the sky?", "top_k": 5, "title": "sky-facts"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Blue.", body["answer"])
	assert.Equal(t, "fake-llm", body["model"])
	assert.Len(t, body["sources"], 1)
	assert.NotContains(t, body, "Intent")

	if assert.Len(t, querier.queries, 1) {
		q := querier.queries[0]
		assert.Equal(t, 5, q.TopK)
		assert.Equal(t, "sky-facts", *q.Title)
	}

	post(r, "/query-video/", `{"question": "What color is the sky?"}`)
	assert.Equal(t, 0, querier.queries[1].TopK)
	assert.Nil(t, querier.queries[1].Title)
}

func TestQueryVideoValidation(t *testing.T) {
	querier := &fakeQuerier{}
	r := newRouter(&fakeIngestor{}, querier, nil)

	w := post(r, "/query-video/", `{"top_k": 3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]any{"question": "This field is required."}, decode(t, w)["errors"])

	for _, k := range []string{"0", "11"} {
		w := post(r, "/query-video/", `{"question": "q", "top_k": `+k+`}`)
		assert.Equal(t, http.StatusBadRequest, w.Code, k)
		assert.Contains(t, decode(t, w)["errors"], "top_k")
	}
	assert.Empty(t, querier.queries)
}

func TestQueryVideoFailure(t *testing.T) {
	r := newRouter(&fakeIngestor{}, &fakeQuerier{err: errors.New("context-retrieve: index unavailable")}, nil)
	w := post(r, "/query-video/", `{"question": "q"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "context-retrieve: index unavailable", decode(t, w)["error"])
}

func TestDashboard(t *testing.T) {
	repo := &test.MemoryMetadataRepository{}
	for _, title := range []string{"first", "second", "third"} {
		test.HandleErr(repo.Save(context.Background(), &model.VideoMetadata{ID: title, Title: title}), t)
	}
	r := newRouter(&fakeIngestor{}, &fakeQuerier{}, repo)

	w := get(r, "/api/v1/videos?limit=2")
	assert.Equal(t, http.StatusOK, w.Code)
	var videos []model.VideoMetadata
	test.HandleErr(json.Unmarshal(w.Body.Bytes(), &videos), t)
	if assert.Len(t, videos, 2) {
		assert.Equal(t, "third", videos[0].Title)
		assert.Equal(t, "second", videos[1].Title)
	}

	w = get(r, "/api/v1/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"documents": 7}`, w.Body.String())

	w = get(r, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDashboardWithoutMetadata(t *testing.T) {
	r := newRouter(&fakeIngestor{}, &fakeQuerier{}, nil)
	assert.Equal(t, http.StatusNotFound, get(r, "/api/v1/videos").Code)
}
