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

package services_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/services"
	test "github.com/jaycherian/gcp-go-video-rag/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSampleFrameIndices(t *testing.T) {
	assert.Equal(t, []int{0, 300, 600}, services.SampleFrameIndices(30, 10, 900))
	assert.Equal(t, []int{0, 300, 600, 900}, services.SampleFrameIndices(30, 10, 901))
	assert.Equal(t, []int{0, 1, 2}, services.SampleFrameIndices(0.01, 10, 3))
	assert.Empty(t, services.SampleFrameIndices(30, 10, 0))
}

func collect(t *testing.T, sampler *services.SceneSampler) []model.SceneCaption {
	seq, err := sampler.Sample(context.Background(), "video.mp4")
	test.HandleErr(err, t)
	var out []model.SceneCaption
	for c := range seq {
		out = append(out, c)
	}
	return out
}

func TestSceneSamplerCaptionsEveryInterval(t *testing.T) {
	frames := &test.FakeFrameSource{FPS: 30, FrameCount: 900}
	sampler := services.NewSceneSampler(frames, &test.FakeCaptioner{}, 10, 2, "Error in description", t.TempDir())

	captions := collect(t, sampler)
	assert.Equal(t, []model.SceneCaption{
		{StartTime: 0, EndTime: 10, Description: "frame frame-00000.jpg"},
		{StartTime: 10, EndTime: 20, Description: "frame frame-00300.jpg"},
		{StartTime: 20, EndTime: 30, Description: "frame frame-00600.jpg"},
	}, captions)
	assert.Equal(t, [][]int{{0, 300}, {600}}, frames.Extracted)
}

func TestSceneSamplerUsesPlaceholderForFailedBatch(t *testing.T) {
	frames := &test.FakeFrameSource{FPS: 30, FrameCount: 1200}
	captioner := &test.FakeCaptioner{FailBatches: map[int]bool{0: true}}
	sampler := services.NewSceneSampler(frames, captioner, 10, 2, "Error in description", t.TempDir())

	captions := collect(t, sampler)
	assert.Len(t, captions, 4)
	assert.Equal(t, "Error in description", captions[0].Description)
	assert.Equal(t, "Error in description", captions[1].Description)
	assert.Equal(t, "frame frame-00600.jpg", captions[2].Description)
	assert.Equal(t, "frame frame-00900.jpg", captions[3].Description)
}

func TestSceneSamplerIsLazy(t *testing.T) {
	frames := &test.FakeFrameSource{FPS: 30, FrameCount: 1200}
	sampler := services.NewSceneSampler(frames, &test.FakeCaptioner{}, 10, 2, "x", t.TempDir())
	seq, err := sampler.Sample(context.Background(), "video.mp4")
	test.HandleErr(err, t)

	for range seq {
		break
	}
	assert.Len(t, frames.Extracted, 1)
}

var englishSegments = []model.TranscriptSegment{{Text: "The sky is blue today", StartTime: 0, EndTime: 2}}

func readFile(t *testing.T, path string) string {
	raw, err := os.ReadFile(path)
	test.HandleErr(err, t)
	return string(raw)
}

func TestAcquireUsesEnglishPlatformCaptions(t *testing.T) {
	dir := t.TempDir()
	stt := &test.FakeSpeechToText{}
	translator := &test.FakeTranslator{}
	acquirer := services.NewTranscriptAcquirer(&test.FakeNativeSource{Segments: englishSegments, Language: "en"}, stt, translator, "en", "hi", dir)

	transcript, err := acquirer.Acquire(context.Background(), model.VideoInfo{Title: "sky"}, "sky.m4a")
	test.HandleErr(err, t)
	assert.Equal(t, englishSegments, transcript.Segments)
	assert.Equal(t, filepath.Join(dir, "sky.vtt"), transcript.CaptionFile)
	assert.Contains(t, readFile(t, transcript.CaptionFile), "00:00:00.000 --> 00:00:02.000\nThe sky is blue today")
	assert.Empty(t, stt.Languages)
	assert.Equal(t, 0, translator.Calls)
}

func TestAcquireFallsBackToSpeechAndTranslates(t *testing.T) {
	dir := t.TempDir()
	stt := &test.FakeSpeechToText{Segments: []model.TranscriptSegment{
		{Text: "आसमान नीला है", StartTime: 0, EndTime: 2},
		{Text: "बादल सफेद हैं", StartTime: 2, EndTime: 4},
	}}
	translator := &test.FakeTranslator{Dictionary: map[string]string{
		"आसमान नीला है": "The sky is blue",
		"बादल सफेद हैं": "Clouds are white",
	}}
	acquirer := services.NewTranscriptAcquirer(&test.FakeNativeSource{Err: services.ErrNoNativeTranscript}, stt, translator, "en", "hi", dir)

	transcript, err := acquirer.Acquire(context.Background(), model.VideoInfo{Title: "sky"}, "sky.m4a")
	test.HandleErr(err, t)
	assert.Equal(t, []string{"hi"}, stt.Languages)
	assert.Equal(t, 2, translator.Calls)
	assert.Equal(t, "en", transcript.Language)
	assert.Equal(t, []model.TranscriptSegment{
		{Text: "The sky is blue", StartTime: 0, EndTime: 2},
		{Text: "Clouds are white", StartTime: 2, EndTime: 4},
	}, transcript.Segments)
}

func TestAcquireTranslatesForeignPlatformCaptions(t *testing.T) {
	stt := &test.FakeSpeechToText{}
	translator := &test.FakeTranslator{Dictionary: map[string]string{"Le ciel est bleu": "The sky is blue"}}
	native := &test.FakeNativeSource{Segments: []model.TranscriptSegment{{Text: "Le ciel est bleu", StartTime: 1, EndTime: 3}}, Language: "fr"}
	acquirer := services.NewTranscriptAcquirer(native, stt, translator, "en", "hi", t.TempDir())

	transcript, err := acquirer.Acquire(context.Background(), model.VideoInfo{Title: "sky"}, "sky.m4a")
	test.HandleErr(err, t)
	assert.Equal(t, "The sky is blue", transcript.Segments[0].Text)
	assert.Empty(t, stt.Languages)
}

func TestAcquireTranslationFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	stt := &test.FakeSpeechToText{Segments: []model.TranscriptSegment{
		{Text: "one", StartTime: 0, EndTime: 1},
		{Text: "two", StartTime: 1, EndTime: 2},
	}}
	translator := &test.FakeTranslator{Dictionary: map[string]string{"one": "1", "two": "2"}, FailAfter: 1}
	acquirer := services.NewTranscriptAcquirer(nil, stt, translator, "en", "hi", dir)

	_, err := acquirer.Acquire(context.Background(), model.VideoInfo{Title: "sky"}, "sky.m4a")
	assert.ErrorIs(t, err, test.ErrTranslation)

	entries, err := os.ReadDir(dir)
	test.HandleErr(err, t)
	assert.Empty(t, entries)
}

func TestAcquireSpeechFailureIsTerminal(t *testing.T) {
	stt := &test.FakeSpeechToText{Err: errors.New("quota exceeded")}
	acquirer := services.NewTranscriptAcquirer(nil, stt, &test.FakeTranslator{}, "en", "hi", t.TempDir())

	_, err := acquirer.Acquire(context.Background(), model.VideoInfo{Title: "sky"}, "sky.m4a")
	assert.ErrorContains(t, err, "quota exceeded")
}
