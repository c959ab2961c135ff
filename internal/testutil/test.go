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

// Package test holds configuration helpers and in-memory fakes shared by
// the test suites.
package test

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/jaycherian/gcp-go-video-rag/internal/cloud"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/services"
)

type StateManager struct {
	config *cloud.Config
}

var state = &StateManager{}

func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// SetupOS points the configuration loader at the test overlay.
func SetupOS() (err error) {
	if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
		return err
	}
	return os.Setenv(cloud.EnvConfigRuntime, "test")
}

// GetConfig loads the test configuration once.
func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(config)
		state.config = config
	}
	return state.config
}

// HashEmbedder is a deterministic bag of words embedder. Texts sharing
// more words are closer; identical word sets score 1.
type HashEmbedder struct {
	Dimensions int
	mu         sync.Mutex
	calls      int
}

func NewHashEmbedder() *HashEmbedder { return &HashEmbedder{Dimensions: 256} }

func (h *HashEmbedder) Name() string { return "hash" }

func (h *HashEmbedder) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	v := make([]float32, h.Dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		if w == "transcript" || w == "scene" {
			continue
		}
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		v[int(f.Sum32())%h.Dimensions]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range v {
			v[i] = float32(float64(v[i]) / norm)
		}
	}
	return v, nil
}

// FailingEmbedder fails every call.
type FailingEmbedder struct{ Err error }

func (f FailingEmbedder) Name() string { return "failing" }

func (f FailingEmbedder) Embed(context.Context, string) ([]float32, error) { return nil, f.Err }

// ScriptedGenerator answers prompts with Reply, or with the result of
// Respond when set. Prompts are recorded.
type ScriptedGenerator struct {
	Model   string
	Reply   string
	Err     error
	Respond func(prompt string) (string, error)

	mu      sync.Mutex
	Prompts []string
}

func (s *ScriptedGenerator) ModelName() string { return s.Model }

func (s *ScriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.Prompts = append(s.Prompts, prompt)
	s.mu.Unlock()
	if s.Respond != nil {
		return s.Respond(prompt)
	}
	return s.Reply, s.Err
}

// FakeRunner records commands. Respond, when set, produces the result;
// otherwise the output registered for the program name is returned.
type FakeRunner struct {
	Outputs map[string][]byte
	Respond func(name string, args []string) ([]byte, error)

	mu    sync.Mutex
	Calls [][]string
}

func (f *FakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, append([]string{name}, args...))
	f.mu.Unlock()
	if f.Respond != nil {
		return f.Respond(name, args)
	}
	return f.Outputs[name], nil
}

// ArgAfter returns the argument following flag, or "".
func ArgAfter(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// FakeCaptioner describes each frame by its file name. Batches listed in
// FailBatches (zero based) fail.
type FakeCaptioner struct {
	FailBatches map[int]bool
	batch       int
}

func (f *FakeCaptioner) Caption(_ context.Context, framePaths []string) ([]string, error) {
	b := f.batch
	f.batch++
	if f.FailBatches[b] {
		return nil, fmt.Errorf("batch %d failed", b)
	}
	out := make([]string, len(framePaths))
	for i, p := range framePaths {
		out[i] = "frame " + filepath.Base(p)
	}
	return out, nil
}

// FakeFrameSource reports a fixed stream and writes empty frame files.
type FakeFrameSource struct {
	FPS        float64
	FrameCount int
	Extracted  [][]int
}

func (f *FakeFrameSource) Probe(context.Context, string) (*services.VideoStream, error) {
	return &services.VideoStream{FPS: f.FPS, FrameCount: f.FrameCount}, nil
}

func (f *FakeFrameSource) ExtractFrames(_ context.Context, _ string, _ float64, indices []int, outDir string) ([]string, error) {
	f.Extracted = append(f.Extracted, indices)
	paths := make([]string, len(indices))
	for i, idx := range indices {
		paths[i] = filepath.Join(outDir, fmt.Sprintf("frame-%05d.jpg", idx))
		if err := os.WriteFile(paths[i], nil, 0o644); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// FakeNativeSource returns fixed platform captions, or Err.
type FakeNativeSource struct {
	Segments []model.TranscriptSegment
	Language string
	Err      error
}

func (f *FakeNativeSource) Fetch(context.Context, string, string) ([]model.TranscriptSegment, string, error) {
	if f.Err != nil {
		return nil, "", f.Err
	}
	return f.Segments, f.Language, nil
}

// FakeSpeechToText returns fixed segments and records the language asked for.
type FakeSpeechToText struct {
	Segments  []model.TranscriptSegment
	Err       error
	Languages []string
}

func (f *FakeSpeechToText) Transcribe(_ context.Context, _ string, language string) ([]model.TranscriptSegment, error) {
	f.Languages = append(f.Languages, language)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Segments, nil
}

// FakeTranslator maps texts through Dictionary. Unknown texts, or any text
// after FailAfter successful calls, fail.
type FakeTranslator struct {
	Dictionary map[string]string
	FailAfter  int
	Calls      int
}

var ErrTranslation = errors.New("translation unavailable")

func (f *FakeTranslator) Translate(_ context.Context, text string, _ string, _ string) (string, error) {
	f.Calls++
	if f.FailAfter > 0 && f.Calls > f.FailAfter {
		return "", ErrTranslation
	}
	out, ok := f.Dictionary[text]
	if !ok {
		return "", ErrTranslation
	}
	return out, nil
}

// GetTestVideoDescriptor is yt-dlp --dump-single-json output for a video with
// manual English and automatic Hindi captions.
func GetTestVideoDescriptor() string {
	return `{
  "id": "abc123",
  "title": "Sky Facts: Why Is It Blue?",
  "description": "A short video about the sky.",
  "webpage_url": "https://www.youtube.com/watch?v=abc123",
  "subtitles": {
    "en": [{"ext": "vtt", "url": "https://example.com/en.vtt"}],
    "live_chat": [{"ext": "json", "url": "https://example.com/chat.json"}]
  },
  "automatic_captions": {
    "hi": [{"ext": "vtt", "url": "https://example.com/hi.vtt"}]
  }
}`
}

// GetTestWebVTT is a caption file with a header, a styled cue and a repeated
// rolling cue.
func GetTestWebVTT() string {
	return `WEBVTT
Kind: captions
Language: en

00:00:00.000 --> 00:00:02.000
The sky is blue today

00:00:02.000 --> 00:00:04.500 align:start position:0%
<c>Clouds</c> are white

00:00:04.500 --> 00:00:06.000
Clouds are white
`
}

// GetTestAutoCaptionWebVTT returns a rolling auto-generated caption track:
// each cue repeats the previous line, short transition cues hold the old line
// alone and a single space line sits inside the cues.
func GetTestAutoCaptionWebVTT() string {
	return "WEBVTT\nKind: captions\nLanguage: en\n\n" +
		"00:00:00.000 --> 00:00:02.000 align:start position:0%\n" +
		" \n" +
		"the<00:00:00.500><c> sky</c><00:00:01.000><c> is</c>\n\n" +
		"00:00:02.000 --> 00:00:02.010 align:start position:0%\n" +
		"the sky is\n" +
		" \n\n" +
		"00:00:02.010 --> 00:00:04.000 align:start position:0%\n" +
		"the sky is\n" +
		"blue<00:00:02.500><c> today</c>\n\n" +
		"00:00:04.000 --> 00:00:04.010 align:start position:0%\n" +
		"blue today\n" +
		" \n\n" +
		"00:00:04.010 --> 00:00:06.000 align:start position:0%\n" +
		"blue today\n" +
		"and<00:00:04.500><c> warm</c>\n"
}

// FakeDownloader writes an empty video file named after the slug of
// Info.Title into Dir. Like the real downloader it reports the slug as the
// title.
type FakeDownloader struct {
	Dir      string
	Info     model.VideoInfo
	NoAudio  bool
	Err      error
	Requests []string
}

func (f *FakeDownloader) Download(_ context.Context, url string) (*model.DownloadResult, error) {
	f.Requests = append(f.Requests, url)
	if f.Err != nil {
		return nil, f.Err
	}
	stem := services.Slugify(f.Info.Title)
	video := filepath.Join(f.Dir, stem+".mp4")
	if err := os.WriteFile(video, nil, 0o644); err != nil {
		return nil, err
	}
	out := &model.DownloadResult{VideoInfo: f.Info, VideoPath: video}
	out.Title = stem
	if out.VideoURI == "" {
		out.VideoURI = url
	}
	if !f.NoAudio {
		out.AudioPath = filepath.Join(f.Dir, stem+".m4a")
		if err := os.WriteFile(out.AudioPath, nil, 0o644); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FakeAudioExtractor creates the requested audio file.
type FakeAudioExtractor struct {
	Err   error
	Calls [][2]string
}

func (f *FakeAudioExtractor) ExtractAudio(_ context.Context, videoPath string, outPath string) error {
	f.Calls = append(f.Calls, [2]string{videoPath, outPath})
	if f.Err != nil {
		return f.Err
	}
	return os.WriteFile(outPath, nil, 0o644)
}

// MemoryMetadataRepository keeps records in memory, newest last.
type MemoryMetadataRepository struct {
	Err    error
	mu     sync.Mutex
	Videos []*model.VideoMetadata
}

func (m *MemoryMetadataRepository) Save(_ context.Context, video *model.VideoMetadata) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Videos = append(m.Videos, video)
	return nil
}

func (m *MemoryMetadataRepository) List(_ context.Context, limit int) ([]*model.VideoMetadata, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.VideoMetadata, 0, min(limit, len(m.Videos)))
	for i := len(m.Videos) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.Videos[i])
	}
	return out, nil
}
