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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
)

// ErrNoNativeTranscript means the video platform offers no caption track.
var ErrNoNativeTranscript = errors.New("no platform transcript available")

// NativeCaptionSource fetches a transcript published by the video platform.
// It returns the segments and their language.
type NativeCaptionSource interface {
	Fetch(ctx context.Context, videoURI string, workDir string) ([]model.TranscriptSegment, string, error)
}

// YtDlpCaptionSource reads platform captions through yt-dlp, preferring the
// configured language and otherwise taking the first track offered.
type YtDlpCaptionSource struct {
	ytdlp     *YtDlp
	preferred string
}

func NewYtDlpCaptionSource(ytdlp *YtDlp, preferred string) *YtDlpCaptionSource {
	return &YtDlpCaptionSource{ytdlp: ytdlp, preferred: preferred}
}

func (y *YtDlpCaptionSource) Fetch(ctx context.Context, videoURI string, workDir string) ([]model.TranscriptSegment, string, error) {
	descriptor, err := y.ytdlp.Describe(ctx, videoURI)
	if err != nil {
		return nil, "", err
	}
	track, ok := ChooseCaptionTrack(descriptor.CaptionTracks(), y.preferred)
	if !ok {
		return nil, "", ErrNoNativeTranscript
	}
	path, err := y.ytdlp.FetchCaptions(ctx, videoURI, track, workDir, "native")
	if err != nil {
		return nil, "", err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	segments, err := ParseWebVTT(file)
	if err != nil {
		return nil, "", err
	}
	if len(segments) == 0 {
		return nil, "", ErrNoNativeTranscript
	}
	return segments, track.Language, nil
}

// ChooseCaptionTrack returns the first track in preferred, else the first
// track. Tracks are expected in priority order.
func ChooseCaptionTrack(tracks []CaptionTrack, preferred string) (CaptionTrack, bool) {
	if len(tracks) == 0 {
		return CaptionTrack{}, false
	}
	for _, t := range tracks {
		if SameLanguage(t.Language, preferred) {
			return t, true
		}
	}
	return tracks[0], true
}

// SameLanguage compares the primary subtags of two language codes, so
// "en-US" matches "en".
func SameLanguage(a, b string) bool {
	primary := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		if i := strings.IndexAny(s, "-_"); i >= 0 {
			s = s[:i]
		}
		return s
	}
	return primary(a) != "" && primary(a) == primary(b)
}

// TranscriptAcquirer produces a caption file in the target language.
//
//  1. Platform captions, preferring the preferred language.
//  2. Otherwise speech to text in the fallback language. Failure is terminal.
//  3. Captions not in the target language are translated one by one. Any
//     translation failure is terminal and nothing is written.
type TranscriptAcquirer struct {
	native     NativeCaptionSource
	stt        SpeechToText
	translator Translator
	target     string
	fallback   string
	captionDir string
}

func NewTranscriptAcquirer(native NativeCaptionSource, stt SpeechToText, translator Translator, target string, fallback string, captionDir string) *TranscriptAcquirer {
	return &TranscriptAcquirer{
		native:     native,
		stt:        stt,
		translator: translator,
		target:     target,
		fallback:   fallback,
		captionDir: captionDir,
	}
}

// Acquire returns the transcript of the video, written to
// <captionDir>/<title>.vtt.
func (a *TranscriptAcquirer) Acquire(ctx context.Context, info model.VideoInfo, audioPath string) (*model.Transcript, error) {
	if err := os.MkdirAll(a.captionDir, 0o755); err != nil {
		return nil, err
	}
	workDir, err := os.MkdirTemp(a.captionDir, ".work-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(workDir)

	segments, language, err := a.fetchNative(ctx, info, workDir)
	if err != nil {
		slog.InfoContext(ctx, "no platform transcript, using speech to text", "title", info.Title, "reason", err)
		if a.stt == nil || audioPath == "" {
			return nil, fmt.Errorf("no transcript source available for %s", info.Title)
		}
		segments, err = a.stt.Transcribe(ctx, audioPath, a.fallback)
		if err != nil {
			return nil, fmt.Errorf("speech to text failed: %w", err)
		}
		language = a.fallback
	}

	if !SameLanguage(language, a.target) {
		if segments, err = a.translate(ctx, segments, language); err != nil {
			return nil, err
		}
		language = a.target
	}

	path, err := a.write(info.Title, segments)
	if err != nil {
		return nil, err
	}
	return &model.Transcript{Segments: segments, Language: language, CaptionFile: path}, nil
}

func (a *TranscriptAcquirer) fetchNative(ctx context.Context, info model.VideoInfo, workDir string) ([]model.TranscriptSegment, string, error) {
	if a.native == nil {
		return nil, "", ErrNoNativeTranscript
	}
	segments, language, err := a.native.Fetch(ctx, info.VideoURI, workDir)
	if err == nil && len(segments) == 0 {
		err = ErrNoNativeTranscript
	}
	return segments, language, err
}

func (a *TranscriptAcquirer) translate(ctx context.Context, segments []model.TranscriptSegment, source string) ([]model.TranscriptSegment, error) {
	if a.translator == nil {
		return nil, fmt.Errorf("transcript is in %q and no translator is configured", source)
	}
	translated := make([]model.TranscriptSegment, len(segments))
	for i, s := range segments {
		text, err := a.translator.Translate(ctx, s.Text, source, a.target)
		if err != nil {
			return nil, fmt.Errorf("translation failed at caption %d: %w", i+1, err)
		}
		translated[i] = model.TranscriptSegment{Text: text, StartTime: s.StartTime, EndTime: s.EndTime}
	}
	return translated, nil
}

// write stores segments in a temporary file and moves it into place once it
// is complete.
func (a *TranscriptAcquirer) write(title string, segments []model.TranscriptSegment) (string, error) {
	tmp, err := os.CreateTemp(a.captionDir, title+".*.vtt.tmp")
	if err != nil {
		return "", err
	}
	if err := WriteWebVTT(tmp, segments); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write caption file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	final := filepath.Join(a.captionDir, title+".vtt")
	if err := MoveFile(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return final, nil
}
