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
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
	"github.com/jaycherian/gcp-go-video-rag/internal/core/services"
	test "github.com/jaycherian/gcp-go-video-rag/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestParseWebVTT(t *testing.T) {
	segments, err := services.ParseWebVTT(strings.NewReader(test.GetTestWebVTT()))
	test.HandleErr(err, t)
	assert.Equal(t, []model.TranscriptSegment{
		{Text: "The sky is blue today", StartTime: 0, EndTime: 2},
		{Text: "Clouds are white", StartTime: 2, EndTime: 6},
	}, segments)
}

func TestParseWebVTTCollapsesRollingAutoCaptions(t *testing.T) {
	segments, err := services.ParseWebVTT(strings.NewReader(test.GetTestAutoCaptionWebVTT()))
	test.HandleErr(err, t)
	assert.Equal(t, []model.TranscriptSegment{
		{Text: "the sky is", StartTime: 0, EndTime: 2.01},
		{Text: "blue today", StartTime: 2.01, EndTime: 4.01},
		{Text: "and warm", StartTime: 4.01, EndTime: 6},
	}, segments)
}

func TestParseWebVTTKeepsCueWithSpaceLine(t *testing.T) {
	doc := "WEBVTT\n\n00:00:01.000 --> 00:00:03.000\n \nhello there\n\n"
	segments, err := services.ParseWebVTT(strings.NewReader(doc))
	test.HandleErr(err, t)
	assert.Equal(t, []model.TranscriptSegment{{Text: "hello there", StartTime: 1, EndTime: 3}}, segments)
}

func TestWriteWebVTTCanBeReadBack(t *testing.T) {
	in := []model.TranscriptSegment{
		{Text: "Hello", StartTime: 0.5, EndTime: 1.25},
		{Text: "World", StartTime: 3661.5, EndTime: 3662},
	}
	var sb strings.Builder
	test.HandleErr(services.WriteWebVTT(&sb, in), t)
	assert.Contains(t, sb.String(), "01:01:01.500 --> 01:01:02.000")

	out, err := services.ParseWebVTT(strings.NewReader(sb.String()))
	test.HandleErr(err, t)
	assert.Equal(t, in, out)
}

func TestParseTimestamp(t *testing.T) {
	v, err := services.ParseTimestamp("01:02.500")
	test.HandleErr(err, t)
	assert.Equal(t, 62.5, v)

	_, err = services.ParseTimestamp("garbage")
	assert.Error(t, err)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "sky-facts-why-is-it-blue", services.Slugify("Sky Facts: Why Is It Blue?"))
	assert.Equal(t, "", services.Slugify("   "))
	assert.LessOrEqual(t, len(services.Slugify(strings.Repeat("word ", 100))), 120)
}

func TestCaptionTracksPreferUploadedSubtitles(t *testing.T) {
	runner := &test.FakeRunner{Outputs: map[string][]byte{"yt-dlp": []byte(test.GetTestVideoDescriptor())}}
	descriptor, err := services.NewYtDlp("yt-dlp", "best", runner).Describe(context.Background(), "https://www.youtube.com/watch?v=abc123")
	test.HandleErr(err, t)

	tracks := descriptor.CaptionTracks()
	assert.Equal(t, []services.CaptionTrack{{Language: "en"}, {Language: "hi", Automatic: true}}, tracks)

	chosen, ok := services.ChooseCaptionTrack(tracks, "hi")
	assert.True(t, ok)
	assert.Equal(t, "hi", chosen.Language)

	chosen, ok = services.ChooseCaptionTrack(tracks, "fr")
	assert.True(t, ok)
	assert.Equal(t, "en", chosen.Language)

	_, ok = services.ChooseCaptionTrack(nil, "en")
	assert.False(t, ok)
}

func TestDescribeRejectsEmptyTitle(t *testing.T) {
	runner := &test.FakeRunner{Outputs: map[string][]byte{"yt-dlp": []byte(`{"title": "  "}`)}}
	_, err := services.NewYtDlp("yt-dlp", "best", runner).Describe(context.Background(), "https://example.com/v")
	assert.ErrorIs(t, err, services.ErrEmptyTitle)
}

func TestSameLanguage(t *testing.T) {
	assert.True(t, services.SameLanguage("en-US", "en"))
	assert.True(t, services.SameLanguage("EN", "en_GB"))
	assert.False(t, services.SameLanguage("hi", "en"))
	assert.False(t, services.SameLanguage("", ""))
}

func TestParseDownloadOutput(t *testing.T) {
	out := strings.Join([]string{
		"[youtube] abc123: Downloading webpage",
		"[download] Destination: downloads/sky.f137.mp4",
		"[download] 100% of 10.00MiB",
		"[download] Destination: downloads/sky.f140.m4a",
		`[Merger] Merging formats into "downloads/sky.mp4"`,
		"[ExtractAudio] Destination: downloads/sky.m4a",
	}, "\n")
	video, audio := services.ParseDownloadOutput(out)
	assert.Equal(t, "downloads/sky.mp4", video)
	assert.Equal(t, "downloads/sky.m4a", audio)

	video, audio = services.ParseDownloadOutput("[download] downloads/sky.mp4 has already been downloaded\n")
	assert.Equal(t, "downloads/sky.mp4", video)
	assert.Equal(t, "", audio)
}

func TestDownloaderUsesSlugAsFileStem(t *testing.T) {
	dir := t.TempDir()
	runner := &test.FakeRunner{Respond: func(name string, args []string) ([]byte, error) {
		if slices.Contains(args, "--dump-single-json") {
			return []byte(test.GetTestVideoDescriptor()), nil
		}
		stem := strings.TrimSuffix(test.ArgAfter(args, "-o"), ".%(ext)s")
		return []byte(fmt.Sprintf("[Merger] Merging formats into \"%s.mp4\"\n[ExtractAudio] Destination: %s.m4a\n", stem, stem)), nil
	}}
	downloader := services.NewDownloader(services.NewYtDlp("yt-dlp", "best", runner), dir)

	result, err := downloader.Download(context.Background(), "https://www.youtube.com/watch?v=abc123")
	test.HandleErr(err, t)
	assert.Equal(t, "sky-facts-why-is-it-blue", result.Title)
	assert.Equal(t, "A short video about the sky.", result.Description)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", result.VideoURI)
	assert.Equal(t, filepath.Join(dir, "sky-facts-why-is-it-blue.mp4"), result.VideoPath)
	assert.Equal(t, filepath.Join(dir, "sky-facts-why-is-it-blue.m4a"), result.AudioPath)
	assert.Len(t, runner.Calls, 2)
}

func TestDownloaderFailsWhenToolFails(t *testing.T) {
	runner := &test.FakeRunner{Respond: func(string, []string) ([]byte, error) {
		return nil, fmt.Errorf("yt-dlp failed: exit status 1")
	}}
	_, err := services.NewDownloader(services.NewYtDlp("yt-dlp", "best", runner), t.TempDir()).Download(context.Background(), "https://example.com/v")
	assert.Error(t, err)
	assert.Len(t, runner.Calls, 1)
}

func TestParseProbeOutput(t *testing.T) {
	stream, err := services.ParseProbeOutput([]byte(`{"streams":[{"avg_frame_rate":"30000/1001","r_frame_rate":"30000/1001","nb_read_packets":"900"}]}`))
	test.HandleErr(err, t)
	assert.InDelta(t, 29.97, stream.FPS, 0.01)
	assert.Equal(t, 900, stream.FrameCount)

	stream, err = services.ParseProbeOutput([]byte(`{"streams":[{"avg_frame_rate":"0/0","r_frame_rate":"25/1","duration":"10.0"}]}`))
	test.HandleErr(err, t)
	assert.Equal(t, 25.0, stream.FPS)
	assert.Equal(t, 250, stream.FrameCount)

	_, err = services.ParseProbeOutput([]byte(`{"streams":[]}`))
	assert.Error(t, err)
}

func TestExtractFramesSelectsRequestedIndices(t *testing.T) {
	runner := &test.FakeRunner{Respond: func(name string, args []string) ([]byte, error) {
		dir := filepath.Dir(args[len(args)-1])
		for i := 1; i <= 3; i++ {
			if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("frame-%05d.jpg", i)), []byte{0xff, 0xd8, 0xff}, 0o644); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}}
	ffmpeg := services.NewFFmpeg("ffmpeg", "ffprobe", runner)

	paths, err := ffmpeg.ExtractFrames(context.Background(), "video.mp4", 30, []int{0, 300, 600}, t.TempDir())
	test.HandleErr(err, t)
	assert.Len(t, paths, 3)
	assert.Equal(t, `select=eq(n\,0)+eq(n\,300)+eq(n\,600)`, test.ArgAfter(runner.Calls[0][1:], "-vf"))
	assert.Equal(t, "", test.ArgAfter(runner.Calls[0][1:], "-ss"))

	_, err = ffmpeg.ExtractFrames(context.Background(), "video.mp4", 30, []int{0, 300}, t.TempDir())
	assert.Error(t, err)
}

func TestExtractFramesSeeksToFirstIndexOfBatch(t *testing.T) {
	runner := &test.FakeRunner{Respond: func(name string, args []string) ([]byte, error) {
		dir := filepath.Dir(args[len(args)-1])
		for i := 1; i <= 3; i++ {
			if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("frame-%05d.jpg", i)), []byte{0xff, 0xd8, 0xff}, 0o644); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}}
	ffmpeg := services.NewFFmpeg("ffmpeg", "ffprobe", runner)

	_, err := ffmpeg.ExtractFrames(context.Background(), "video.mp4", 30, []int{4800, 5100, 5400}, t.TempDir())
	test.HandleErr(err, t)
	args := runner.Calls[0][1:]
	assert.Equal(t, "159.983333", test.ArgAfter(args, "-ss"))
	assert.Less(t, slices.Index(args, "-ss"), slices.Index(args, "-i"))
	assert.Equal(t, `select=eq(n\,0)+eq(n\,300)+eq(n\,600)`, test.ArgAfter(args, "-vf"))
}

func TestSeekOffset(t *testing.T) {
	assert.Equal(t, 0.0, services.SeekOffset(0, 30))
	assert.Equal(t, 0.0, services.SeekOffset(300, 0))
	assert.InDelta(t, 299.5/30, services.SeekOffset(300, 30), 1e-9)
}

func TestFrameMIMEType(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 0x49, 0x48, 0x44, 0x52}
	assert.Equal(t, "image/png", services.FrameMIMEType(png))
	assert.Equal(t, "image/jpeg", services.FrameMIMEType([]byte("not an image")))
}

func TestParseCaptions(t *testing.T) {
	captions, err := services.ParseCaptions(`[" a dog ", "a cat"]`, 2)
	test.HandleErr(err, t)
	assert.Equal(t, []string{"a dog", "a cat"}, captions)

	_, err = services.ParseCaptions(`["a dog"]`, 2)
	assert.Error(t, err)
	_, err = services.ParseCaptions(`a dog`, 1)
	assert.Error(t, err)
}

func TestChunkersAreOneToOne(t *testing.T) {
	info := model.VideoInfo{Title: "sky", Description: "about the sky", VideoURI: "https://example.com/sky"}
	chunks := services.ChunkTranscript([]model.TranscriptSegment{
		{Text: "The sky is blue today", StartTime: 0, EndTime: 2},
		{Text: "Clouds are white", StartTime: 2, EndTime: 6},
	}, info)
	assert.Len(t, chunks, 2)
	assert.Equal(t, model.Chunk{
		Text: "The sky is blue today", Type: model.ContentTypeTranscript, StartTime: 0, EndTime: 2,
		Title: "sky", Description: "about the sky", VideoURI: "https://example.com/sky",
	}, chunks[0])

	scenes := services.ChunkScenes([]model.SceneCaption{{StartTime: 10, EndTime: 20, Description: "a blue sky"}}, info)
	assert.Len(t, scenes, 1)
	assert.Equal(t, model.ContentTypeScene, scenes[0].Type)
	assert.Equal(t, 10.0, scenes[0].StartTime)
	assert.Equal(t, 20.0, scenes[0].EndTime)

	assert.Empty(t, services.ChunkTranscript(nil, info))
}
