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
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	downloadDestinationPrefix = "[download] Destination: "
	extractAudioPrefix        = "[ExtractAudio] Destination: "
	mergerPrefix              = "[Merger] Merging formats into "
	alreadyDownloadedSuffix   = " has already been downloaded"
)

// ErrEmptyTitle is returned when yt-dlp resolves a video without a title.
var ErrEmptyTitle = errors.New("downloader returned an empty title")

// CaptionTrack is a subtitle language offered by the video platform.
type CaptionTrack struct {
	Language  string
	Automatic bool
}

// VideoDescriptor is the subset of yt-dlp's JSON metadata the pipeline uses.
type VideoDescriptor struct {
	Title             string                     `json:"title"`
	Description       string                     `json:"description"`
	WebpageURL        string                     `json:"webpage_url"`
	Subtitles         map[string]json.RawMessage `json:"subtitles"`
	AutomaticCaptions map[string]json.RawMessage `json:"automatic_captions"`
}

// CaptionTracks lists uploaded subtitles before automatic captions, each
// group sorted by language code.
func (d *VideoDescriptor) CaptionTracks() []CaptionTrack {
	tracks := make([]CaptionTrack, 0, len(d.Subtitles)+len(d.AutomaticCaptions))
	for _, lang := range sortedKeys(d.Subtitles) {
		tracks = append(tracks, CaptionTrack{Language: lang})
	}
	for _, lang := range sortedKeys(d.AutomaticCaptions) {
		tracks = append(tracks, CaptionTrack{Language: lang, Automatic: true})
	}
	return tracks
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k == "live_chat" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// YtDlp wraps the yt-dlp executable.
type YtDlp struct {
	Path   string
	Format string
	Runner CommandRunner
}

func NewYtDlp(path string, format string, runner CommandRunner) *YtDlp {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &YtDlp{Path: path, Format: format, Runner: runner}
}

// Describe resolves the metadata of url without downloading media.
func (y *YtDlp) Describe(ctx context.Context, url string) (*VideoDescriptor, error) {
	out, err := y.Runner.Run(ctx, y.Path, "--dump-single-json", "--no-playlist", "--skip-download", "--no-warnings", url)
	if err != nil {
		return nil, err
	}
	var d VideoDescriptor
	if err := json.Unmarshal(out, &d); err != nil {
		return nil, fmt.Errorf("failed to decode video metadata: %w", err)
	}
	if strings.TrimSpace(d.Title) == "" {
		return nil, ErrEmptyTitle
	}
	return &d, nil
}

// Download fetches the video and audio streams of url into outDir using name
// as the file stem. The audio path is empty when yt-dlp produced no separate
// audio file.
func (y *YtDlp) Download(ctx context.Context, url string, outDir string, name string) (videoPath string, audioPath string, err error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", "", err
	}
	out, err := y.Runner.Run(ctx, y.Path,
		"-f", y.Format,
		"-o", filepath.Join(outDir, name+".%(ext)s"),
		"--extract-audio",
		"--audio-format", "m4a",
		"--audio-quality", "0",
		"--keep-video",
		"--no-playlist",
		"--newline",
		url,
	)
	if err != nil {
		return "", "", err
	}
	videoPath, audioPath = ParseDownloadOutput(string(out))
	if videoPath == "" {
		return "", "", errors.New("could not determine downloaded video file")
	}
	return videoPath, audioPath, nil
}

// ParseDownloadOutput finds the final video and audio files in yt-dlp's
// standard output. A merged file wins over the per-format downloads.
func ParseDownloadOutput(out string) (videoPath string, audioPath string) {
	var merged string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		var path string
		switch {
		case strings.HasPrefix(line, mergerPrefix):
			merged = strings.Trim(strings.TrimPrefix(line, mergerPrefix), `"`)
			continue
		case strings.HasPrefix(line, extractAudioPrefix):
			audioPath = strings.TrimPrefix(line, extractAudioPrefix)
			continue
		case strings.HasPrefix(line, downloadDestinationPrefix):
			path = strings.TrimPrefix(line, downloadDestinationPrefix)
		case strings.HasPrefix(line, "[download] ") && strings.HasSuffix(line, alreadyDownloadedSuffix):
			path = strings.TrimSuffix(strings.TrimPrefix(line, "[download] "), alreadyDownloadedSuffix)
		default:
			continue
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".mp4", ".webm", ".mkv", ".mov":
			videoPath = path
		case ".m4a", ".mp3", ".opus", ".aac", ".wav":
			if audioPath == "" {
				audioPath = path
			}
		}
	}
	if merged != "" {
		videoPath = merged
	}
	return videoPath, audioPath
}

// FetchCaptions downloads one caption track of url as WebVTT and returns the
// file path.
func (y *YtDlp) FetchCaptions(ctx context.Context, url string, track CaptionTrack, outDir string, name string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	writeFlag := "--write-subs"
	if track.Automatic {
		writeFlag = "--write-auto-subs"
	}
	_, err := y.Runner.Run(ctx, y.Path,
		"--skip-download",
		"--no-playlist",
		writeFlag,
		"--sub-langs", track.Language,
		"--sub-format", "vtt",
		"-o", filepath.Join(outDir, name+".%(ext)s"),
		url,
	)
	if err != nil {
		return "", err
	}
	path := filepath.Join(outDir, fmt.Sprintf("%s.%s.vtt", name, track.Language))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("caption track %s was not written: %w", track.Language, err)
	}
	return path, nil
}
