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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	DefaultFFprobeArgs = "-v error -select_streams v:0 -count_packets -show_entries stream=avg_frame_rate,r_frame_rate,nb_read_packets,duration -of json"
	FramePattern       = "frame-%05d.jpg"
	CommandSeparator   = " "
)

// VideoStream describes the first video stream of a file.
type VideoStream struct {
	FPS        float64
	FrameCount int
}

// FFmpeg wraps the ffmpeg and ffprobe executables.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
	Runner      CommandRunner
}

func NewFFmpeg(ffmpegPath string, ffprobePath string, runner CommandRunner) *FFmpeg {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &FFmpeg{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, Runner: runner}
}

type probeOutput struct {
	Streams []struct {
		AvgFrameRate  string `json:"avg_frame_rate"`
		RFrameRate    string `json:"r_frame_rate"`
		NbReadPackets string `json:"nb_read_packets"`
		Duration      string `json:"duration"`
	} `json:"streams"`
}

// Probe reads the frame rate and frame count of videoPath.
func (f *FFmpeg) Probe(ctx context.Context, videoPath string) (*VideoStream, error) {
	args := append(strings.Split(DefaultFFprobeArgs, CommandSeparator), videoPath)
	out, err := f.Runner.Run(ctx, f.FFprobePath, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot open video %s: %w", videoPath, err)
	}
	return ParseProbeOutput(out)
}

// ParseProbeOutput decodes the JSON written by ffprobe with DefaultFFprobeArgs.
func ParseProbeOutput(out []byte) (*VideoStream, error) {
	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, errors.New("no video stream found")
	}
	s := probe.Streams[0]

	fps := parseRate(s.AvgFrameRate)
	if fps <= 0 {
		fps = parseRate(s.RFrameRate)
	}
	if fps <= 0 {
		return nil, fmt.Errorf("invalid frame rate %q", s.AvgFrameRate)
	}

	frames, err := strconv.Atoi(s.NbReadPackets)
	if err != nil || frames <= 0 {
		duration, dErr := strconv.ParseFloat(s.Duration, 64)
		if dErr != nil || duration <= 0 {
			return nil, errors.New("unable to determine frame count")
		}
		frames = int(math.Round(duration * fps))
	}
	return &VideoStream{FPS: fps, FrameCount: frames}, nil
}

func parseRate(in string) float64 {
	num, den, found := strings.Cut(in, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// SeekOffset returns the input seek, in seconds, at which decoding starts so
// that frame first is the first frame decoded. It lands half a frame early so
// timestamp rounding never skips that frame.
func SeekOffset(first int, fps float64) float64 {
	if first <= 0 || fps <= 0 {
		return 0
	}
	return (float64(first) - 0.5) / fps
}

// SelectExpression builds an ffmpeg select filter that keeps exactly the
// given frame indices, counted from frame base.
func SelectExpression(indices []int, base int) string {
	terms := make([]string, len(indices))
	for i, idx := range indices {
		terms[i] = fmt.Sprintf("eq(n\\,%d)", idx-base)
	}
	return "select=" + strings.Join(terms, "+")
}

// ExtractFrames writes the frames at indices into outDir as JPEG files and
// returns their paths in index order. Indices must be ascending. Decoding
// starts at the first index, so a batch only reads its own part of the video.
func (f *FFmpeg) ExtractFrames(ctx context.Context, videoPath string, fps float64, indices []int, outDir string) ([]string, error) {
	if len(indices) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	base := 0
	args := []string{"-v", "error", "-y"}
	if offset := SeekOffset(indices[0], fps); offset > 0 {
		base = indices[0]
		args = append(args, "-ss", strconv.FormatFloat(offset, 'f', 6, 64))
	}
	args = append(args,
		"-i", videoPath,
		"-vf", SelectExpression(indices, base),
		"-vsync", "vfr",
		"-q:v", "2",
		filepath.Join(outDir, FramePattern),
	)
	if _, err := f.Runner.Run(ctx, f.FFmpegPath, args...); err != nil {
		return nil, fmt.Errorf("error extracting frames: %w", err)
	}

	paths, err := filepath.Glob(filepath.Join(outDir, "frame-*.jpg"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	if len(paths) != len(indices) {
		return nil, fmt.Errorf("expected %d frames, ffmpeg produced %d", len(indices), len(paths))
	}
	return paths, nil
}

// ExtractAudio writes the audio track of videoPath to outPath as AAC.
func (f *FFmpeg) ExtractAudio(ctx context.Context, videoPath string, outPath string) error {
	args := []string{"-v", "error", "-y", "-i", videoPath, "-vn", "-c:a", "aac", outPath}
	if _, err := f.Runner.Run(ctx, f.FFmpegPath, args...); err != nil {
		return fmt.Errorf("error extracting audio: %w", err)
	}
	return nil
}

// MoveFile moves sourcePath to destPath. It renames when possible and falls
// back to copy and delete across file systems.
func MoveFile(sourcePath, destPath string) error {
	if err := os.Rename(sourcePath, destPath); err == nil {
		return nil
	}
	inputFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("could not open source file: %w", err)
	}
	defer inputFile.Close()

	outputFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("could not open dest file: %w", err)
	}
	defer outputFile.Close()

	if _, err = io.Copy(outputFile, inputFile); err != nil {
		return fmt.Errorf("could not copy to dest from source: %w", err)
	}
	inputFile.Close()
	if err = os.Remove(sourcePath); err != nil {
		return fmt.Errorf("could not remove source file: %w", err)
	}
	return nil
}
