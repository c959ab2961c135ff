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
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-video-rag/internal/core/model"
)

var (
	timingLineRe   = regexp.MustCompile(`^((?:\d+:)?\d{2}:\d{2}\.\d{3})\s*-->\s*((?:\d+:)?\d{2}:\d{2}\.\d{3})`)
	htmlTagRe      = regexp.MustCompile(`<[^>]+>`)
	metadataLineRe = regexp.MustCompile(`^(WEBVTT|Kind:|Language:|NOTE|STYLE|REGION)`)
)

// ParseWebVTT reads the cues of a WebVTT document as transcript segments.
//
// Markup and inline timestamps are stripped and empty cues are dropped. A cue
// ends only at a truly empty line, since auto-generated tracks put a single
// space line inside cues. Rolling auto-captions repeat the last line of the
// previous cue as their first line; that line is dropped so each phrase is
// reported once, with the start time of the cue that introduced it. A cue left
// with nothing new, or repeating the previous segment, extends that segment.
func ParseWebVTT(r io.Reader) ([]model.TranscriptSegment, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	segments := make([]model.TranscriptSegment, 0)
	var current *model.TranscriptSegment
	var text []string
	var carried string

	flush := func() {
		if current == nil {
			return
		}
		lines := text
		if len(segments) > 0 && len(lines) > 0 && lines[0] == carried {
			lines = lines[1:]
		}
		if len(text) > 0 {
			carried = text[len(text)-1]
		}
		joined := strings.Join(lines, " ")
		n := len(segments)
		switch {
		case joined == "" && len(text) > 0 && n > 0:
			segments[n-1].EndTime = math.Max(segments[n-1].EndTime, current.EndTime)
		case joined == "":
		case n > 0 && segments[n-1].Text == joined:
			segments[n-1].EndTime = current.EndTime
		default:
			current.Text = joined
			segments = append(segments, *current)
		}
		current = nil
		text = text[:0]
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if m := timingLineRe.FindStringSubmatch(line); m != nil {
			flush()
			start, err := ParseTimestamp(m[1])
			if err != nil {
				return nil, err
			}
			end, err := ParseTimestamp(m[2])
			if err != nil {
				return nil, err
			}
			if end < start {
				end = start
			}
			current = &model.TranscriptSegment{StartTime: start, EndTime: end}
			continue
		}
		if line == "" {
			flush()
			continue
		}
		if current == nil || metadataLineRe.MatchString(line) {
			// header, cue identifier or block outside a cue
			continue
		}
		cleaned := strings.Join(strings.Fields(htmlTagRe.ReplaceAllString(line, "")), " ")
		if cleaned != "" && (len(text) == 0 || text[len(text)-1] != cleaned) {
			text = append(text, cleaned)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read caption track: %w", err)
	}
	flush()
	return segments, nil
}

// ParseTimestamp converts "HH:MM:SS.mmm" or "MM:SS.mmm" to seconds.
func ParseTimestamp(ts string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(ts), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", ts)
	}
	seconds, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}
	multiplier := 60.0
	for i := len(parts) - 2; i >= 0; i-- {
		v, err := strconv.Atoi(parts[i])
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q: %w", ts, err)
		}
		seconds += float64(v) * multiplier
		multiplier *= 60
	}
	return seconds, nil
}

// FormatTimestamp renders seconds as "HH:MM:SS.mmm".
func FormatTimestamp(seconds float64) string {
	ms := int64(math.Round(seconds * 1000))
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	m := (ms / 60_000) % 60
	s := (ms / 1000) % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}

// WriteWebVTT writes segments as a WebVTT document.
func WriteWebVTT(w io.Writer, segments []model.TranscriptSegment) error {
	bw := bufio.NewWriter(w)
	fmt.Fprint(bw, "WEBVTT\n\n")
	for i, s := range segments {
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n", i+1, FormatTimestamp(s.StartTime), FormatTimestamp(s.EndTime), s.Text)
	}
	return bw.Flush()
}
