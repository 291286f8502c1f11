// Package crop extracts crop suggestions from the output of the face-crop
// suggestion tool.
//
// The tool prints ffmpeg command templates, one per detected face track:
//
//	ffmpeg -i in.mp4 -ss 0.0 -t 5.2 -filter:v "crop=300:300:10:10, scale=256:256" crop.mp4
//
// Only the start offset, the duration and the crop filter are extracted; their
// values are opaque here and validated by the tool that consumes them.
package crop

import (
	"errors"
	"fmt"
	"strings"
)

// Static errors for suggestion parsing.
var (
	// ErrEmptyOutput is returned when the tool printed nothing.
	ErrEmptyOutput = errors.New("no crop suggestions received")
	// ErrMissingField is returned when -ss or -t, or its value, is absent.
	ErrMissingField = errors.New("missing field in crop suggestion")
	// ErrMissingCropFilter is returned when the quoted -filter:v expression is absent.
	ErrMissingCropFilter = errors.New("missing crop filter in crop suggestion")
)

const (
	startFlag    = "-ss"
	durationFlag = "-t"
	filterMarker = "-filter:v"
)

// Field names reported by ParseError.
const (
	FieldStart    = "start"
	FieldDuration = "duration"
)

// Suggestion is a crop window proposed by the suggestion tool.
type Suggestion struct {
	// Start is the time offset where the cropped clip begins.
	Start string
	// Duration is the length of the cropped clip.
	Duration string
	// Filter is the ffmpeg video filter expression that crops each frame.
	Filter string
}

// ParseError describes why a suggestion line could not be parsed.
type ParseError struct {
	// Kind is one of ErrEmptyOutput, ErrMissingField or ErrMissingCropFilter.
	Kind error
	// Field names the missing field when Kind is ErrMissingField.
	Field string
	// Line is the offending line, empty for ErrEmptyOutput.
	Line string
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Field)
	}
	return e.Kind.Error()
}

// Unwrap allows errors.Is against the Kind sentinels.
func (e *ParseError) Unwrap() error {
	return e.Kind
}

// Parse extracts the suggestion from the first line of the tool output.
func Parse(output string) (Suggestion, error) {
	lines := splitLines(output)
	if len(lines) == 0 {
		return Suggestion{}, &ParseError{Kind: ErrEmptyOutput}
	}
	return ParseLine(lines[0])
}

// ParseAll extracts a suggestion from every line that parses.
// Lines that do not carry a complete suggestion are skipped. ErrEmptyOutput is
// returned when there are no lines at all; when lines exist but none parses,
// the error of the first line is returned.
func ParseAll(output string) ([]Suggestion, error) {
	lines := splitLines(output)
	if len(lines) == 0 {
		return nil, &ParseError{Kind: ErrEmptyOutput}
	}

	var (
		out      []Suggestion
		firstErr error
	)
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		s, err := ParseLine(line)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		if firstErr == nil {
			firstErr = &ParseError{Kind: ErrEmptyOutput}
		}
		return nil, firstErr
	}
	return out, nil
}

// ParseLine extracts a suggestion from one command template line.
func ParseLine(line string) (Suggestion, error) {
	tokens := strings.Fields(line)

	start, ok := valueAfter(tokens, startFlag)
	if !ok {
		return Suggestion{}, &ParseError{Kind: ErrMissingField, Field: FieldStart, Line: line}
	}
	duration, ok := valueAfter(tokens, durationFlag)
	if !ok {
		return Suggestion{}, &ParseError{Kind: ErrMissingField, Field: FieldDuration, Line: line}
	}
	filter, ok := quotedAfter(line, filterMarker)
	if !ok {
		return Suggestion{}, &ParseError{Kind: ErrMissingCropFilter, Line: line}
	}

	return Suggestion{Start: start, Duration: duration, Filter: filter}, nil
}

// valueAfter returns the token following the first occurrence of flag.
func valueAfter(tokens []string, flag string) (string, bool) {
	for i, tok := range tokens {
		if tok != flag {
			continue
		}
		if i+1 >= len(tokens) {
			return "", false
		}
		return tokens[i+1], true
	}
	return "", false
}

// quotedAfter returns the text between the first pair of double quotes that
// follows the last occurrence of marker.
func quotedAfter(line, marker string) (string, bool) {
	i := strings.LastIndex(line, marker)
	if i < 0 {
		return "", false
	}
	rest := line[i+len(marker):]

	open := strings.IndexByte(rest, '"')
	if open < 0 {
		return "", false
	}
	rest = rest[open+1:]
	end := strings.IndexByte(rest, '"')
	if end <= 0 {
		return "", false
	}
	return rest[:end], true
}

// splitLines splits output into lines, dropping \r line endings. Output that
// is empty or only whitespace has no lines.
func splitLines(output string) []string {
	if strings.TrimSpace(output) == "" {
		return nil
	}
	lines := strings.Split(strings.TrimRight(output, "\r\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
