// internal/diff/diff.go
package diff

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// Line represents a single line in a diff with its type and content
type Line struct {
	Type    LineType
	Content string // without the line terminator
	// NoNewline marks the last line of an input that does not end in "\n".
	NoNewline bool
}

// LineType indicates whether a line was added, removed, or is context
type LineType int

const (
	Context LineType = iota
	Addition
	Deletion
)

// Result contains the complete diff information
type Result struct {
	Binary bool
	Hunks  []Hunk
	Stats  Stats
}

// Stats counts the changed lines of a Result.
type Stats struct {
	Additions int
	Deletions int
}

// Identical reports whether the inputs had no differences.
func (r *Result) Identical() bool {
	return !r.Binary && len(r.Hunks) == 0
}

// Hunk represents a continuous section of changes. Starts are 1-based; for
// an empty side the start is the line the change follows.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// Engine provides diffing capabilities
type Engine struct {
	contextLines int
	maxLCSCells  int
}

const defaultMaxLCSCells = 4_000_000

// NewEngine creates a new diff engine with specified context lines
func NewEngine(contextLines int) *Engine {
	if contextLines < 0 {
		contextLines = 0
	}
	return &Engine{
		contextLines: contextLines,
		maxLCSCells:  defaultMaxLCSCells,
	}
}

// WithMaxLCSCells bounds the LCS table; larger inputs use the Myers diff.
func (e *Engine) WithMaxLCSCells(n int) *Engine {
	e.maxLCSCells = n
	return e
}

// Diff generates a line-by-line diff between two contents
func (e *Engine) Diff(oldContent, newContent []byte) (*Result, error) {
	result := &Result{}
	if bytes.Equal(oldContent, newContent) {
		return result, nil
	}
	if IsBinary(oldContent) || IsBinary(newContent) {
		result.Binary = true
		return result, nil
	}

	oldLines := splitLines(string(oldContent))
	newLines := splitLines(string(newContent))

	script := e.editScript(oldLines, newLines)
	result.Hunks = e.buildHunks(script, oldLines, newLines)

	for _, hunk := range result.Hunks {
		for _, line := range hunk.Lines {
			switch line.Type {
			case Addition:
				result.Stats.Additions++
			case Deletion:
				result.Stats.Deletions++
			}
		}
	}
	return result, nil
}

// IsBinary reports content that cannot be shown as text.
func IsBinary(content []byte) bool {
	return bytes.IndexByte(content, 0) >= 0 || !utf8.Valid(content)
}

// splitLines splits s into lines that keep their "\n", so a missing final
// newline is itself a difference.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// buildHunks groups the script into hunks with contextLines of context on
// each side, merging hunks whose context would overlap.
func (e *Engine) buildHunks(script []edit, oldLines, newLines []string) []Hunk {
	ctx := e.contextLines
	var hunks []Hunk

	i := 0
	for i < len(script) {
		for i < len(script) && script[i].op == opEqual {
			i++
		}
		if i == len(script) {
			break
		}

		start := max(i-ctx, 0)
		end := i
		for {
			for end < len(script) && script[end].op != opEqual {
				end++
			}
			k := end
			for k < len(script) && script[k].op == opEqual {
				k++
			}
			if k == len(script) || k-end > 2*ctx {
				end = min(end+ctx, k)
				break
			}
			end = k
		}

		hunks = append(hunks, makeHunk(script[start:end], oldLines, newLines))
		i = end
	}

	return hunks
}

func makeHunk(script []edit, oldLines, newLines []string) Hunk {
	h := Hunk{
		OldStart: script[0].oldPos,
		NewStart: script[0].newPos,
	}

	for _, ed := range script {
		switch ed.op {
		case opEqual:
			h.Lines = append(h.Lines, newLine(Context, oldLines[ed.oldPos]))
			h.OldLines++
			h.NewLines++
		case opDelete:
			h.Lines = append(h.Lines, newLine(Deletion, oldLines[ed.oldPos]))
			h.OldLines++
		case opInsert:
			h.Lines = append(h.Lines, newLine(Addition, newLines[ed.newPos]))
			h.NewLines++
		}
	}

	if h.OldLines > 0 {
		h.OldStart++
	}
	if h.NewLines > 0 {
		h.NewStart++
	}
	return h
}

func newLine(t LineType, raw string) Line {
	content, found := strings.CutSuffix(raw, "\n")
	return Line{Type: t, Content: content, NoNewline: !found}
}
