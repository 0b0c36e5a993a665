// Package ignore matches working-tree paths against the patterns in the
// repository's .minivcsignore file, which uses gitignore syntax.
package ignore

import (
	"bufio"
	"bytes"
	"os"
	"strings"

	verrors "minivcs/internal/errors"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

const FileName = ".minivcsignore"

type Matcher struct {
	patterns []gitignore.Pattern
	matcher  gitignore.Matcher
}

// Load reads FileName from the root of worktree. A missing file yields a
// matcher that ignores nothing.
func Load(worktree billy.Filesystem) (*Matcher, error) {
	data, err := util.ReadFile(worktree, FileName)
	if err != nil {
		if os.IsNotExist(err) {
			return &Matcher{}, nil
		}
		return nil, verrors.Storage("reading "+FileName, err)
	}
	return Parse(data), nil
}

// Parse builds a matcher from ignore-file content. Blank lines and lines
// starting with '#' are skipped.
func Parse(data []byte) *Matcher {
	m := &Matcher{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.patterns = append(m.patterns, gitignore.ParsePattern(line, nil))
	}
	if len(m.patterns) > 0 {
		m.matcher = gitignore.NewMatcher(m.patterns)
	}
	return m
}

// Match reports whether the slash-separated path is ignored. Later patterns
// win, so a "!pattern" line re-includes what an earlier line excluded.
func (m *Matcher) Match(path string, isDir bool) bool {
	if m == nil || m.matcher == nil {
		return false
	}
	return m.matcher.Match(strings.Split(path, "/"), isDir)
}

// Len returns the number of patterns in effect.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.patterns)
}
