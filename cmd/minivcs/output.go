package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"minivcs/internal/repo"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

type palette struct {
	added     *color.Color
	removed   *color.Color
	hunk      *color.Color
	header    *color.Color
	commit    *color.Color
	notice    *color.Color
	untracked *color.Color
	ignored   *color.Color
}

func newPalette(enabled bool) *palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return &palette{
		added:     mk(color.FgGreen),
		removed:   mk(color.FgRed),
		hunk:      mk(color.FgCyan),
		header:    mk(color.Bold),
		commit:    mk(color.FgYellow),
		notice:    mk(color.FgYellow),
		untracked: mk(color.FgRed),
		ignored:   mk(color.Faint),
	}
}

// colorEnabled resolves a color mode for w. "auto" colors terminals only and
// honors NO_COLOR.
func colorEnabled(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// reportOutcomes prints successes and benign no-ops to w and returns the
// real failures joined into one error.
func (e *env) reportOutcomes(w io.Writer, outcomes []repo.Outcome, verb string) error {
	var failures []error
	for _, o := range outcomes {
		switch {
		case o.Err == nil:
			fmt.Fprintf(w, "%s %s\n", e.pal.added.Sprint(verb), o.Path)
		case !o.Failed():
			e.pal.notice.Fprintln(w, o.Err.Error())
		default:
			failures = append(failures, o.Err)
		}
	}
	return errors.Join(failures...)
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
