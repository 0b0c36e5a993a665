package diff

import (
	"fmt"
	"strings"
)

const noNewlineMarker = "\\ No newline at end of file\n"

// Unified renders r in unified diff format. Identical inputs render as "".
func (r *Result) Unified(oldLabel, newLabel string) string {
	if r.Binary {
		return fmt.Sprintf("Binary files %s and %s differ\n", oldLabel, newLabel)
	}
	if len(r.Hunks) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n+++ %s\n", oldLabel, newLabel)
	for _, h := range r.Hunks {
		fmt.Fprintf(&b, "@@ -%s +%s @@\n", hunkRange(h.OldStart, h.OldLines), hunkRange(h.NewStart, h.NewLines))
		for _, line := range h.Lines {
			switch line.Type {
			case Addition:
				b.WriteByte('+')
			case Deletion:
				b.WriteByte('-')
			default:
				b.WriteByte(' ')
			}
			b.WriteString(line.Content)
			b.WriteByte('\n')
			if line.NoNewline {
				b.WriteString(noNewlineMarker)
			}
		}
	}
	return b.String()
}

func hunkRange(start, count int) string {
	if count == 1 {
		return fmt.Sprint(start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}
