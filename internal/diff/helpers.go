package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

type opKind int

const (
	opEqual opKind = iota
	opDelete
	opInsert
)

// edit is one step of an edit script. oldPos and newPos are the 0-based
// positions in each input when the step is taken.
type edit struct {
	op     opKind
	oldPos int
	newPos int
}

// editScript trims the common prefix and suffix, diffs the middle, and
// returns the script over the whole inputs. Deletions precede insertions
// within a change.
func (e *Engine) editScript(oldLines, newLines []string) []edit {
	prefix := 0
	for prefix < len(oldLines) && prefix < len(newLines) && oldLines[prefix] == newLines[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(oldLines)-prefix && suffix < len(newLines)-prefix &&
		oldLines[len(oldLines)-1-suffix] == newLines[len(newLines)-1-suffix] {
		suffix++
	}

	a := oldLines[prefix : len(oldLines)-suffix]
	b := newLines[prefix : len(newLines)-suffix]

	var middle []opKind
	if len(a)*len(b) > e.maxLCSCells {
		middle = myersOps(a, b)
	} else {
		middle = lcsOps(a, b)
	}

	script := make([]edit, 0, prefix+len(middle)+suffix)
	i, j := 0, 0
	step := func(op opKind) {
		script = append(script, edit{op: op, oldPos: i, newPos: j})
		switch op {
		case opEqual:
			i++
			j++
		case opDelete:
			i++
		case opInsert:
			j++
		}
	}

	for k := 0; k < prefix; k++ {
		step(opEqual)
	}
	for _, op := range middle {
		step(op)
	}
	for k := 0; k < suffix; k++ {
		step(opEqual)
	}
	return script
}

// lcsOps walks a suffix LCS table from the front.
func lcsOps(a, b []string) []opKind {
	n, m := len(a), len(b)
	w := m + 1
	table := make([]int32, (n+1)*w)

	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				table[i*w+j] = table[(i+1)*w+j+1] + 1
			} else {
				table[i*w+j] = max(table[(i+1)*w+j], table[i*w+j+1])
			}
		}
	}

	ops := make([]opKind, 0, n+m)
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			ops = append(ops, opEqual)
			i++
			j++
		case table[(i+1)*w+j] >= table[i*w+j+1]:
			ops = append(ops, opDelete)
			i++
		default:
			ops = append(ops, opInsert)
			j++
		}
	}
	for ; i < n; i++ {
		ops = append(ops, opDelete)
	}
	for ; j < m; j++ {
		ops = append(ops, opInsert)
	}
	return ops
}

// myersOps runs diffmatchpatch in line mode. The timeout is disabled so the
// result does not depend on machine speed.
func myersOps(a, b []string) []opKind {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	ca, cb, lineArray := dmp.DiffLinesToChars(strings.Join(a, ""), strings.Join(b, ""))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lineArray)

	ops := make([]opKind, 0, len(a)+len(b))
	for _, d := range diffs {
		var op opKind
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			op = opEqual
		case diffmatchpatch.DiffDelete:
			op = opDelete
		case diffmatchpatch.DiffInsert:
			op = opInsert
		}
		for range splitLines(d.Text) {
			ops = append(ops, op)
		}
	}
	return ops
}
