// Package diff renders line-based unified diffs.
package diff

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContext is the number of unchanged lines shown around each change.
const DefaultContext = 3

const noNewlineMarker = `\ No newline at end of file`

type opKind int

const (
	opEqual opKind = iota
	opDelete
	opInsert
)

// opcode is a run of lines: a[i1:i2] compared with b[j1:j2].
type opcode struct {
	kind           opKind
	i1, i2, j1, j2 int
}

// splitLines splits text into lines that keep their terminating newline, so
// a missing final newline is visible to the diff.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// maxLineRune is the largest line index encodable as a rune once the
// surrogate range is skipped.
const maxLineRune = utf8.MaxRune - (0xE000 - 0xD800)

// lineRune maps a line index to a valid rune, skipping the surrogate range.
func lineRune(i int) rune {
	r := rune(i)
	if r >= 0xD800 {
		r += 0xE000 - 0xD800
	}
	return r
}

// encodeLines gives every distinct line one rune and returns both texts as
// rune slices over that table.
func encodeLines(a, b []string) (ra, rb []rune, ok bool) {
	table := make(map[string]rune, len(a)+len(b))
	encode := func(lines []string) []rune {
		out := make([]rune, len(lines))
		for i, line := range lines {
			r, seen := table[line]
			if !seen {
				r = lineRune(len(table))
				table[line] = r
			}
			out[i] = r
		}
		return out
	}
	ra, rb = encode(a), encode(b)
	return ra, rb, len(table) <= maxLineRune
}

// lineOpcodes computes the line-level edit script between a and b.
func lineOpcodes(a, b []string) []opcode {
	ra, rb, ok := encodeLines(a, b)
	if !ok {
		return []opcode{
			{kind: opDelete, i1: 0, i2: len(a)},
			{kind: opInsert, i1: len(a), i2: len(a), j1: 0, j2: len(b)},
		}
	}

	dmp := diffmatchpatch.New()
	// A timeout would make the result depend on machine load.
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMainRunes(ra, rb, false)

	var ops []opcode
	i, j := 0, 0
	push := func(kind opKind, n int) {
		op := opcode{kind: kind, i1: i, i2: i, j1: j, j2: j}
		switch kind {
		case opEqual:
			op.i2, op.j2 = i+n, j+n
		case opDelete:
			op.i2 = i + n
		case opInsert:
			op.j2 = j + n
		}
		i, j = op.i2, op.j2
		if len(ops) > 0 && ops[len(ops)-1].kind == kind {
			last := &ops[len(ops)-1]
			last.i2, last.j2 = op.i2, op.j2
			return
		}
		ops = append(ops, op)
	}
	for _, d := range diffs {
		// One rune per line.
		n := utf8.RuneCountInString(d.Text)
		if n == 0 {
			continue
		}
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			push(opEqual, n)
		case diffmatchpatch.DiffDelete:
			push(opDelete, n)
		case diffmatchpatch.DiffInsert:
			push(opInsert, n)
		}
	}
	return ops
}

// groupOpcodes splits the edit script into hunks with at most n lines of
// context on each side, trimming unchanged runs longer than 2n.
func groupOpcodes(ops []opcode, n int) [][]opcode {
	if len(ops) == 0 {
		return nil
	}
	ops = append([]opcode(nil), ops...)
	if ops[0].kind == opEqual {
		o := &ops[0]
		o.i1 = max(o.i1, o.i2-n)
		o.j1 = max(o.j1, o.j2-n)
	}
	if last := &ops[len(ops)-1]; last.kind == opEqual {
		last.i2 = min(last.i2, last.i1+n)
		last.j2 = min(last.j2, last.j1+n)
	}

	var groups [][]opcode
	var group []opcode
	for _, o := range ops {
		if o.kind == opEqual && o.i2-o.i1 > 2*n {
			group = append(group, opcode{kind: opEqual, i1: o.i1, i2: min(o.i2, o.i1+n), j1: o.j1, j2: min(o.j2, o.j1+n)})
			groups = append(groups, group)
			group = nil
			o.i1 = max(o.i1, o.i2-n)
			o.j1 = max(o.j1, o.j2-n)
		}
		group = append(group, o)
	}
	if len(group) > 0 && !(len(group) == 1 && group[0].kind == opEqual) {
		groups = append(groups, group)
	}

	// Drop groups with no change (possible when n == 0).
	out := groups[:0]
	for _, g := range groups {
		for _, o := range g {
			if o.kind != opEqual {
				out = append(out, g)
				break
			}
		}
	}
	return out
}

// formatRange renders a hunk range the way difflib does.
func formatRange(start, stop int) string {
	beginning := start + 1
	length := stop - start
	if length == 1 {
		return fmt.Sprintf("%d", beginning)
	}
	if length == 0 {
		beginning--
	}
	return fmt.Sprintf("%d,%d", beginning, length)
}

func writeLine(sb *strings.Builder, prefix byte, line string) {
	sb.WriteByte(prefix)
	sb.WriteString(line)
	if !strings.HasSuffix(line, "\n") {
		sb.WriteString("\n" + noNewlineMarker + "\n")
	}
}

// Unified returns the unified diff from oldText to newText with the given
// number of context lines. Labels are written verbatim into the file headers.
// Equal inputs produce an empty string. Output is deterministic.
func Unified(oldText, newText, oldLabel, newLabel string, context int) string {
	if oldText == newText {
		return ""
	}
	if context < 0 {
		context = 0
	}
	a, b := splitLines(oldText), splitLines(newText)
	groups := groupOpcodes(lineOpcodes(a, b), context)
	if len(groups) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("--- " + oldLabel + "\n")
	sb.WriteString("+++ " + newLabel + "\n")
	for _, g := range groups {
		first, last := g[0], g[len(g)-1]
		sb.WriteString(fmt.Sprintf("@@ -%s +%s @@\n", formatRange(first.i1, last.i2), formatRange(first.j1, last.j2)))
		for _, o := range g {
			switch o.kind {
			case opEqual:
				for _, line := range a[o.i1:o.i2] {
					writeLine(&sb, ' ', line)
				}
			case opDelete:
				for _, line := range a[o.i1:o.i2] {
					writeLine(&sb, '-', line)
				}
			case opInsert:
				for _, line := range b[o.j1:o.j2] {
					writeLine(&sb, '+', line)
				}
			}
		}
	}
	return sb.String()
}

// Stats counts added and removed lines in a unified diff. File headers are
// recognized only outside hunks, so a removed "-- comment" line still counts.
func Stats(unified string) (added, removed int) {
	oldLeft, newLeft := 0, 0
	for _, line := range strings.Split(unified, "\n") {
		if oldLeft == 0 && newLeft == 0 {
			if m := hunkHeader.FindStringSubmatch(line); m != nil {
				oldLeft, newLeft = rangeCount(m[1]), rangeCount(m[2])
			}
			continue
		}
		switch {
		case strings.HasPrefix(line, "+"):
			added++
			newLeft--
		case strings.HasPrefix(line, "-"):
			removed++
			oldLeft--
		case strings.HasPrefix(line, " "):
			oldLeft--
			newLeft--
		}
	}
	return added, removed
}

var hunkHeader = regexp.MustCompile(`^@@ -\d+(?:,(\d+))? \+\d+(?:,(\d+))? @@`)

func rangeCount(s string) int {
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
