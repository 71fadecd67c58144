package logtee

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/function61/gokit/assert"
)

func TestTeeIntoTail(t *testing.T) {
	sink := &bytes.Buffer{}

	tail := NewStringTail(4)

	upstream := NewLineSplitterTee(sink, tail.Write)

	_, _ = upstream.Write([]byte("line 1\nline 2\nline 3 left open"))

	assert.EqualString(t, fmt.Sprintf("%v", tail.Snapshot()), "[line 1 line 2]")

	_, _ = upstream.Write([]byte("\n")) // close line 3

	assert.EqualString(t, fmt.Sprintf("%v", tail.Snapshot()), "[line 1 line 2 line 3 left open]")

	_, _ = upstream.Write([]byte("line 4\nline 5\nline 6\n"))

	assert.EqualString(t, fmt.Sprintf("%v", tail.Snapshot()), "[line 3 left open line 4 line 5 line 6]")

	assert.EqualString(t, sink.String(), "line 1\nline 2\nline 3 left open\nline 4\nline 5\nline 6\n")
}

func TestFlushEmitsPartialLine(t *testing.T) {
	lines := []string{}

	splitter := NewLineSplitter(func(line string) {
		lines = append(lines, line)
	})

	_, _ = splitter.Write([]byte("C:\\> hostkit\r\nno newline at end"))
	assert.EqualString(t, fmt.Sprintf("%q", lines), `["C:\\> hostkit"]`)

	splitter.Flush()
	splitter.Flush() // nothing left

	assert.EqualString(t, fmt.Sprintf("%q", lines), `["C:\\> hostkit" "no newline at end"]`)
}

func TestEmptyLinesAreKept(t *testing.T) {
	tail := NewStringTail(3)
	tail.Write("a")
	tail.Write("")
	tail.Write("b")

	assert.EqualString(t, fmt.Sprintf("%q", tail.Snapshot()), `["a" "" "b"]`)

	assert.Assert(t, len(NewStringTail(0).Snapshot()) == 0)
}
