// Splits a byte stream into lines for line-oriented consumers (log tails, remote output)
package logtee

import (
	"bytes"
	"io"
	"sync"
)

type LineSplitter struct {
	buf           []byte // not yet terminated by \n
	lineCompleted func(string)
	mu            sync.Mutex
}

// returns io.Writer that writes everything to sink and also tees full lines to lineCompleted
func NewLineSplitterTee(sink io.Writer, lineCompleted func(string)) io.Writer {
	return io.MultiWriter(sink, NewLineSplitter(lineCompleted))
}

func NewLineSplitter(lineCompleted func(string)) *LineSplitter {
	return &LineSplitter{
		buf:           []byte{},
		lineCompleted: lineCompleted,
	}
}

func (l *LineSplitter) Write(data []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf = append(l.buf, data...)

	for {
		idx := bytes.IndexByte(l.buf, '\n')
		if idx == -1 {
			break
		}

		l.lineCompleted(string(bytes.TrimSuffix(l.buf[0:idx], []byte{'\r'})))

		l.buf = l.buf[idx+1:]
	}

	return len(data), nil
}

// emits the trailing partial line, if any. call when the stream has ended.
func (l *LineSplitter) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.buf) > 0 {
		l.lineCompleted(string(l.buf))
		l.buf = []byte{}
	}
}
