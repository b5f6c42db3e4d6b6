package command

import "bytes"

// MaxLineLen bounds a buffered, unterminated command line.
const MaxLineLen = 4096

// LineBuffer reassembles newline-terminated lines from stream chunks.
type LineBuffer struct {
	pending []byte
}

// Feed appends data and returns every completed line without its CR/LF
// terminator. An unterminated tail longer than MaxLineLen is discarded and
// reported with ErrLineTooLong.
func (b *LineBuffer) Feed(data []byte) ([]string, error) {
	b.pending = append(b.pending, data...)
	var lines []string
	for {
		i := bytes.IndexByte(b.pending, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(b.pending[:i], "\r")
		lines = append(lines, string(line))
		b.pending = b.pending[i+1:]
	}
	if len(b.pending) > MaxLineLen {
		b.pending = nil
		return lines, ErrLineTooLong
	}
	if len(b.pending) == 0 {
		b.pending = nil
	}
	return lines, nil
}

// Reset drops any partial line, e.g. when the peer disconnects.
func (b *LineBuffer) Reset() {
	b.pending = nil
}
