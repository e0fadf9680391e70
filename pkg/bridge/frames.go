package bridge

import (
	"bytes"
	"unicode/utf8"
)

// FrameBuffer assembles complete upstream lines from arbitrary byte
// arrivals. It is per-connection state with two carry buffers: an
// undecoded tail for multi-byte UTF-8 sequences straddling two arrivals,
// and the current incomplete line.
//
// The zero value is ready to use.
type FrameBuffer struct {
	pending []byte // trailing bytes of an incomplete UTF-8 sequence
	line    []byte // decoded text of the incomplete trailing line
}

// Feed appends upstream bytes and returns all lines completed by this
// arrival, in order. The incomplete remainder replaces the buffer content
// rather than accumulating.
func (b *FrameBuffer) Feed(p []byte) []string {
	b.pending = append(b.pending, p...)

	// Hold back an incomplete trailing multi-byte sequence so it can be
	// completed by the next arrival instead of decoding as garbage.
	cut := len(b.pending)
	for i := len(b.pending) - 1; i >= 0 && i >= len(b.pending)-utf8.UTFMax; i-- {
		c := b.pending[i]
		if c < utf8.RuneSelf {
			break
		}
		if utf8.RuneStart(c) {
			if !utf8.FullRune(b.pending[i:]) {
				cut = i
			}
			break
		}
	}

	b.line = append(b.line, b.pending[:cut]...)
	b.pending = append(b.pending[:0:0], b.pending[cut:]...)

	var lines []string
	for {
		i := bytes.IndexByte(b.line, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(b.line[:i]))
		b.line = append(b.line[:0:0], b.line[i+1:]...)
	}
	return lines
}

// Reset discards all buffered bytes. Called when the stream terminates;
// anything still buffered after a done or error event is dropped.
func (b *FrameBuffer) Reset() {
	b.pending = nil
	b.line = nil
}
