package supervisor

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charliek/sidecarhost/internal/constants"
)

// DecodeLine converts raw bytes to a string, replacing each maximal
// ill-formed subsequence with one U+FFFD. A truncated multi-byte prefix
// such as E2 82 counts as one subsequence; bytes that can never start or
// continue a sequence are replaced one by one.
func DecodeLine(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	var sb strings.Builder
	sb.Grow(len(b) + 8)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r != utf8.RuneError || size > 1 {
			sb.Write(b[:size])
			b = b[size:]
			continue
		}
		sb.WriteRune(utf8.RuneError)
		b = b[maximalSubpart(b):]
	}
	return sb.String()
}

// maximalSubpart returns the length of the longest prefix of b that could
// still begin a well-formed sequence, at least 1. b must not start with a
// complete valid rune.
func maximalSubpart(b []byte) int {
	lo, hi := byte(0x80), byte(0xBF)
	var need int
	switch c := b[0]; {
	case c >= 0xC2 && c <= 0xDF:
		need = 1
	case c == 0xE0:
		need, lo = 2, 0xA0
	case c == 0xED:
		need, hi = 2, 0x9F
	case c >= 0xE1 && c <= 0xEF:
		need = 2
	case c == 0xF0:
		need, lo = 3, 0x90
	case c >= 0xF1 && c <= 0xF3:
		need = 3
	case c == 0xF4:
		need, hi = 3, 0x8F
	default:
		return 1
	}

	n := 1
	for n <= need && n < len(b) {
		if b[n] < lo || b[n] > hi {
			break
		}
		lo, hi = 0x80, 0xBF
		n++
	}
	return n
}

// Drain reads r line by line until EOF or a read error and sends each
// decoded line on out, in order. Line terminators (\n or \r\n) are stripped
// and a final unterminated line is still delivered. Lines longer than
// constants.ScannerMaxBufferSize are truncated but the rest of the line is
// still consumed so the writer never blocks on a full pipe.
//
// Drain closes out when it returns. It returns nil at EOF.
func Drain(r io.Reader, out chan<- string) error {
	defer close(out)

	br := bufio.NewReaderSize(r, constants.ScannerBufferSize)
	buf := make([]byte, 0, constants.ScannerBufferSize)
	for {
		frag, isPrefix, err := br.ReadLine()
		if len(frag) > 0 && len(buf) < constants.ScannerMaxBufferSize {
			n := min(len(frag), constants.ScannerMaxBufferSize-len(buf))
			buf = append(buf, frag[:n]...)
		}
		if err != nil {
			if len(buf) > 0 {
				out <- DecodeLine(buf)
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if !isPrefix {
			out <- DecodeLine(buf)
			buf = buf[:0]
		}
	}
}
