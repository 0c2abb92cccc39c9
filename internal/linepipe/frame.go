package linepipe

import "unicode/utf8"

// FrameLines scans carry followed by data for newline-terminated lines,
// stripping a carriage return from each line's tail. It returns the complete
// lines found and the unterminated remainder (to be prefixed onto the next
// call). Malformed UTF-8 is replaced rune-by-rune rather than rejected, so
// a Line Pipe never fails on garbage bytes from a misbehaving device.
//
// Exported so the mock engine can reuse the exact same framing rules
// without duplicating them.
func FrameLines(carry []byte, data []byte) (lines []string, remainder []byte) {
	buf := append(carry, data...)
	start := 0
	for i := 0; i < len(buf); i++ {
		if buf[i] != '\n' {
			continue
		}
		end := i
		if end > start && buf[end-1] == '\r' {
			end--
		}
		lines = append(lines, toValidUTF8(buf[start:end]))
		start = i + 1
	}
	if start < len(buf) {
		remainder = append([]byte(nil), buf[start:]...)
	}
	return lines, remainder
}

// FlushRemainder turns a non-empty, newline-less remainder into a final
// line. Used when a real endpoint's reader hits EOF/close, and by the mock
// engine at the end of every Write (mocks never carry a remainder across
// calls).
func FlushRemainder(carry []byte) (line string, ok bool) {
	if len(carry) == 0 {
		return "", false
	}
	return toValidUTF8(carry), true
}

func toValidUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out := make([]rune, 0, len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		out = append(out, r)
		b = b[size:]
	}
	return string(out)
}
