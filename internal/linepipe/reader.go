package linepipe

import (
	"io"
)

// Pump reads from r until it returns an error (io.EOF included), framing
// complete lines into the pipe as they arrive and flushing a trailing
// partial line when the read loop ends. It blocks the calling goroutine,
// so callers run it with `go`.
func Pump(p *Pipe, r io.Reader) error {
	buf := make([]byte, 4096)
	var carry []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			var lines []string
			lines, carry = FrameLines(carry, buf[:n])
			for _, line := range lines {
				p.Publish(line)
			}
		}
		if err != nil {
			if line, ok := FlushRemainder(carry); ok {
				p.Publish(line)
			}
			if err == io.EOF {
				p.Close(nil)
				return nil
			}
			p.Close(err)
			return err
		}
	}
}
