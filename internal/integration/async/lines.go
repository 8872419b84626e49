package async

// LineSplitter turns a sequence of chunks into complete lines.
//
// Terminators are "\r\n", "\n" and a lone "\r". A "\r\n" pair split across two
// chunks counts as one terminator. Bytes after the last terminator are held
// until a later chunk completes the line; whatever is still pending when the
// stream ends is dropped.
type LineSplitter struct {
	partial []byte
	lastCR  bool
}

// Feed consumes a chunk and returns the lines it completed, without their
// terminators.
func (s *LineSplitter) Feed(chunk []byte) []string {
	var lines []string
	for _, b := range chunk {
		switch b {
		case '\n':
			if s.lastCR {
				// Second half of "\r\n"; the line was already emitted.
				s.lastCR = false
				continue
			}
			lines = append(lines, string(s.partial))
			s.partial = s.partial[:0]
		case '\r':
			lines = append(lines, string(s.partial))
			s.partial = s.partial[:0]
			s.lastCR = true
			continue
		default:
			s.partial = append(s.partial, b)
		}
		s.lastCR = false
	}
	return lines
}

// Pending returns the bytes of the incomplete trailing line.
func (s *LineSplitter) Pending() string {
	return string(s.partial)
}

// Reset discards any pending partial line.
func (s *LineSplitter) Reset() {
	s.partial = s.partial[:0]
	s.lastCR = false
}
