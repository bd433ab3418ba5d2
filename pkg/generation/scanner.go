package generation

import "strings"

const (
	ThinkOpen   = "<think>"
	ThinkClose  = "</think>"
	AnswerOpen  = "<answer>"
	AnswerClose = "</answer>"
)

// Scanner filters streamed text: everything between the hidden delimiters is
// dropped and wrapper delimiters are removed. A delimiter split across two
// chunks is held back until the next chunk decides it.
type Scanner struct {
	hiddenOpen  string
	hiddenClose string
	wrappers    []string

	insideHiddenBlock bool
	pending           string
}

func NewScanner(hiddenOpen, hiddenClose string, wrappers ...string) *Scanner {
	return &Scanner{
		hiddenOpen:  hiddenOpen,
		hiddenClose: hiddenClose,
		wrappers:    wrappers,
	}
}

// NewReasoningScanner hides <think> blocks and strips <answer> wrappers.
func NewReasoningScanner() *Scanner {
	return NewScanner(ThinkOpen, ThinkClose, AnswerOpen, AnswerClose)
}

func (s *Scanner) InsideHiddenBlock() bool {
	return s.insideHiddenBlock
}

// Feed consumes one chunk and returns the text that is safe to show.
func (s *Scanner) Feed(chunk string) string {
	buf := s.pending + chunk
	s.pending = ""

	var out strings.Builder
	for buf != "" {
		if s.insideHiddenBlock {
			i := strings.Index(buf, s.hiddenClose)
			if i < 0 {
				s.pending = buf[len(buf)-partialSuffix(buf, []string{s.hiddenClose}):]
				return out.String()
			}
			buf = buf[i+len(s.hiddenClose):]
			s.insideHiddenBlock = false
			continue
		}

		idx, delim := s.nextDelimiter(buf)
		if idx < 0 {
			keep := partialSuffix(buf, s.visibleDelimiters())
			out.WriteString(buf[:len(buf)-keep])
			s.pending = buf[len(buf)-keep:]
			return out.String()
		}

		out.WriteString(buf[:idx])
		buf = buf[idx+len(delim):]
		if delim == s.hiddenOpen {
			s.insideHiddenBlock = true
		}
	}
	return out.String()
}

// Flush releases text held back at the end of the stream. An unterminated
// hidden block stays hidden.
func (s *Scanner) Flush() string {
	rest := s.pending
	s.pending = ""
	if s.insideHiddenBlock {
		return ""
	}
	return rest
}

func (s *Scanner) visibleDelimiters() []string {
	return append([]string{s.hiddenOpen}, s.wrappers...)
}

func (s *Scanner) nextDelimiter(buf string) (int, string) {
	best, found := -1, ""
	for _, d := range s.visibleDelimiters() {
		if d == "" {
			continue
		}
		if i := strings.Index(buf, d); i >= 0 && (best < 0 || i < best) {
			best, found = i, d
		}
	}
	return best, found
}

// partialSuffix is the length of the longest suffix of buf that is a proper
// prefix of one of the delimiters.
func partialSuffix(buf string, delims []string) int {
	longest := 0
	for _, d := range delims {
		if len(d)-1 > longest {
			longest = len(d) - 1
		}
	}
	if longest > len(buf) {
		longest = len(buf)
	}
	for k := longest; k > 0; k-- {
		tail := buf[len(buf)-k:]
		for _, d := range delims {
			if len(d) > k && strings.HasPrefix(d, tail) {
				return k
			}
		}
	}
	return 0
}
