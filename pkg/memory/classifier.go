package memory

import "regexp"

var (
	credentialPattern = regexp.MustCompile(`(?i)(sk-[\w-]{8,}|xai-[\w-]{8,}|whsec_\w+|eyJ[a-zA-Z0-9_-]{10,}|AKIA[0-9A-Z]{10,}|-----BEGIN|api[_-]?key|senha|password|secret|token|jwt)`)
	emailPattern      = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
	phonePattern      = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
)

// RegexClassifier flags credentials, emails and phone numbers. It is a
// heuristic: unusual secret formats go through undetected.
type RegexClassifier struct {
	patterns []*regexp.Regexp
}

func NewRegexClassifier(extra ...*regexp.Regexp) *RegexClassifier {
	patterns := []*regexp.Regexp{credentialPattern, emailPattern, phonePattern}
	return &RegexClassifier{patterns: append(patterns, extra...)}
}

func (c *RegexClassifier) IsSensitive(text string) bool {
	for _, p := range c.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
