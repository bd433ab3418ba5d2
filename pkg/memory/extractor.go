// Package memory mines user utterances for durable facts worth remembering.
package memory

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const MaxContentLength = 500

type Kind string

const (
	KindNote        Kind = "note"
	KindPreference  Kind = "preference"
	KindInstruction Kind = "instruction"
	KindFact        Kind = "fact"
)

// Candidate is a memory proposed by the extractor. Persisting it is up to the
// caller.
type Candidate struct {
	Content    string
	Kind       Kind
	Source     string
	IsExplicit bool
}

// Classifier decides whether a piece of text carries data that must never be
// stored.
type Classifier interface {
	IsSensitive(text string) bool
}

var explicitDirective = regexp.MustCompile(`(?i)(lembrar|lembre|remember|save|salvar|guarde)\s*[:\-]\s*(.+)$`)

type signal struct {
	kind   Kind
	regex  *regexp.Regexp
	group  int
	isName bool
}

var signals = []signal{
	{
		kind:   KindFact,
		regex:  regexp.MustCompile(`(?i)(meu nome(?:\s+e| é)?|me chamo|chamo-me|my name is|call me)\s+(.+)`),
		group:  2,
		isName: true,
	},
	{
		kind:  KindPreference,
		regex: regexp.MustCompile(`(?i)(prefiro que você|prefiro que voce|minha preferência|my preference is|i prefer you to)\s+(.+)`),
		group: 2,
	},
	{
		kind:  KindInstruction,
		regex: regexp.MustCompile(`(?i)(sempre|nunca|always|never)\s+(responda|fale|use|respond|answer)\s+(.+)`),
		group: 3,
	},
	{
		kind:  KindFact,
		regex: regexp.MustCompile(`(?i)(moro em|estou em|i live in|i am in|based in)\s+(.+)`),
		group: 2,
	},
	{
		kind:  KindPreference,
		regex: regexp.MustCompile(`(?i)(minha lingua|minha linguagem|eu falo|i speak|language is)\s+(.+)`),
		group: 2,
	},
}

type Extractor struct {
	classifier Classifier
}

func NewExtractor(classifier Classifier) *Extractor {
	if classifier == nil {
		classifier = NewRegexClassifier()
	}
	return &Extractor{classifier: classifier}
}

var defaultExtractor = NewExtractor(nil)

// Extract runs the default extractor.
func Extract(utterance string) []Candidate {
	return defaultExtractor.Extract(utterance)
}

// Extract returns every accepted candidate found in the utterance, explicit
// directive first, then implicit signals in a fixed order.
func (e *Extractor) Extract(utterance string) []Candidate {
	var candidates []Candidate

	source := truncate(utterance, MaxContentLength)
	sourceSensitive := e.classifier.IsSensitive(source)

	add := func(content string, kind Kind, explicit bool) {
		src := source
		if sourceSensitive {
			src = content
		}
		candidates = append(candidates, Candidate{
			Content:    content,
			Kind:       kind,
			Source:     src,
			IsExplicit: explicit,
		})
	}

	if m := explicitDirective.FindStringSubmatch(utterance); m != nil {
		content := Normalize(m[2])
		if content != "" && !e.classifier.IsSensitive(content) {
			add(content, KindInstruction, true)
		}
	}

	for _, s := range signals {
		m := s.regex.FindStringSubmatch(utterance)
		if m == nil {
			continue
		}
		content := Normalize(m[s.group])
		if content == "" || e.classifier.IsSensitive(content) {
			continue
		}
		if s.isName && !isLikelyName(content) {
			continue
		}
		add(content, s.kind, false)
	}

	return candidates
}

// Normalize collapses whitespace and bounds the length.
func Normalize(content string) string {
	return truncate(strings.Join(strings.Fields(content), " "), MaxContentLength)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func isLikelyName(content string) bool {
	if utf8.RuneCountInString(content) < 2 {
		return false
	}
	for _, r := range content {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
