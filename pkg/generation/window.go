package generation

import (
	"strings"

	"turion-be/pkg/llm"
)

const (
	// SummaryThreshold is the history length above which a stored summary
	// replaces older turns.
	SummaryThreshold = 10
	// RecentTurns is how many raw messages accompany the summary.
	RecentTurns = 5
	// MaxRawHistory bounds the history sent when no summary applies.
	MaxRawHistory = 20
	// MemoryTopK is the number of user memories injected per turn.
	MemoryTopK = 10
	// SummaryEvery triggers summarization after this many assistant turns.
	SummaryEvery = 10

	MaxOutputTokens = 3000
)

// ContextInput is everything the prompt is built from.
type ContextInput struct {
	Mode     Mode
	Summary  string
	History  []llm.Message
	Memories []string
	Content  string
}

// Window applies the history policy. It reports whether the summary was used.
func Window(history []llm.Message, summary string) ([]llm.Message, bool) {
	if strings.TrimSpace(summary) != "" && len(history) > SummaryThreshold {
		return tail(history, RecentTurns), true
	}
	return tail(history, MaxRawHistory), false
}

// BuildContext assembles the messages sent to the provider: mode prompt,
// summary, memories, windowed history, then the new user content.
func BuildContext(in ContextInput) []llm.Message {
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: in.Mode.Prompt()}}

	history, usedSummary := Window(in.History, in.Summary)
	if usedSummary {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: "Previous conversation summary: " + in.Summary})
	}

	if len(in.Memories) > 0 {
		var sb strings.Builder
		sb.WriteString("Known facts about the user:")
		for _, m := range in.Memories {
			sb.WriteString("\n- ")
			sb.WriteString(m)
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: sb.String()})
	}

	msgs = append(msgs, history...)
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: in.Content})
}

// SummaryPrompt builds the request used to compress a conversation.
func SummaryPrompt(history []llm.Message) []llm.Message {
	var sb strings.Builder
	sb.WriteString(`Summarize this conversation between a user and an AI consultant planning a software project.

Focus on:
1. Project idea and goals
2. Key requirements and features
3. Technology choices
4. Any important decisions made

Keep it concise (under 500 words).

Conversation:
`)
	for i, m := range history {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a helpful assistant that creates concise summaries."},
		{Role: llm.RoleUser, Content: sb.String()},
	}
}

func tail(history []llm.Message, n int) []llm.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
