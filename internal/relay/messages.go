package relay

import (
	openai "github.com/sashabaranov/go-openai"

	"pulsechat-backend/internal/types"
)

// BuildMessages returns [system] + the last window history pairs flattened to
// user/assistant turns in chronological order + the new user turn.
func BuildMessages(system string, history []types.HistoryEntry, message string, window int) []openai.ChatCompletionMessage {
	if window >= 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	out := make([]openai.ChatCompletionMessage, 0, 2+2*len(history))
	out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	for _, h := range history {
		out = append(out,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: h.User},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: h.AI},
		)
	}
	return append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})
}
