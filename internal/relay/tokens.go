package relay

import (
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
	"github.com/tiktoken-go/tokenizer"
)

// tokenCounter estimates prompt size for logging. The provider does its own
// accounting, so a nil codec just reports zero.
type tokenCounter struct {
	codec tokenizer.Codec
}

func newTokenCounter() *tokenCounter {
	c, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		log.Warn().Err(err).Msg("relay: tokenizer unavailable")
		return &tokenCounter{}
	}
	return &tokenCounter{codec: c}
}

func (t *tokenCounter) count(messages []openai.ChatCompletionMessage) int {
	if t == nil || t.codec == nil {
		return 0
	}
	total := 0
	for _, m := range messages {
		ids, _, err := t.codec.Encode(m.Content)
		if err != nil {
			continue
		}
		// role and separators
		total += len(ids) + 4
	}
	return total
}
