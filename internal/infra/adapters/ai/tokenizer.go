package ai

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/Kassag-stack/visionly.ai/internal/domain/ports/adapter"
)

// Per-message framing overhead in the chat format, per the OpenAI cookbook
// guidance for gpt-4-class models.
const tokensPerMessage = 4

// countTokensLocal estimates prompt tokens with tiktoken. Unknown models
// fall back to the cl100k_base encoding, which is close enough for the
// budgeting decision this feeds.
func countTokensLocal(model string, messages []adapter.Message) (int, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		if enc, err = tiktoken.GetEncoding("cl100k_base"); err != nil {
			return 0, err
		}
	}
	total := 0
	for _, m := range messages {
		total += tokensPerMessage
		total += len(enc.Encode(m.Content, nil, nil))
		total += len(enc.Encode(m.Role, nil, nil))
	}
	return total, nil
}
