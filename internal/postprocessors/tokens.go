package postprocessors

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultTokenEncoding matches the OpenAI embedding models.
const DefaultTokenEncoding = "cl100k_base"

// NewTokenLength returns a LengthFunc counting BPE tokens in the named encoding.
// Loading an encoding may fetch its vocabulary on first use.
func NewTokenLength(encoding string) (LengthFunc, error) {
	if encoding == "" {
		encoding = DefaultTokenEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load token encoding %s: %w", encoding, err)
	}
	return func(s string) int {
		return len(enc.Encode(s, nil, nil))
	}, nil
}

// NewLengthFunc selects the length unit for chunk budgets: "chars" or "tokens".
func NewLengthFunc(unit, encoding string) (LengthFunc, error) {
	switch unit {
	case "", "chars":
		return CharLength, nil
	case "tokens":
		return NewTokenLength(encoding)
	default:
		return nil, fmt.Errorf("unknown chunk length unit %q", unit)
	}
}
