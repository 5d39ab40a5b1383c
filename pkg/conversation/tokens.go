package conversation

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	// tokenEncoder is the global tiktoken encoder
	tokenEncoder *tiktoken.Tiktoken
	encoderOnce  sync.Once
	encoderErr   error
)

// initTokenEncoder initializes the tiktoken encoder (lazy initialization)
func initTokenEncoder() error {
	encoderOnce.Do(func() {
		// Use cl100k_base encoding (GPT-4, GPT-3.5-turbo, text-embedding-ada-002)
		tokenEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoderErr
}

// CountTokens counts the number of tokens in a text using tiktoken
func CountTokens(text string) int {
	if err := initTokenEncoder(); err != nil {
		// Fallback to estimation if tiktoken fails
		return estimateTokens(text)
	}

	tokens := tokenEncoder.Encode(text, nil, nil)
	return len(tokens)
}

// CountTokensForMessages counts tokens for a list of messages, including
// the OpenAI-documented per-message formatting overhead.
func CountTokensForMessages(messages []Message) int {
	if err := initTokenEncoder(); err != nil {
		total := 0
		for _, msg := range messages {
			total += 4 // per-message overhead: role, content markers, etc.
			total += estimateTokens(string(msg.Role))
			total += estimateTokens(msg.Content)
		}
		total += 2 // overall structure overhead
		return total
	}

	total := 0
	for _, msg := range messages {
		total += 4 // per-message overhead: role, content markers, etc.
		total += len(tokenEncoder.Encode(string(msg.Role), nil, nil))
		total += len(tokenEncoder.Encode(msg.Content, nil, nil))
	}
	total += 2 // overall structure overhead
	return total
}

// estimateTokens approximates a token count as one token per four
// characters (rounded up), used when the tiktoken encoder is unavailable.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// UpdateMessageTokens recomputes msg.Tokens from its content.
func UpdateMessageTokens(msg *Message) {
	msg.Tokens = CountTokens(msg.Content)
}

// UpdateAllTokens recomputes token counts for every message, using
// accurate tiktoken counts rather than the coarse character estimate.
func (c *Conversation) UpdateAllTokens() {
	total := 0
	for i := range c.Messages {
		c.Messages[i].Tokens = CountTokens(c.Messages[i].Content)
		total += c.Messages[i].Tokens
	}
	c.TokenCount = total
}

// GetAccurateTokenCount returns the tiktoken-based token count for the
// whole conversation, including per-message formatting overhead.
func (c *Conversation) GetAccurateTokenCount() int {
	return CountTokensForMessages(c.Messages)
}
