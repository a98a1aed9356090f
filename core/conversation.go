package core

// Conversation is the ordered message history of a single run. It only
// grows: messages are appended, never edited or removed. A Conversation is
// owned by exactly one run and is not safe for concurrent mutation.
type Conversation struct {
	messages []Message
}

// NewConversation creates a conversation seeded with the caller's input.
func NewConversation(input string) *Conversation {
	return &Conversation{messages: []Message{NewUserMessage(input)}}
}

// Append adds m to the end of the history.
func (c *Conversation) Append(m Message) {
	c.messages = append(c.messages, m)
}

// Len returns the number of messages.
func (c *Conversation) Len() int { return len(c.messages) }

// Messages returns a deep copy of the history in order.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.Clone()
	}

	return out
}

// Last returns the most recent message.
func (c *Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}

	return c.messages[len(c.messages)-1], true
}

// LastFinalText returns the most recent plain assistant text message.
func (c *Conversation) LastFinalText() (Message, bool) {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].IsFinalText() {
			return c.messages[i], true
		}
	}

	return Message{}, false
}

// HasUserMessage reports whether the history contains caller input.
func (c *Conversation) HasUserMessage() bool {
	for _, m := range c.messages {
		if m.Role == RoleUser {
			return true
		}
	}

	return false
}
