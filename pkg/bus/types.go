package bus

type InboundMessage struct {
	Channel  string            `json:"channel"`
	SenderID string            `json:"sender_id"`
	ChatID   string            `json:"chat_id"`
	GuildID  string            `json:"guild_id,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content,omitempty"`
	Embed   *Embed `json:"embed,omitempty"`
}

type Embed struct {
	Description string       `json:"description,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Color       int          `json:"color,omitempty"` // 0xRRGGBB, 0 means unset
	Footer      string       `json:"footer,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// MessageRef identifies a message that has been displayed on a platform.
type MessageRef struct {
	Channel   string `json:"channel"`
	ChatID    string `json:"chat_id"`
	GuildID   string `json:"guild_id,omitempty"`
	MessageID string `json:"message_id"`
}

func (r MessageRef) Key() string {
	return r.Channel + ":" + r.ChatID + ":" + r.MessageID
}

// ReactionEvent is a reaction added to a message by a user.
// GuildID is empty when the message lives outside a guild (DMs, console).
type ReactionEvent struct {
	Channel   string `json:"channel"`
	ChatID    string `json:"chat_id"`
	GuildID   string `json:"guild_id,omitempty"`
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	Emoji     string `json:"emoji"`
}

type MessageHandler func(InboundMessage) error
