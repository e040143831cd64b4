package channels

import (
	"testing"

	"github.com/sipeed/picopager/pkg/bus"
	"github.com/sipeed/picopager/pkg/config"
	"github.com/sipeed/picopager/pkg/paginator"
	"github.com/slack-go/slack/slackevents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackEmojiMapping(t *testing.T) {
	for _, glyph := range []string{paginator.Left, paginator.Stop, paginator.Right} {
		name := slackEmojiName(glyph)
		assert.NotEqual(t, glyph, name)
		assert.Equal(t, glyph, slackGlyph(name))
	}
	assert.Equal(t, "thumbsup", slackEmojiName(":thumbsup:"))
	assert.Equal(t, "thumbsup", slackGlyph("thumbsup"))
}

func TestToSlackAttachment(t *testing.T) {
	att := toSlackAttachment(&bus.Embed{
		Description: "1. a\n2. b",
		Color:       0x00ff00,
		Footer:      "Page 1/2",
		Fields:      []bus.EmbedField{{Value: "x", Inline: true}},
	})
	assert.Equal(t, "1. a\n2. b", att.Text)
	assert.Equal(t, "#00ff00", att.Color)
	assert.Equal(t, "Page 1/2", att.Footer)
	require.Len(t, att.Fields, 1)
	assert.True(t, att.Fields[0].Short)

	assert.Empty(t, toSlackAttachment(&bus.Embed{}).Color)
}

func TestSlack_HandleEvent(t *testing.T) {
	mb := bus.NewMessageBus()
	var inbound []bus.InboundMessage
	mb.SetHandler(func(msg bus.InboundMessage) error {
		inbound = append(inbound, msg)
		return nil
	})

	c := NewSlackChannel(config.SlackConfig{BotToken: "xoxb-test", AppToken: "xapp-test"}, mb)
	c.botUserID = "UBOT"
	got := captureReaction(t, mb)

	c.handleEvent(slackevents.EventsAPIEvent{
		TeamID: "T1",
		InnerEvent: slackevents.EventsAPIInnerEvent{Data: &slackevents.ReactionAddedEvent{
			User: "UBOT", Reaction: "arrow_forward",
			Item: slackevents.Item{Channel: "C1", Timestamp: "1700.1"},
		}},
	})
	assert.Equal(t, 1, mb.Reactions().Pending())

	c.handleEvent(slackevents.EventsAPIEvent{
		TeamID: "T1",
		InnerEvent: slackevents.EventsAPIInnerEvent{Data: &slackevents.ReactionAddedEvent{
			User: "U1", Reaction: "arrow_forward",
			Item: slackevents.Item{Channel: "C1", Timestamp: "1700.1"},
		}},
	})
	ev := <-got
	assert.Equal(t, bus.ReactionEvent{
		Channel: "slack", ChatID: "C1", GuildID: "T1", MessageID: "1700.1", UserID: "U1", Emoji: paginator.Right,
	}, ev)

	c.handleEvent(slackevents.EventsAPIEvent{
		TeamID: "T1",
		InnerEvent: slackevents.EventsAPIInnerEvent{Data: &slackevents.MessageEvent{
			User: "U1", Channel: "C1", Text: "!pages", TimeStamp: "1700.2", ChannelType: "im",
		}},
	})
	c.handleEvent(slackevents.EventsAPIEvent{
		InnerEvent: slackevents.EventsAPIInnerEvent{Data: &slackevents.MessageEvent{
			User: "U2", BotID: "B1", Channel: "C1", Text: "bot chatter",
		}},
	})
	require.Len(t, inbound, 1)
	assert.Equal(t, "!pages", inbound[0].Content)
	assert.Equal(t, "T1", inbound[0].GuildID)
	assert.Equal(t, "true", inbound[0].Metadata["is_dm"])
}

func TestSlack_RemoveReactionIsNoop(t *testing.T) {
	c := NewSlackChannel(config.SlackConfig{}, bus.NewMessageBus())
	assert.NoError(t, c.RemoveReaction(t.Context(), bus.MessageRef{MessageID: "1"}, paginator.Right, "U1"))
}
