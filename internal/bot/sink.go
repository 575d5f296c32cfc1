package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// MessageSink posts and edits user-visible messages. Both operations may fail
// (network, permissions); callers log and carry on rather than aborting the
// stream.
type MessageSink interface {
	// Send posts a new message and returns an opaque handle to it.
	Send(ctx context.Context, text string) (string, error)
	// Edit replaces the displayed content of a previously sent message.
	Edit(ctx context.Context, handle string, fullText string) error
}

// discordSink delivers messages to one Discord channel, replying to the
// message that triggered the completion and suppressing all mentions.
type discordSink struct {
	session   *discordgo.Session
	channelID string
	replyTo   *discordgo.MessageReference
}

func newDiscordSink(session *discordgo.Session, m *discordgo.Message) *discordSink {
	return &discordSink{
		session:   session,
		channelID: m.ChannelID,
		replyTo:   m.Reference(),
	}
}

func (s *discordSink) Send(ctx context.Context, text string) (string, error) {
	msg, err := s.session.ChannelMessageSendComplex(s.channelID, &discordgo.MessageSend{
		Content:         text,
		Reference:       s.replyTo,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return msg.ID, nil
}

func (s *discordSink) Edit(ctx context.Context, handle string, fullText string) error {
	_, err := s.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:      handle,
		Channel: s.channelID,
		Content: &fullText,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}
