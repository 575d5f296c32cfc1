package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/shuttlekit/shuttlebot/internal/shuttle"
	"github.com/shuttlekit/shuttlebot/internal/store"
)

// Config carries the bot-side knobs.
type Config struct {
	Token             string
	RequestTimeout    time.Duration
	MaxHistory        int
	RateLimitMessages int
	RateLimitInterval time.Duration
	RateLimitBlock    time.Duration
}

// Bot wires the Discord gateway to the completion client: it listens for
// messages, streams model output back through a DeliveryBuffer, and keeps the
// per-user conversation history.
type Bot struct {
	session       *discordgo.Session
	client        *shuttle.Client
	store         *store.Store
	conversations *ConversationManager
	limiter       *RateLimiter
	log           *slog.Logger
	timeout       time.Duration

	notifiedMu      sync.Mutex
	notifiedLimited map[string]bool
}

var emptyMessageReplies = []string{
	"Yes??", "Hello?", "Can I help you?", "What can I do for you?",
	"Need something?", "What's up?", "How can I help you?",
}

// New constructs a Bot. Start must be called to open the gateway connection.
func New(cfg Config, client *shuttle.Client, st *store.Store, log *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	return &Bot{
		session:         session,
		client:          client,
		store:           st,
		conversations:   NewConversationManager(cfg.MaxHistory),
		limiter:         NewRateLimiter(cfg.RateLimitMessages, cfg.RateLimitInterval, cfg.RateLimitBlock),
		log:             log,
		timeout:         cfg.RequestTimeout,
		notifiedLimited: make(map[string]bool),
	}, nil
}

// Start registers handlers and opens the gateway connection.
func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord connection: %w", err)
	}
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	return b.session.Close()
}

// Conversations exposes the manager, for the reset command surface.
func (b *Bot) Conversations() *ConversationManager {
	return b.conversations
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("discord connected", "user", r.User.Username)
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == s.State.User.ID {
		return
	}
	if len(m.Embeds) > 0 || m.MentionEveryone {
		return
	}
	if !b.shouldRespond(s, m) {
		return
	}

	userID := m.Author.ID
	if b.limiter.Limited(userID) {
		b.notifyRateLimited(s, m, userID)
		return
	}
	b.clearRateLimitNotice(userID)

	b.handleChat(s, m)
}

// shouldRespond reports whether the message addresses the bot: a direct
// mention, a registered chat channel, or a DM.
func (b *Bot) shouldRespond(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	for _, u := range m.Mentions {
		if u.ID == s.State.User.ID {
			return true
		}
	}
	if m.GuildID == "" {
		return true
	}
	channels, err := b.store.Channels()
	if err != nil {
		b.log.Error("load channels", "error", err)
		return false
	}
	for _, id := range channels {
		if id == m.ChannelID {
			return true
		}
	}
	return false
}

func (b *Bot) handleChat(s *discordgo.Session, m *discordgo.MessageCreate) {
	reqID := uuid.NewString()
	log := b.log.With("request_id", reqID, "user", m.Author.ID)

	settings, err := b.store.GetOrCreate(m.Author.ID)
	if err != nil {
		log.Error("load settings", "error", err)
		return
	}

	content := b.stripMention(s, m.Content)
	if content == "" {
		time.Sleep(time.Duration(1+rand.Intn(2)) * time.Second)
		_, err := s.ChannelMessageSendReply(m.ChannelID,
			emptyMessageReplies[rand.Intn(len(emptyMessageReplies))],
			m.Reference())
		if err != nil {
			log.Warn("send canned reply", "error", err)
		}
		return
	}

	conv := b.conversations.GetOrCreate(m.Author.ID)
	conv.Add(shuttle.RoleUser, content)
	log.Info("message received", "len", len(content), "model", settings.Model)

	_ = s.ChannelTyping(m.ChannelID)

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	messages := append(
		[]shuttle.ChatMessage{shuttle.Text(shuttle.RoleSystem, b.instructionsFor(s, m, settings.Personality))},
		conv.Messages()...,
	)
	events, err := b.client.CreateStream(ctx, &shuttle.ChatRequest{
		Model:    settings.Model,
		Messages: messages,
	})
	if err != nil {
		log.Error("completion request failed", "error", err)
		return
	}

	delivery := NewDeliveryBuffer(newDiscordSink(s, m.Message), log)
	b.consumeStream(ctx, events, delivery, log)

	// Whatever made it through stays in the conversation, even after a
	// mid-stream failure, so the next turn has continuity.
	full, chunks := delivery.Finish(ctx)
	conv.Add(shuttle.RoleAssistant, full)
	log.Info("completion delivered", "chunks", chunks, "len", len(full))
}

// consumeStream pumps typed events into the delivery buffer until the stream
// ends or fails. Errors stop consumption but never roll back flushed output.
func (b *Bot) consumeStream(ctx context.Context, events <-chan shuttle.StreamEvent, delivery *DeliveryBuffer, log *slog.Logger) {
	for ev := range events {
		switch {
		case ev.Err != nil:
			log.Error("stream failed", "error", ev.Err)
			if strings.Contains(ev.Err.Error(), "rate limit") {
				time.Sleep(time.Second)
			}
			return
		case ev.ErrorRecord != nil:
			log.Error("api error mid-stream",
				"status", ev.ErrorRecord.Status,
				"message", ev.ErrorRecord.Detail.Message,
			)
			if strings.Contains(ev.ErrorRecord.Detail.Message, "rate limit") {
				time.Sleep(time.Second)
			}
			return
		case ev.Chunk != nil:
			delivery.Add(ctx, ev.Chunk.DeltaContent())
		default:
			log.Debug("unrecognized frame", "raw", string(ev.Raw))
		}
	}
}

func (b *Bot) instructionsFor(s *discordgo.Session, m *discordgo.MessageCreate, personality string) string {
	env := EnvInfo{
		AuthorName: m.Author.Username,
		AuthorID:   m.Author.ID,
	}
	if m.GuildID != "" {
		if guild, err := s.State.Guild(m.GuildID); err == nil {
			env.GuildName = guild.Name
			if owner, err := s.User(guild.OwnerID); err == nil {
				env.OwnerName = owner.Username
			}
		}
		if channel, err := s.State.Channel(m.ChannelID); err == nil {
			env.Channel = channel.Name
		}
	}
	return Instructions(personality, env)
}

func (b *Bot) stripMention(s *discordgo.Session, content string) string {
	botID := s.State.User.ID
	content = strings.ReplaceAll(content, "<@"+botID+">", "")
	content = strings.ReplaceAll(content, "<@!"+botID+">", "")
	return strings.TrimSpace(content)
}

// notifyRateLimited posts the rate-limit embed once per block window.
func (b *Bot) notifyRateLimited(s *discordgo.Session, m *discordgo.MessageCreate, userID string) {
	b.notifiedMu.Lock()
	already := b.notifiedLimited[userID]
	b.notifiedLimited[userID] = true
	b.notifiedMu.Unlock()
	if already {
		return
	}

	until, ok := b.limiter.BlockedUntil(userID)
	if !ok {
		return
	}
	_, err := s.ChannelMessageSendEmbed(m.ChannelID, &discordgo.MessageEmbed{
		Title:       "⏱ Rate Limited",
		Description: fmt.Sprintf("You can send another message <t:%d:R>.", until.Unix()),
		Color:       0xFF0000,
	})
	if err != nil {
		b.log.Warn("send rate limit embed", "error", err)
	}
}

func (b *Bot) clearRateLimitNotice(userID string) {
	b.notifiedMu.Lock()
	delete(b.notifiedLimited, userID)
	b.notifiedMu.Unlock()
}
