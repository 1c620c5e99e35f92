// Package bot answers Telegram media uploads with direct and stream links.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-media-proxy/internal/client"
	"tg-media-proxy/internal/config"
	"tg-media-proxy/internal/links"
	"tg-media-proxy/internal/metrics"
)

// Update outcomes recorded in metrics.
const (
	outcomeMedia     = "media"
	outcomeNoMedia   = "no_media"
	outcomeIgnored   = "ignored"
	outcomeSendError = "send_error"
)

const noMediaReply = "Send me a document, video, audio, voice message or photo and I will reply with download and stream links."

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot long-polls for updates and replies to each one independently.
type Bot struct {
	api         API
	links       *links.Resolver
	logger      *slog.Logger
	metrics     *metrics.Metrics
	pollTimeout int

	mu       sync.Mutex
	stopped  bool
	handlers sync.WaitGroup
}

// New creates a Bot. The metrics parameter is optional.
func New(api API, l *links.Resolver, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Bot {
	return &Bot{
		api:         api,
		links:       l,
		logger:      logger.With("component", "bot"),
		metrics:     m,
		pollTimeout: cfg.Bot.PollTimeoutSeconds,
	}
}

// Start begins polling. Each update is handled on its own goroutine.
func (b *Bot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)

	// The poller is not waited on: the library only notices a stop request
	// between getUpdates calls, which can be a full poll timeout away.
	go func() {
		for update := range updates {
			if !b.dispatch(update) {
				b.logger.Debug("update dropped after stop", "update_id", update.UpdateID)
			}
		}
	}()

	b.logger.Info("bot polling started", "poll_timeout", b.pollTimeout)
}

// dispatch runs update on a new goroutine unless Stop has been called.
func (b *Bot) dispatch(update tgbotapi.Update) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return false
	}
	b.handlers.Add(1)
	go func() {
		defer b.handlers.Done()
		b.HandleUpdate(update)
	}()
	return true
}

// Stop stops polling and waits for in-flight updates until ctx is done.
// Updates received after Stop are dropped.
func (b *Bot) Stop(ctx context.Context) error {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()

	b.api.StopReceivingUpdates()

	done := make(chan struct{})
	go func() {
		b.handlers.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("bot stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("bot stop: %w", ctx.Err())
	}
}

// HandleUpdate replies to a single update. Updates without a message are ignored.
func (b *Bot) HandleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		b.record(outcomeIgnored)
		return
	}

	logger := b.logger.With("chat_id", msg.Chat.ID, "message_id", msg.MessageID)

	media, err := ExtractMedia(msg)
	if errors.Is(err, ErrNoMediaSupplied) {
		reply := tgbotapi.NewMessage(msg.Chat.ID, noMediaReply)
		reply.ReplyToMessageID = msg.MessageID
		if !b.send(logger, reply) {
			return
		}
		b.record(outcomeNoMedia)
		return
	}

	if !b.send(logger, b.linkReply(msg, media)) {
		return
	}
	logger.Info("links sent", "kind", media.Kind)
	b.record(outcomeMedia)
}

func (b *Bot) linkReply(msg *tgbotapi.Message, media Media) tgbotapi.MessageConfig {
	base := b.links.BaseURL("", "")
	direct := b.links.DirectURL(base, media.Ref)
	stream := b.links.StreamURL(base, media.Ref)

	text := fmt.Sprintf("%s\n\nDownload: %s\nStream: %s", media.Label, direct, stream)
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID
	reply.DisableWebPagePreview = true

	// Telegram rejects URL buttons pointing at private addresses.
	if b.links.HasPublicHost() {
		reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("Download", direct),
				tgbotapi.NewInlineKeyboardButtonURL("Stream", stream),
			),
		)
	}
	return reply
}

func (b *Bot) send(logger *slog.Logger, c tgbotapi.Chattable) bool {
	if _, err := b.api.Send(c); err != nil {
		logger.Error("send reply failed", "err", client.RedactError(err))
		b.record(outcomeSendError)
		return false
	}
	return true
}

func (b *Bot) record(outcome string) {
	if b.metrics != nil {
		b.metrics.BotUpdates.WithLabelValues(outcome).Inc()
	}
}
