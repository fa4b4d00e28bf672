package notify

import (
	"context"
	"errors"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Telegram sends events to one chat. Events are queued and delivered by a
// single background worker so callers never wait on the network.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64

	queue chan Event
	wg    sync.WaitGroup
	once  sync.Once
}

const telegramQueue = 64

// NewTelegram connects to the Bot API. endpoint overrides the API
// endpoint format (tgbotapi.APIEndpoint) when non-empty.
func NewTelegram(token string, chatID int64, endpoint string) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("telegram: missing bot token")
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, err
	}

	t := &Telegram{api: api, chatID: chatID, queue: make(chan Event, telegramQueue)}
	t.wg.Add(1)
	go t.run()

	log.Info().Str("bot", api.Self.UserName).Msg("telegram notifier connected")
	return t, nil
}

// Notify queues e. When the queue is full the event is dropped and logged.
func (t *Telegram) Notify(ctx context.Context, e Event) {
	select {
	case t.queue <- e:
	default:
		log.Error().Str("event", e.Kind.String()).Str("symbol", e.Symbol).Msg("telegram queue full, dropping event")
	}
}

// Close drains the queue and stops the worker.
func (t *Telegram) Close() error {
	t.once.Do(func() { close(t.queue) })
	t.wg.Wait()
	return nil
}

func (t *Telegram) run() {
	defer t.wg.Done()
	for e := range t.queue {
		if err := t.send(e); err != nil {
			log.Error().Err(err).Str("event", e.Kind.String()).Str("symbol", e.Symbol).Msg("telegram send failed")
			continue
		}
		log.Debug().Str("event", e.Kind.String()).Msg("telegram sent")
	}
}

func (t *Telegram) send(e Event) error {
	msg := tgbotapi.NewMessage(t.chatID, Format(e))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableNotification = e.Silent()
	_, err := t.api.Send(msg)
	return err
}
