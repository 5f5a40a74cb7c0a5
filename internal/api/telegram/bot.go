package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "ortho-mapper/internal/application"
	"ortho-mapper/internal/domain/entity"
	"ortho-mapper/internal/domain/port"
	"ortho-mapper/internal/logging"
)

const (
	msgStart = `👋 Привет! Я сообщаю о готовых картах по аэрофотоснимкам.

📋 Команды:
/subscribe — получать уведомления о новых прогонах
/unsubscribe — отписаться
/runs — последние прогоны
/latest — последний GeoJSON
/help — справка`

	msgHelp = `ℹ️ Каждый прогон превращает детекции по тайлам в один GeoJSON:
деревья становятся точками, тропинки — линиями.

📋 Команды:
/subscribe — уведомления о новых прогонах
/unsubscribe — отписаться
/runs — последние прогоны
/latest — последний GeoJSON`

	msgSubscribed     = "🔔 Вы подписаны на уведомления о прогонах."
	msgUnsubscribed   = "🔕 Уведомления отключены."
	msgNoRuns         = "📭 Прогонов пока не было."
	msgUnknownCommand = "❓ Неизвестная команда. Используйте /help для справки."
	msgSendCommand    = "📋 Используйте /help, чтобы увидеть список команд."
	msgError          = "⚠️ Не удалось выполнить команду. Попробуйте позже."

	runListLimit = 5
)

// RunQuery is the read side of the run service used by the bot.
type RunQuery interface {
	List(ctx context.Context, limit int) ([]*entity.RunRecord, error)
	Latest(ctx context.Context) ([]byte, error)
}

// sender is the part of the Telegram API the bot talks through.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot serves subscriber commands and broadcasts run summaries
type Bot struct {
	api         *tgbotapi.BotAPI
	sender      sender
	subscribers *app.SubscriberService
	runs        RunQuery
	log         *logging.Logger
}

// NewBot connects to the Telegram API
func NewBot(token string, subscribers *app.SubscriberService, runs RunQuery, log *logging.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Discard()
	}

	log.Info("authorized", "account", api.Self.UserName)

	return &Bot{
		api:         api,
		sender:      api,
		subscribers: subscribers,
		runs:        runs,
		log:         log,
	}, nil
}

// Run handles updates until ctx is done
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// Notify sends the run summary to every subscribed chat
func (b *Bot) Notify(ctx context.Context, rec *entity.RunRecord) error {
	active, err := b.subscribers.Active(ctx)
	if err != nil {
		return err
	}
	text := formatRunSummary(rec)
	var failed int
	for _, sub := range active {
		if err := b.send(tgbotapi.NewMessage(sub.ChatID, text)); err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to notify %d of %d subscribers", failed, len(active))
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	if !msg.IsCommand() {
		b.sendMessage(msg.Chat.ID, msgSendCommand)
		return
	}
	b.handleCommand(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		if _, err := b.subscribers.Get(ctx, msg.From.ID, chatID); err != nil {
			b.log.Error("get subscriber failed", "user_id", msg.From.ID, "error", err)
		}
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "subscribe":
		if _, err := b.subscribers.Subscribe(ctx, msg.From.ID, chatID); err != nil {
			b.log.Error("subscribe failed", "user_id", msg.From.ID, "error", err)
			b.sendMessage(chatID, msgError)
			return
		}
		b.sendMessage(chatID, msgSubscribed)

	case "unsubscribe":
		if _, err := b.subscribers.Unsubscribe(ctx, msg.From.ID, chatID); err != nil {
			b.log.Error("unsubscribe failed", "user_id", msg.From.ID, "error", err)
			b.sendMessage(chatID, msgError)
			return
		}
		b.sendMessage(chatID, msgUnsubscribed)

	case "runs":
		recs, err := b.runs.List(ctx, runListLimit)
		if err != nil {
			b.log.Error("list runs failed", "error", err)
			b.sendMessage(chatID, msgError)
			return
		}
		if len(recs) == 0 {
			b.sendMessage(chatID, msgNoRuns)
			return
		}
		b.sendMessage(chatID, formatRunList(recs))

	case "latest":
		data, err := b.runs.Latest(ctx)
		if err != nil {
			b.log.Error("read latest failed", "error", err)
			b.sendMessage(chatID, msgError)
			return
		}
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "latest.geojson", Bytes: data})
		if err := b.send(doc); err != nil {
			b.sendMessage(chatID, msgError)
		}

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

func (b *Bot) send(c tgbotapi.Chattable) error {
	if _, err := b.sender.Send(c); err != nil {
		b.log.Error("send failed", "error", err)
		return err
	}
	return nil
}

// sendMessage sends a plain text message
func (b *Bot) sendMessage(chatID int64, text string) {
	_ = b.send(tgbotapi.NewMessage(chatID, text))
}

var statusIcons = map[entity.Outcome]string{
	entity.OutcomeSuccess:  "✅",
	entity.OutcomeDegraded: "⚠️",
	entity.OutcomeFailed:   "❌",
}

func formatRunSummary(rec *entity.RunRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Прогон %s (%s)\n", statusIcons[rec.Status], rec.Label, rec.Status)
	fmt.Fprintf(&sb, "Тайлов: %d, объектов: %d, тропинок: %d, проблем: %d",
		rec.TileCount, rec.FeatureCount, rec.PathCount, rec.IssueCount)

	classes := make([]string, 0, len(rec.ClassCounts))
	for class := range rec.ClassCounts {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		fmt.Fprintf(&sb, "\n• %s: %d", class, rec.ClassCounts[class])
	}
	return sb.String()
}

func formatRunList(recs []*entity.RunRecord) string {
	lines := make([]string, 0, len(recs))
	for _, rec := range recs {
		lines = append(lines, fmt.Sprintf("%s %s — %d объектов", statusIcons[rec.Status], rec.Label, rec.FeatureCount))
	}
	return strings.Join(lines, "\n")
}

var _ port.RunNotifier = (*Bot)(nil)
