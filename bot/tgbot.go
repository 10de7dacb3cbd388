package bot

import (
	"Kotofey/core"
	"Kotofey/holder"
	"Kotofey/lib/sl"
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

const (
	triggerText    = "Сказать породу кота"
	startText      = "Нажми кнопку, чтобы я назвал породу случайного кота с прилагательным и показал его изображение!"
	nudgeText      = "Нажми кнопку, чтобы узнать породу кота и увидеть его изображение!"
	processingText = "🐱 Генерирую породу кота и изображение..."
	genericFail    = "Извините, произошла ошибка при обработке запроса. Попробуйте еще раз."

	captionFormat   = "🎨 Сгенерированный кот: %s"
	imageFailFormat = "Порода кота: %s\n\nНо произошла ошибка при генерации изображения 😿"
	cooldownFormat  = "Не так быстро! Следующий кот будет доступен через %d мин. 🐾"
)

// telegramAPI is the slice of tgbotapi.BotAPI the handlers actually use.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	DeleteMessage(config tgbotapi.DeleteMessageConfig) (tgbotapi.APIResponse, error)
}

type TgBot struct {
	conf   *core.Config
	log    *slog.Logger
	bot    *tgbotapi.BotAPI
	api    telegramAPI
	breeds core.BreedNamer
	images core.ImageGenerator
	guard  *holder.CooldownGuard

	stopChan chan struct{}
}

func NewTgBot(conf *core.Config, log *slog.Logger, breeds core.BreedNamer, images core.ImageGenerator, guard *holder.CooldownGuard) (*TgBot, error) {
	api, err := tgbotapi.NewBotAPI(conf.TelegramApiKey)
	if err != nil {
		return nil, err
	}

	return &TgBot{
		conf:     conf,
		log:      log.With(sl.Module("tgbot")),
		bot:      api,
		api:      api,
		breeds:   breeds,
		images:   images,
		guard:    guard,
		stopChan: make(chan struct{}),
	}, nil
}

func (t *TgBot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates, err := t.bot.GetUpdatesChan(u)
	if err != nil {
		return err
	}

	for {
		select {
		case <-t.stopChan:
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}

			incoming := update.Message
			if !incoming.Chat.IsPrivate() && !incoming.IsCommand() {
				continue
			}

			logText := incoming.Text
			if len(logText) > 50 {
				logText = logText[:50] + "..."
			}
			t.log.With(
				sl.User(int64(incoming.From.ID)),
				slog.String("text", logText),
			).Info("incoming message")

			if incoming.IsCommand() {
				t.handleCommand(incoming)
				continue
			}

			go t.handleMessage(incoming.Chat.ID, int64(incoming.From.ID), incoming.Text)
		}
	}
}

// Stop makes the update loop return on its next pass.
func (t *TgBot) Stop() {
	close(t.stopChan)
}

func (t *TgBot) handleCommand(incoming *tgbotapi.Message) {
	switch incoming.Command() {
	case "start":
		msg := tgbotapi.NewMessage(incoming.Chat.ID, startText)
		msg.ReplyMarkup = tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(triggerText)),
		)
		if _, err := t.api.Send(msg); err != nil {
			t.log.Error("sending start reply", sl.Err(err))
		}
	case "help":
		t.plainResponse(incoming.Chat.ID, "Команды:\n/start - начать")
	default:
		t.plainResponse(incoming.Chat.ID, nudgeText)
	}
}

func (t *TgBot) handleMessage(chatId, userId int64, text string) {
	if text != triggerText {
		t.plainResponse(chatId, nudgeText)
		return
	}
	t.handleGeneration(chatId, userId)
}

// generation carries the result of the two-stage flow. A non-empty Breed
// alongside a non-nil Err means the breed was obtained but the image step
// failed, which is reported differently from a total failure.
type generation struct {
	Breed string
	Image []byte
	Err   error
}

func (t *TgBot) handleGeneration(chatId, userId int64) {
	if !t.guard.MayProceed(userId) {
		wait := t.guard.RemainingWait(userId)
		t.plainResponse(chatId, fmt.Sprintf(cooldownFormat, int(wait.Minutes())))
		return
	}

	placeholder, err := t.api.Send(tgbotapi.NewMessage(chatId, processingText))
	if err != nil {
		t.log.Error("sending placeholder", sl.Err(err))
	}

	result := t.generate(context.Background(), userId)

	// the placeholder never outlives the interaction, success or not
	if placeholder.MessageID != 0 {
		t.deleteMessage(chatId, placeholder.MessageID)
	}

	switch {
	case result.Err == nil:
		photo := tgbotapi.NewPhotoUpload(chatId, tgbotapi.FileBytes{
			Name:  "cat.png",
			Bytes: result.Image,
		})
		photo.Caption = fmt.Sprintf(captionFormat, result.Breed)
		if _, err := t.api.Send(photo); err != nil {
			t.log.With(sl.User(userId)).Error("sending photo", sl.Err(err))
			t.plainResponse(chatId, fmt.Sprintf(imageFailFormat, result.Breed))
		}
		t.guard.RecordGeneration(userId, result.Breed, true)
	case result.Breed != "":
		t.log.With(sl.User(userId)).Error("image stage failed", sl.Err(result.Err))
		t.plainResponse(chatId, fmt.Sprintf(imageFailFormat, result.Breed))
		t.guard.RecordGeneration(userId, result.Breed, false)
	default:
		t.log.With(sl.User(userId)).Error("breed stage failed", sl.Err(result.Err))
		t.plainResponse(chatId, genericFail)
	}
}

func (t *TgBot) generate(ctx context.Context, userId int64) generation {
	breed, err := t.breeds.BreedDescription(ctx)
	if err != nil {
		return generation{Err: err}
	}
	t.log.With(sl.User(userId)).Info("breed obtained", slog.String("breed", breed))

	image, err := t.images.GenerateImage(ctx, breed)
	if err != nil {
		return generation{Breed: breed, Err: err}
	}
	return generation{Breed: breed, Image: image}
}

func (t *TgBot) plainResponse(chatId int64, text string) {
	msg := tgbotapi.NewMessage(chatId, text)
	if _, err := t.api.Send(msg); err != nil {
		t.log.Error("sending message", sl.Err(err))
	}
}

func (t *TgBot) deleteMessage(chatId int64, messageId int) {
	_, err := t.api.DeleteMessage(tgbotapi.DeleteMessageConfig{
		ChatID:    chatId,
		MessageID: messageId,
	})
	if err != nil {
		t.log.Error("deleting message", sl.Err(err))
	}
}
