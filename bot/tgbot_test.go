package bot

import (
	"Kotofey/core"
	"Kotofey/holder"
	"Kotofey/storage"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	deleted []tgbotapi.DeleteMessageConfig
	nextId  int
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextId++
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: f.nextId}, nil
}

func (f *fakeAPI) DeleteMessage(config tgbotapi.DeleteMessageConfig) (tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, config)
	return tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg)
		}
	}
	return out
}

func (f *fakeAPI) photos() []tgbotapi.PhotoConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.PhotoConfig
	for _, c := range f.sent {
		if photo, ok := c.(tgbotapi.PhotoConfig); ok {
			out = append(out, photo)
		}
	}
	return out
}

type fakeBreeds struct {
	breed string
	err   error
}

func (f *fakeBreeds) BreedDescription(ctx context.Context) (string, error) {
	return f.breed, f.err
}

type fakeImages struct {
	image []byte
	err   error
}

func (f *fakeImages) GenerateImage(ctx context.Context, breed string) ([]byte, error) {
	return f.image, f.err
}

func (f *fakeImages) Available() bool {
	return true
}

func newTestBot(breeds core.BreedNamer, images core.ImageGenerator) (*TgBot, *fakeAPI) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := &fakeAPI{}
	guard := holder.NewCooldownGuard(time.Hour, storage.NewMemoryCooldown(), storage.NewMemoryHistory(), log)

	return &TgBot{
		conf:     &core.Config{},
		log:      log,
		api:      api,
		breeds:   breeds,
		images:   images,
		guard:    guard,
		stopChan: make(chan struct{}),
	}, api
}

func TestHandleGeneration_FullSuccess(t *testing.T) {
	breeds := &fakeBreeds{breed: "Меланхоличный сфинкс"}
	images := &fakeImages{image: []byte("123456789012")}
	bot, api := newTestBot(breeds, images)

	bot.handleGeneration(10, 42)

	photos := api.photos()
	require.Len(t, photos, 1, "exactly one photo message")
	assert.Contains(t, photos[0].Caption, "Меланхоличный сфинкс")
	assert.Equal(t, []byte("123456789012"), photos[0].File.(tgbotapi.FileBytes).Bytes)

	messages := api.messages()
	require.Len(t, messages, 1, "only the placeholder, no error message")
	assert.Equal(t, processingText, messages[0].Text)

	require.Len(t, api.deleted, 1, "placeholder was deleted")
	assert.Equal(t, int64(10), api.deleted[0].ChatID)
}

func TestHandleGeneration_ImageStageFails(t *testing.T) {
	breeds := &fakeBreeds{breed: "Меланхоличный сфинкс"}
	images := &fakeImages{err: &core.GenerationError{Status: "FAIL"}}
	bot, api := newTestBot(breeds, images)

	bot.handleGeneration(10, 42)

	assert.Empty(t, api.photos(), "no photo on image failure")

	messages := api.messages()
	require.Len(t, messages, 2)
	assert.Equal(t, processingText, messages[0].Text)
	assert.Contains(t, messages[1].Text, "Меланхоличный сфинкс", "breed is still reported")
	assert.Contains(t, messages[1].Text, "ошибка при генерации изображения")

	require.Len(t, api.deleted, 1, "placeholder was deleted")
}

func TestHandleGeneration_BreedStageFails(t *testing.T) {
	breeds := &fakeBreeds{err: &core.UpstreamError{Err: errors.New("boom")}}
	images := &fakeImages{}
	bot, api := newTestBot(breeds, images)

	bot.handleGeneration(10, 42)

	messages := api.messages()
	require.Len(t, messages, 2)
	assert.Equal(t, genericFail, messages[1].Text)
	require.Len(t, api.deleted, 1, "placeholder was deleted")
}

func TestHandleGeneration_CooldownRejectsSecondRequest(t *testing.T) {
	breeds := &fakeBreeds{breed: "Печальный мейн-кун"}
	images := &fakeImages{image: []byte("img")}
	bot, api := newTestBot(breeds, images)

	bot.handleGeneration(10, 42)
	require.Len(t, api.photos(), 1)

	sentBefore := len(api.sent)
	bot.handleGeneration(10, 42)

	require.Len(t, api.sent, sentBefore+1, "rejection is a single text message")
	messages := api.messages()
	assert.Contains(t, messages[len(messages)-1].Text, "мин")
	assert.Len(t, api.photos(), 1, "no second generation ran")
}

func TestHandleMessage_NonTriggerTextGetsNudge(t *testing.T) {
	bot, api := newTestBot(&fakeBreeds{}, &fakeImages{})

	bot.handleMessage(10, 42, "привет")

	messages := api.messages()
	require.Len(t, messages, 1)
	assert.Equal(t, nudgeText, messages[0].Text)
	assert.Empty(t, api.deleted)
}
