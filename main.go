package main

import (
	"Kotofey/ai"
	"Kotofey/bot"
	"Kotofey/core"
	"Kotofey/holder"
	"Kotofey/lib/sl"
	"Kotofey/storage"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	flag.Parse()

	// secrets come from .env in the reference environment; missing file is fine
	_ = godotenv.Load()

	conf := core.MustLoad(*configPath)
	log := setupLogger(conf.Env)
	log.With(
		slog.String("config", *configPath),
		slog.String("env", conf.Env),
		slog.String("model", conf.GigaChat.Model),
	).Info("starting kotofey bot")

	cooldowns, history := setupStorage(conf, log)
	guard := holder.NewCooldownGuard(conf.Cooldown(), cooldowns, history, log)

	tokens := ai.NewTokenManager(conf, log)

	// prime the token so the first user does not pay for acquisition;
	// a failure here is not fatal, the lazy path will retry on demand
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := tokens.Refresh(ctx); err != nil {
		log.Error("priming token", sl.Err(err))
	}
	cancel()
	tokens.StartBackgroundRefresh()

	gigaChat := ai.NewGigaChat(conf, log, tokens)
	kandinsky := ai.NewKandinsky(conf, log)
	if !kandinsky.Available() {
		log.Warn("kandinsky keys are not configured, image generation is unavailable")
	}

	tgBot, err := bot.NewTgBot(conf, log, gigaChat, kandinsky, guard)
	if err != nil {
		log.Error("creating telegram bot", sl.Err(err))
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := tgBot.Start(); err != nil {
			log.Error("bot stopped with error", sl.Err(err))
		}
	}()

	log.Info("bot started")

	sig := <-sigChan
	log.Info("received signal, shutting down", slog.String("signal", sig.String()))

	tgBot.Stop()
	tokens.Stop()

	if err := guard.Close(); err != nil {
		log.Error("closing storage", sl.Err(err))
	}

	log.Info("shutdown complete")
}

func setupStorage(conf *core.Config, log *slog.Logger) (storage.CooldownStorage, storage.HistoryStorage) {
	if !conf.Mongo.Enabled {
		log.Info("using in-memory storage")
		return storage.NewMemoryCooldown(), storage.NewMemoryHistory()
	}

	mongoURI := fmt.Sprintf("mongodb://%s:%s@%s:%s",
		conf.Mongo.User, conf.Mongo.Password,
		conf.Mongo.Host, conf.Mongo.Port)
	cooldowns, err := storage.NewMongoCooldown(mongoURI, conf.Mongo.Database, log)
	if err != nil {
		log.With(
			slog.String("db", conf.Mongo.Database),
			slog.String("user", conf.Mongo.User),
			slog.String("host", conf.Mongo.Host),
		).Error("falling back to memory", sl.Err(err))
		return storage.NewMemoryCooldown(), storage.NewMemoryHistory()
	}

	log.Info("using MongoDB storage")
	return cooldowns, storage.NewMongoHistory(cooldowns.GetClient(), conf.Mongo.Database, log)
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal, envDev:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
