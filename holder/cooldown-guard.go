package holder

import (
	"Kotofey/lib/sl"
	"Kotofey/storage"
	"log/slog"
	"time"
)

// CooldownGuard gates generation requests per user and keeps a record of
// finished generations. Storage errors are logged and the gate fails open:
// a broken cooldown store should not take the bot down with it.
type CooldownGuard struct {
	window    time.Duration
	cooldowns storage.CooldownStorage
	history   storage.HistoryStorage
	log       *slog.Logger
}

func NewCooldownGuard(window time.Duration, cooldowns storage.CooldownStorage, history storage.HistoryStorage, log *slog.Logger) *CooldownGuard {
	return &CooldownGuard{
		window:    window,
		cooldowns: cooldowns,
		history:   history,
		log:       log.With(sl.Module("cooldown")),
	}
}

func (g *CooldownGuard) MayProceed(userId int64) bool {
	ok, err := g.cooldowns.MayProceed(userId, g.window)
	if err != nil {
		g.log.With(sl.User(userId)).Error("checking cooldown", sl.Err(err))
		return true
	}
	return ok
}

func (g *CooldownGuard) RemainingWait(userId int64) time.Duration {
	wait, err := g.cooldowns.RemainingWait(userId, g.window)
	if err != nil {
		g.log.With(sl.User(userId)).Error("getting remaining wait", sl.Err(err))
		return 0
	}
	return wait
}

func (g *CooldownGuard) RecordGeneration(userId int64, breed string, hasImage bool) {
	record := storage.GenerationRecord{
		UserId:   userId,
		Breed:    breed,
		HasImage: hasImage,
	}
	if err := g.history.SaveGeneration(record); err != nil {
		g.log.With(sl.User(userId)).Error("saving generation record", sl.Err(err))
	}
}

func (g *CooldownGuard) Close() error {
	if err := g.history.Close(); err != nil {
		g.log.Error("closing history storage", sl.Err(err))
	}
	return g.cooldowns.Close()
}
