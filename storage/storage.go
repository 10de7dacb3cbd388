package storage

import "time"

type CooldownEntry struct {
	UserId      int64     `bson:"user_id"`
	LastRequest time.Time `bson:"last_request"`
}

type GenerationRecord struct {
	UserId    int64     `bson:"user_id"`
	Breed     string    `bson:"breed"`
	HasImage  bool      `bson:"has_image"`
	CreatedAt time.Time `bson:"created_at"`
}

type CooldownStorage interface {
	// MayProceed reports whether the user may make a request now and, on the
	// accepting branch, records now as the last accepted request. The check
	// and the write are one step; two rapid calls cannot both be accepted
	// inside the window. A user with no record is immediately eligible.
	MayProceed(userId int64, window time.Duration) (bool, error)
	// RemainingWait returns the time left until the user is eligible again,
	// truncated to whole minutes; zero when eligible.
	RemainingWait(userId int64, window time.Duration) (time.Duration, error)
	Close() error
}

type HistoryStorage interface {
	SaveGeneration(record GenerationRecord) error
	RecentGenerations(userId int64, limit int) ([]GenerationRecord, error)
	Close() error
}
