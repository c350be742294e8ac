package tracker

import (
	"context"

	"github.com/huligan-sport/wb-price-bot/internal/models"
)

// UserStore abstracts the document store holding per-chat registries.
// Loading an absent chat returns (nil, nil); saves are upserts.
type UserStore interface {
	LoadUser(ctx context.Context, chatID int64) (*models.UserRecord, error)
	SaveUser(ctx context.Context, rec *models.UserRecord) error
	DeleteUser(ctx context.Context, chatID int64) error
}

// ProductResolver turns an article into normalized product data.
type ProductResolver interface {
	Resolve(ctx context.Context, article string) (*models.ResolvedProduct, error)
}

// Notifier abstracts the chat transport as a best-effort notification sink.
type Notifier interface {
	SendText(chatID int64, text string) error
	SendPhoto(chatID int64, imageURL, caption string) error
}

// JobDeriver re-derives the scheduled job set from persisted state. The
// tracker signals it whenever a registry appears, empties, or changes cadence.
type JobDeriver interface {
	Rederive(ctx context.Context) error
}
