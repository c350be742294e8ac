package models

import "sort"

// UserRecord is a chat's complete tracked-product registry plus its notification
// cadence. It is created implicitly on the first add and deleted once the product
// map empties. Order preserves article insertion order so paginated listings are
// stable across runs.
type UserRecord struct {
	ChatID               int64                      `bson:"chatId" validate:"required"`
	Products             map[string]*TrackedProduct `bson:"products" validate:"dive"`
	Order                []string                   `bson:"order"`
	NotificationInterval string                     `bson:"notificationInterval,omitempty"`
}

// NewUserRecord returns an empty registry for the chat.
func NewUserRecord(chatID int64) *UserRecord {
	return &UserRecord{
		ChatID:   chatID,
		Products: make(map[string]*TrackedProduct),
	}
}

// Has reports whether the article is already tracked.
func (u *UserRecord) Has(article string) bool {
	_, ok := u.Products[article]
	return ok
}

// Insert adds a product under the article key, keeping insertion order.
// Inserting an existing article replaces the product without reordering.
func (u *UserRecord) Insert(article string, p *TrackedProduct) {
	if u.Products == nil {
		u.Products = make(map[string]*TrackedProduct)
	}
	if !u.Has(article) {
		u.Order = append(u.Order, article)
	}
	u.Products[article] = p
}

// Remove deletes the article from the registry. It reports whether it was present.
func (u *UserRecord) Remove(article string) bool {
	if !u.Has(article) {
		return false
	}
	delete(u.Products, article)
	for i, a := range u.Order {
		if a == article {
			u.Order = append(u.Order[:i], u.Order[i+1:]...)
			break
		}
	}
	return true
}

// Articles returns tracked articles in insertion order. Entries present in the
// map but missing from Order (records written by older versions) are appended
// at the end so nothing is silently dropped.
func (u *UserRecord) Articles() []string {
	seen := make(map[string]bool, len(u.Order))
	out := make([]string, 0, len(u.Products))
	for _, a := range u.Order {
		if u.Has(a) && !seen[a] {
			out = append(out, a)
			seen[a] = true
		}
	}
	var stragglers []string
	for a := range u.Products {
		if !seen[a] {
			stragglers = append(stragglers, a)
		}
	}
	sort.Strings(stragglers)
	return append(out, stragglers...)
}

// Empty reports whether the registry holds no products.
func (u *UserRecord) Empty() bool {
	return len(u.Products) == 0
}
