package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/huligan-sport/wb-price-bot/internal/models"
	"github.com/huligan-sport/wb-price-bot/internal/wb"
)

// Operation rejection sentinels, surfaced to callers after the user has
// already been notified.
var (
	ErrThrottled       = errors.New("operation throttled, try again later")
	ErrCheckInProgress = errors.New("price check already in progress for this chat")
	ErrProductLimit    = errors.New("per-chat product limit reached")
)

// Tracker owns the per-chat product registries. Every operation is a full
// read-modify-write of the chat's UserRecord: the record is loaded, mutated in
// memory, and persisted as a whole, so a persistence failure never leaves a
// partial write behind.
type Tracker struct {
	store    UserStore
	resolver ProductResolver
	notifier Notifier
	deriver  JobDeriver

	maxProducts int
	limits      *opLimiter

	// One mutex per chat guards check operations; a concurrent check for the
	// same chat is rejected instead of racing on the persisted registry.
	checkMu sync.Mutex
	checks  map[int64]*sync.Mutex
}

func New(store UserStore, resolver ProductResolver, notifier Notifier, maxProducts int, cooldown time.Duration) *Tracker {
	if maxProducts <= 0 {
		maxProducts = 50
	}
	return &Tracker{
		store:       store,
		resolver:    resolver,
		notifier:    notifier,
		maxProducts: maxProducts,
		limits:      newOpLimiter(cooldown),
		checks:      make(map[int64]*sync.Mutex),
	}
}

// SetJobDeriver wires the scheduler in after construction. The tracker and
// scheduler reference each other, so one side has to be bound late.
func (t *Tracker) SetJobDeriver(d JobDeriver) {
	t.deriver = d
}

// AddProduct validates the article and the per-chat cap, resolves the product
// and inserts it with a single-entry history. Duplicates are a notified no-op.
func (t *Tracker) AddProduct(ctx context.Context, chatID int64, article string) error {
	if !t.limits.allow(chatID, "add") {
		t.notify(chatID, "⏳ Слишком часто. Подождите немного и повторите.")
		return ErrThrottled
	}
	if err := models.ValidateArticle(article); err != nil {
		t.notify(chatID, "ℹ️ Артикул должен состоять из 7–9 цифр.")
		return err
	}

	user, err := t.store.LoadUser(ctx, chatID)
	if err != nil {
		slog.Error("Failed to load user", "chat_id", chatID, "error", err)
		t.notify(chatID, "❌ Временная ошибка, попробуйте позже.")
		return err
	}
	if user == nil {
		user = models.NewUserRecord(chatID)
	}

	if user.Has(article) {
		t.notify(chatID, fmt.Sprintf("ℹ️ Товар %s уже отслеживается!", article))
		return nil
	}
	if len(user.Products) >= t.maxProducts {
		t.notify(chatID, fmt.Sprintf("ℹ️ Достигнут лимит: не более %d товаров на чат.", t.maxProducts))
		return ErrProductLimit
	}

	resolved, err := t.resolver.Resolve(ctx, article)
	if err != nil {
		slog.Warn("Failed to resolve product for add", "chat_id", chatID, "article", article, "error", err)
		t.notify(chatID, addFailedMessage(article, err))
		return err
	}

	now := time.Now()
	user.Insert(article, &models.TrackedProduct{
		Name:         resolved.Name,
		Brand:        resolved.Brand,
		CurrentPrice: resolved.Price,
		Quantity:     resolved.Quantity,
		Rating:       resolved.Rating,
		ImageURL:     resolved.ImageURL,
		AddedDate:    now,
		History: []models.HistoryEntry{
			{Date: now, Price: resolved.Price, Quantity: resolved.Quantity},
		},
	})

	if err := t.store.SaveUser(ctx, user); err != nil {
		slog.Error("Failed to save user after add", "chat_id", chatID, "article", article, "error", err)
		t.notify(chatID, "❌ Не удалось сохранить товар, попробуйте позже.")
		return err
	}

	slog.Info("Product added", "chat_id", chatID, "article", article, "price", resolved.Price)
	t.notifyPhoto(chatID, resolved.ImageURL, addedCaption(article, resolved))
	t.kickRederive(ctx)
	return nil
}

// RemoveProduct deletes the article from the registry. When the registry
// empties the whole UserRecord is deleted and the job set re-derived.
func (t *Tracker) RemoveProduct(ctx context.Context, chatID int64, article string) error {
	if !t.limits.allow(chatID, "remove") {
		t.notify(chatID, "⏳ Слишком часто. Подождите немного и повторите.")
		return ErrThrottled
	}

	user, err := t.store.LoadUser(ctx, chatID)
	if err != nil {
		slog.Error("Failed to load user", "chat_id", chatID, "error", err)
		t.notify(chatID, "❌ Временная ошибка, попробуйте позже.")
		return err
	}
	if user == nil || !user.Has(article) {
		t.notify(chatID, fmt.Sprintf("ℹ️ Товар %s не найден в списке отслеживаемых.", article))
		return nil
	}

	name := user.Products[article].Name
	user.Remove(article)

	if user.Empty() {
		err = t.store.DeleteUser(ctx, chatID)
	} else {
		err = t.store.SaveUser(ctx, user)
	}
	if err != nil {
		slog.Error("Failed to persist removal", "chat_id", chatID, "article", article, "error", err)
		t.notify(chatID, "❌ Не удалось удалить товар, попробуйте позже.")
		return err
	}

	slog.Info("Product removed", "chat_id", chatID, "article", article)
	t.notify(chatID, fmt.Sprintf("🗑 Товар удалён: %s (арт. %s)", name, article))
	t.kickRederive(ctx)
	return nil
}

// ProductPage is one page of a chat's tracked products: exactly one product
// plus pagination metadata. A nil page means the registry is empty.
type ProductPage struct {
	Article    string
	Product    *models.TrackedProduct
	Page       int
	TotalPages int
}

// Caption renders the page's product card text.
func (p *ProductPage) Caption() string {
	return listCaption(p.Article, p.Product)
}

// ListProducts returns the requested page of the chat's products in stable
// insertion order. Out-of-range pages are clamped.
func (t *Tracker) ListProducts(ctx context.Context, chatID int64, page int) (*ProductPage, error) {
	user, err := t.store.LoadUser(ctx, chatID)
	if err != nil {
		slog.Error("Failed to load user", "chat_id", chatID, "error", err)
		return nil, err
	}
	if user == nil || user.Empty() {
		return nil, nil
	}

	articles := user.Articles()
	total := len(articles)
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}

	article := articles[page-1]
	return &ProductPage{
		Article:    article,
		Product:    user.Products[article],
		Page:       page,
		TotalPages: total,
	}, nil
}

// ProductSummary identifies one tracked product for menu rendering.
type ProductSummary struct {
	Article string
	Name    string
}

// Products returns the chat's tracked products in insertion order.
func (t *Tracker) Products(ctx context.Context, chatID int64) ([]ProductSummary, error) {
	user, err := t.store.LoadUser(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	out := make([]ProductSummary, 0, len(user.Products))
	for _, article := range user.Articles() {
		out = append(out, ProductSummary{Article: article, Name: user.Products[article].Name})
	}
	return out, nil
}

type notice struct {
	imageURL string
	caption  string
}

// CheckPrices re-resolves every tracked product for the chat and diffs price
// and quantity against stored state. Scheduled runs pass unconditional=true
// and also report unchanged products; manual runs stay quiet about them.
// Returns the number of updated products.
func (t *Tracker) CheckPrices(ctx context.Context, chatID int64, unconditional bool) (int, error) {
	lock := t.chatCheckLock(chatID)
	if !lock.TryLock() {
		t.notify(chatID, "⏳ Проверка цен уже выполняется.")
		return 0, ErrCheckInProgress
	}
	defer lock.Unlock()

	if !t.limits.allow(chatID, "check") {
		t.notify(chatID, "⏳ Слишком часто. Подождите немного и повторите.")
		return 0, ErrThrottled
	}

	user, err := t.store.LoadUser(ctx, chatID)
	if err != nil {
		slog.Error("Failed to load user", "chat_id", chatID, "error", err)
		t.notify(chatID, "❌ Временная ошибка, попробуйте позже.")
		return 0, err
	}
	if user == nil || user.Empty() {
		t.notify(chatID, "ℹ️ Нет товаров для проверки.")
		return 0, nil
	}

	if !unconditional {
		t.notify(chatID, "🔄 Начинаю проверку цен...")
	}

	var (
		notices []notice
		updated int
		dirty   bool
	)

	for _, article := range user.Articles() {
		product := user.Products[article]

		resolved, err := t.resolver.Resolve(ctx, article)
		switch {
		case errors.Is(err, wb.ErrProductRemoved):
			// Terminal: the seller pulled the product. Evict instead of retrying.
			user.Remove(article)
			dirty = true
			notices = append(notices, notice{product.ImageURL, removedCaption(article, product.Name)})
			slog.Info("Evicting removed product", "chat_id", chatID, "article", article)
			continue
		case err != nil:
			// Per-product isolation: one failure never aborts the rest of the batch.
			slog.Warn("Price check failed for product", "chat_id", chatID, "article", article, "error", err)
			notices = append(notices, notice{product.ImageURL, checkErrorCaption(article, product.Name, err)})
			continue
		}

		oldPrice, oldQuantity := product.CurrentPrice, product.Quantity
		if resolved.Price != oldPrice || resolved.Quantity != oldQuantity {
			product.CurrentPrice = resolved.Price
			product.Quantity = resolved.Quantity
			product.Rating = resolved.Rating
			if resolved.ImageURL != "" {
				product.ImageURL = resolved.ImageURL
			}
			product.History = append(product.History, models.HistoryEntry{
				Date:     time.Now(),
				Price:    resolved.Price,
				Quantity: resolved.Quantity,
			})
			notices = append(notices, notice{product.ImageURL, changeCaption(article, product, oldPrice, oldQuantity)})
			updated++
			dirty = true
		} else if unconditional {
			notices = append(notices, notice{product.ImageURL, unchangedCaption(article, product)})
		}
	}

	// Persist before notifying so users never hear about state that was not
	// committed.
	if dirty {
		if user.Empty() {
			err = t.store.DeleteUser(ctx, chatID)
		} else {
			err = t.store.SaveUser(ctx, user)
		}
		if err != nil {
			slog.Error("Failed to persist check results", "chat_id", chatID, "error", err)
			t.notify(chatID, "❌ Не удалось сохранить результаты проверки.")
			return 0, err
		}
	}

	for _, n := range notices {
		t.notifyPhoto(chatID, n.imageURL, n.caption)
	}

	if !unconditional {
		if updated > 0 {
			t.notify(chatID, fmt.Sprintf("📊 Обновлено %d цен", updated))
		} else {
			t.notify(chatID, "ℹ️ Изменений цен не обнаружено.")
		}
	}

	if dirty && user.Empty() {
		t.kickRederive(ctx)
	}

	slog.Info("Price check finished", "chat_id", chatID, "updated", updated, "unconditional", unconditional)
	return updated, nil
}

// SetNotificationInterval stores the chat's check cadence and re-derives the
// job set so the new interval takes effect immediately.
func (t *Tracker) SetNotificationInterval(ctx context.Context, chatID int64, minutes int) error {
	user, err := t.store.LoadUser(ctx, chatID)
	if err != nil {
		slog.Error("Failed to load user", "chat_id", chatID, "error", err)
		t.notify(chatID, "❌ Временная ошибка, попробуйте позже.")
		return err
	}
	if user == nil || user.Empty() {
		t.notify(chatID, "ℹ️ Сначала добавьте товары для отслеживания.")
		return nil
	}

	user.NotificationInterval = cronSpecForMinutes(minutes)
	if err := t.store.SaveUser(ctx, user); err != nil {
		slog.Error("Failed to save interval", "chat_id", chatID, "error", err)
		t.notify(chatID, "❌ Не удалось сохранить интервал, попробуйте позже.")
		return err
	}

	slog.Info("Notification interval updated", "chat_id", chatID, "minutes", minutes)
	t.notify(chatID, fmt.Sprintf("✅ Интервал уведомлений обновлён: каждые %d мин.", minutes))
	t.kickRederive(ctx)
	return nil
}

// cronSpecForMinutes converts a minute count into a standard cron expression.
func cronSpecForMinutes(minutes int) string {
	if minutes >= 60 && minutes%60 == 0 {
		return fmt.Sprintf("0 */%d * * *", minutes/60)
	}
	return fmt.Sprintf("*/%d * * * *", minutes)
}

func (t *Tracker) chatCheckLock(chatID int64) *sync.Mutex {
	t.checkMu.Lock()
	defer t.checkMu.Unlock()
	lock, ok := t.checks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		t.checks[chatID] = lock
	}
	return lock
}

func (t *Tracker) kickRederive(ctx context.Context) {
	if t.deriver == nil {
		return
	}
	if err := t.deriver.Rederive(ctx); err != nil {
		slog.Error("Job re-derivation failed", "error", err)
	}
}

// notify is best-effort: delivery failures are logged, never propagated.
func (t *Tracker) notify(chatID int64, text string) {
	if err := t.notifier.SendText(chatID, text); err != nil {
		slog.Warn("Failed to send notification", "chat_id", chatID, "error", err)
	}
}

func (t *Tracker) notifyPhoto(chatID int64, imageURL, caption string) {
	if err := t.notifier.SendPhoto(chatID, imageURL, caption); err != nil {
		slog.Warn("Failed to send notification", "chat_id", chatID, "error", err)
	}
}
