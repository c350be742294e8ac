package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/huligan-sport/wb-price-bot/internal/telegram"
	"github.com/huligan-sport/wb-price-bot/internal/tracker"
)

// Bot routes inbound Telegram updates to tracker operations. Each update is
// handled in its own goroutine with panic recovery: one chat's failure never
// takes down the update loop.
type Bot struct {
	tg      *telegram.Client
	tracker *tracker.Tracker

	// Chats that were asked to type in an article next.
	mu              sync.Mutex
	awaitingArticle map[int64]bool
}

func New(tg *telegram.Client, tr *tracker.Tracker) *Bot {
	return &Bot{
		tg:              tg,
		tracker:         tr,
		awaitingArticle: make(map[int64]bool),
	}
}

// Run consumes the update channel until the context is cancelled or polling
// stops.
func (b *Bot) Run(ctx context.Context) error {
	updates := b.tg.Updates()
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic while handling update", "panic", r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		b.handleCommand(ctx, chatID, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
		return
	}

	if b.takeAwaitingArticle(chatID) {
		article := strings.TrimSpace(msg.Text)
		if err := b.tracker.AddProduct(ctx, chatID, article); err != nil {
			slog.Warn("Add product failed", "chat_id", chatID, "article", article, "error", err)
		}
		b.showMainMenu(chatID)
		return
	}

	switch msg.Text {
	case telegram.ButtonAdd:
		b.promptForArticle(chatID)
	case telegram.ButtonList:
		b.showPage(ctx, chatID, 1)
	case telegram.ButtonRemove:
		b.showRemoveMenu(ctx, chatID)
	case telegram.ButtonCheck:
		b.runManualCheck(ctx, chatID)
	case telegram.ButtonIntervals:
		b.showIntervalMenu(chatID)
	default:
		b.showMainMenu(chatID)
	}
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, command, args string) {
	slog.Info("Command received", "chat_id", chatID, "command", command)
	switch command {
	case "start":
		text := fmt.Sprintf("🛍️ <b>Бот для отслеживания цен на Wildberries</b>\n\nВаш chat_id: %d\n\nВыберите действие ниже:", chatID)
		if err := b.tg.SendText(chatID, text); err != nil {
			slog.Warn("Failed to send start message", "chat_id", chatID, "error", err)
		}
		b.showMainMenu(chatID)
	case "menu":
		b.showMainMenu(chatID)
	case "add":
		if args == "" {
			b.promptForArticle(chatID)
			return
		}
		if err := b.tracker.AddProduct(ctx, chatID, args); err != nil {
			slog.Warn("Add product failed", "chat_id", chatID, "article", args, "error", err)
		}
		b.showMainMenu(chatID)
	case "remove":
		if args == "" {
			b.showRemoveMenu(ctx, chatID)
			return
		}
		if err := b.tracker.RemoveProduct(ctx, chatID, args); err != nil {
			slog.Warn("Remove product failed", "chat_id", chatID, "article", args, "error", err)
		}
		b.showMainMenu(chatID)
	case "list":
		b.showPage(ctx, chatID, 1)
	case "check":
		b.runManualCheck(ctx, chatID)
	default:
		b.showMainMenu(chatID)
	}
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	chatID := query.Message.Chat.ID
	b.tg.AnswerCallback(query.ID)
	b.tg.DeleteMessage(chatID, query.Message.MessageID)

	action, err := telegram.DecodeAction(query.Data)
	if err != nil {
		slog.Warn("Undecodable callback", "chat_id", chatID, "data", query.Data, "error", err)
		b.showMainMenu(chatID)
		return
	}

	switch a := action.(type) {
	case telegram.MainMenu:
		b.showMainMenu(chatID)
	case telegram.AddProduct:
		b.promptForArticle(chatID)
	case telegram.RemoveMenu:
		b.showRemoveMenu(ctx, chatID)
	case telegram.ListProducts:
		b.showPage(ctx, chatID, 1)
	case telegram.OpenPage:
		b.showPage(ctx, chatID, a.Page)
	case telegram.CheckPrices:
		b.runManualCheck(ctx, chatID)
	case telegram.IntervalMenu:
		b.showIntervalMenu(chatID)
	case telegram.SetInterval:
		if err := b.tracker.SetNotificationInterval(ctx, chatID, a.Minutes); err != nil {
			slog.Warn("Failed to set interval", "chat_id", chatID, "error", err)
		}
		b.showMainMenu(chatID)
	case telegram.RemoveProduct:
		if err := b.tracker.RemoveProduct(ctx, chatID, a.Article); err != nil {
			slog.Warn("Remove product failed", "chat_id", chatID, "article", a.Article, "error", err)
		}
		b.showMainMenu(chatID)
	}
}

func (b *Bot) runManualCheck(ctx context.Context, chatID int64) {
	if _, err := b.tracker.CheckPrices(ctx, chatID, false); err != nil {
		slog.Warn("Manual price check failed", "chat_id", chatID, "error", err)
	}
	b.showMainMenu(chatID)
}

func (b *Bot) showPage(ctx context.Context, chatID int64, page int) {
	p, err := b.tracker.ListProducts(ctx, chatID, page)
	if err != nil {
		b.sendOrLog(chatID, "❌ Временная ошибка, попробуйте позже.")
		return
	}
	if p == nil {
		b.sendOrLog(chatID, "📭 Список отслеживаемых товаров пуст.")
		b.showMainMenu(chatID)
		return
	}

	if err := b.tg.SendPhoto(chatID, p.Product.ImageURL, p.Caption()); err != nil {
		slog.Warn("Failed to send product page", "chat_id", chatID, "error", err)
	}
	pageLabel := fmt.Sprintf("📄 Страница %d из %d", p.Page, p.TotalPages)
	if err := b.tg.SendKeyboard(chatID, pageLabel, telegram.PaginationKeyboard(p.Page, p.TotalPages)); err != nil {
		slog.Warn("Failed to send pagination", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) showRemoveMenu(ctx context.Context, chatID int64) {
	products, err := b.tracker.Products(ctx, chatID)
	if err != nil {
		b.sendOrLog(chatID, "❌ Временная ошибка, попробуйте позже.")
		return
	}
	if len(products) == 0 {
		b.sendOrLog(chatID, "📭 Список отслеживаемых товаров пуст.")
		b.showMainMenu(chatID)
		return
	}

	buttons := make([]telegram.ProductButton, len(products))
	for i, p := range products {
		buttons[i] = telegram.ProductButton{Article: p.Article, Name: p.Name}
	}
	if err := b.tg.SendKeyboard(chatID, "Выберите товар для удаления:", telegram.RemoveKeyboard(buttons)); err != nil {
		slog.Warn("Failed to send remove menu", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) showIntervalMenu(chatID int64) {
	if err := b.tg.SendKeyboard(chatID, "Выберите интервал уведомлений:", telegram.IntervalKeyboard()); err != nil {
		slog.Warn("Failed to send interval menu", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) showMainMenu(chatID int64) {
	if err := b.tg.SendKeyboard(chatID, "Выберите действие:", telegram.MainMenuKeyboard()); err != nil {
		slog.Warn("Failed to send main menu", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) promptForArticle(chatID int64) {
	b.mu.Lock()
	b.awaitingArticle[chatID] = true
	b.mu.Unlock()
	b.sendOrLog(chatID, "ℹ️ Введите артикул товара:")
}

// takeAwaitingArticle consumes the chat's pending input state, if any.
func (b *Bot) takeAwaitingArticle(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.awaitingArticle[chatID] {
		return false
	}
	delete(b.awaitingArticle, chatID)
	return true
}

func (b *Bot) sendOrLog(chatID int64, text string) {
	if err := b.tg.SendText(chatID, text); err != nil {
		slog.Warn("Failed to send message", "chat_id", chatID, "error", err)
	}
}
