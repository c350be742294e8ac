package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Main menu reply-keyboard button labels. The message handler matches on
// these exact strings.
const (
	ButtonAdd       = "🛒 Добавить товар"
	ButtonList      = "🛍️ Список товаров"
	ButtonRemove    = "❌ Удалить товар"
	ButtonCheck     = "🔍 Проверить цены"
	ButtonIntervals = "⏰ Настроить уведомления"
)

func MainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(ButtonAdd),
			tgbotapi.NewKeyboardButton(ButtonList),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(ButtonRemove),
			tgbotapi.NewKeyboardButton(ButtonCheck),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(ButtonIntervals),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func IntervalKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("5 минут", "interval_5"),
			tgbotapi.NewInlineKeyboardButtonData("15 минут", "interval_15"),
			tgbotapi.NewInlineKeyboardButtonData("30 минут", "interval_30"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("1 час", "interval_60"),
			tgbotapi.NewInlineKeyboardButtonData("2 часа", "interval_120"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Вернуться в главное меню", "main_menu"),
		),
	)
}

// PaginationKeyboard builds prev/next navigation for the product list.
func PaginationKeyboard(page, totalPages int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	if totalPages > 1 {
		var nav []tgbotapi.InlineKeyboardButton
		if page > 1 {
			nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Предыдущая", fmt.Sprintf("page_prev_%d", page-1)))
		}
		if page < totalPages {
			nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Следующая ➡️", fmt.Sprintf("page_next_%d", page+1)))
		}
		rows = append(rows, nav)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Вернуться в главное меню", "main_menu"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ProductButton is one entry in the removal picker.
type ProductButton struct {
	Article string
	Name    string
}

func RemoveKeyboard(products []ProductButton) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(products))
	for _, p := range products {
		label := fmt.Sprintf("%s (арт. %s)", p.Name, p.Article)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "remove_"+p.Article),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
