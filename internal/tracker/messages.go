package tracker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/huligan-sport/wb-price-bot/internal/models"
	"github.com/huligan-sport/wb-price-bot/internal/wb"
)

func productLink(article string) string {
	return fmt.Sprintf(`<a href="https://www.wildberries.ru/catalog/%s/detail.aspx">Открыть на WB</a>`, article)
}

func priceLine(price float64, warnings []string) string {
	for _, w := range warnings {
		if w == "Цена недоступна" {
			return w
		}
	}
	return fmt.Sprintf("%.2f руб.", price)
}

func addedCaption(article string, p *models.ResolvedProduct) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ <b>Товар добавлен:</b>\n\n")
	fmt.Fprintf(&b, "🏷️ Название: %s\n\n", p.Name)
	fmt.Fprintf(&b, "🏭 Бренд: %s\n\n", p.Brand)
	fmt.Fprintf(&b, "⭐ Рейтинг: %.1f\n\n", p.Rating)
	fmt.Fprintf(&b, "💰 Текущая цена: %s\n\n", priceLine(p.Price, p.Warnings))
	fmt.Fprintf(&b, "📦 В наличии: %d шт.\n\n", p.Quantity)
	for _, w := range p.Warnings {
		if w != "Цена недоступна" {
			fmt.Fprintf(&b, "⚠️ %s\n\n", w)
		}
	}
	fmt.Fprintf(&b, "🔗 %s", productLink(article))
	return b.String()
}

func listCaption(article string, p *models.TrackedProduct) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔹 <b>%s</b>\n\n", p.Name)
	fmt.Fprintf(&b, "Артикул: <code>%s</code>\n\n", article)
	fmt.Fprintf(&b, "Цена: %.2f руб.\n\n", p.CurrentPrice)
	fmt.Fprintf(&b, "В наличии: %d шт.\n\n", p.Quantity)
	fmt.Fprintf(&b, "Добавлен: %s\n\n", p.AddedDate.Format("2006-01-02 15:04:05"))
	b.WriteString(productLink(article))
	return b.String()
}

func changeCaption(article string, p *models.TrackedProduct, oldPrice float64, oldQuantity int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 <b>%s</b>\n\n", p.Name)
	fmt.Fprintf(&b, "Артикул: <code>%s</code>\n\n", article)
	if p.CurrentPrice != oldPrice {
		fmt.Fprintf(&b, "Старая цена: %.2f руб.\n\n", oldPrice)
		fmt.Fprintf(&b, "Новая цена: %.2f руб.\n\n", p.CurrentPrice)
		fmt.Fprintf(&b, "Разница: %.2f руб.\n\n", p.CurrentPrice-oldPrice)
	}
	if p.Quantity != oldQuantity {
		fmt.Fprintf(&b, "Наличие: %d → %d шт.\n\n", oldQuantity, p.Quantity)
	}
	b.WriteString(productLink(article))
	return b.String()
}

func unchangedCaption(article string, p *models.TrackedProduct) string {
	return fmt.Sprintf("🔹 <b>%s</b>\n\nАртикул: <code>%s</code>\n\nЦена: %.2f руб. (без изменений)\n\n%s",
		p.Name, article, p.CurrentPrice, productLink(article))
}

func removedCaption(article, name string) string {
	return fmt.Sprintf("🗑 <b>%s</b>\n\nАртикул: <code>%s</code>\n\nТовар снят с продажи и удалён из отслеживания.",
		name, article)
}

func checkErrorCaption(article, name string, err error) string {
	return fmt.Sprintf("❌ <b>%s</b>\n\nАртикул: <code>%s</code>\n\nОшибка: %s\n\n%s",
		name, article, failureReason(err), productLink(article))
}

func addFailedMessage(article string, err error) string {
	return fmt.Sprintf(`❌ Не удалось добавить товар с артикулом %s.

Причина: %s

Проверьте артикул: <a href="https://www.wildberries.ru/catalog/%s/detail.aspx">ссылка</a>

Попробуйте позже или используйте VPN.`, article, failureReason(err), article)
}

// failureReason maps the resolution failure taxonomy to user-facing text.
func failureReason(err error) string {
	switch {
	case errors.Is(err, wb.ErrProductRemoved):
		return "товар снят с продажи"
	case errors.Is(err, wb.ErrOutOfStock):
		return "товар отсутствует на складе"
	case errors.Is(err, wb.ErrIncompleteMetadata):
		return "данные о товаре неполные"
	case errors.Is(err, wb.ErrMetadataUnavailable):
		return "не удалось получить данные, попробуйте позже"
	default:
		return "временная ошибка сети, попробуйте позже"
	}
}
