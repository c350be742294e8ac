package telegram

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client wraps the Telegram Bot API as a notification sink plus liveness
// probe. All messages use HTML parse mode with link previews disabled.
type Client struct {
	bot *tgbotapi.BotAPI
}

func New(token string) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram authorization: %w", err)
	}
	slog.Info("Authorized on Telegram", "username", bot.Self.UserName)
	return &Client{bot: bot}, nil
}

// Updates starts long polling and returns the inbound update channel.
func (c *Client) Updates() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	return c.bot.GetUpdatesChan(u)
}

// StopPolling stops the long-poll loop and closes the update channel.
func (c *Client) StopPolling() {
	c.bot.StopReceivingUpdates()
}

func (c *Client) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := c.bot.Send(msg)
	return err
}

// SendKeyboard sends text with an attached reply or inline keyboard.
func (c *Client) SendKeyboard(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := c.bot.Send(msg)
	return err
}

// SendPhoto sends a photo with an HTML caption. When the image URL is empty
// the caption degrades to a plain message with an unavailability note.
func (c *Client) SendPhoto(chatID int64, imageURL, caption string) error {
	if imageURL == "" {
		return c.SendText(chatID, caption+"\n⚠️ Изображение недоступно")
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(imageURL))
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	_, err := c.bot.Send(photo)
	return err
}

// ChatReachable probes whether the bot can still talk to the chat. A failed
// lookup means the user blocked the bot or the chat is gone.
func (c *Client) ChatReachable(chatID int64) bool {
	_, err := c.bot.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	return err == nil
}

// AnswerCallback acknowledges a callback query so the client stops spinning.
func (c *Client) AnswerCallback(callbackID string) {
	if _, err := c.bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		slog.Warn("Failed to answer callback query", "error", err)
	}
}

// DeleteMessage removes a message, typically the keyboard the user just used.
func (c *Client) DeleteMessage(chatID int64, messageID int) {
	if _, err := c.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		slog.Warn("Failed to delete message", "chat_id", chatID, "error", err)
	}
}
