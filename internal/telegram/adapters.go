package telegram

import (
	"context"
	"fmt"

	"github.com/bilgisen/newsbot/internal/moderation"
)

// Moderator is the admin chat where candidates wait for a decision.
type Moderator struct {
	client *Client
	chatID int64
}

func NewModerator(client *Client, chatID int64) *Moderator {
	return &Moderator{client: client, chatID: chatID}
}

func keyboard(buttons []moderation.Button) *InlineKeyboardMarkup {
	row := make([]InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		row = append(row, InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
	}
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{row}}
}

// noButtons clears the inline keyboard of an edited message.
func noButtons() *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{}}
}

func editError(err error) error {
	if IsNotModified(err) {
		return fmt.Errorf("%w: %w", moderation.ErrNotModified, err)
	}
	return err
}

func (m *Moderator) SendText(ctx context.Context, text string, buttons []moderation.Button) (moderation.MessageRef, error) {
	msg, err := m.client.SendMessage(ctx, SendMessageParams{
		ChatID:             ChatID(m.chatID),
		Text:               text,
		ParseMode:          ParseModeHTML,
		LinkPreviewOptions: &LinkPreviewOptions{IsDisabled: true},
		ReplyMarkup:        keyboard(buttons),
	})
	if err != nil {
		return moderation.MessageRef{}, err
	}
	return moderation.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID}, nil
}

func (m *Moderator) SendPhoto(ctx context.Context, photo []byte, caption string, buttons []moderation.Button) (moderation.MessageRef, error) {
	msg, err := m.client.SendPhoto(ctx, SendPhotoParams{
		ChatID:      ChatID(m.chatID),
		Photo:       photo,
		Caption:     caption,
		ParseMode:   ParseModeHTML,
		ReplyMarkup: keyboard(buttons),
	})
	if err != nil {
		return moderation.MessageRef{}, err
	}
	return moderation.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID}, nil
}

func (m *Moderator) EditText(ctx context.Context, ref moderation.MessageRef, text string) error {
	return editError(m.client.EditMessageText(ctx, EditMessageTextParams{
		ChatID:             ChatID(ref.ChatID),
		MessageID:          ref.MessageID,
		Text:               text,
		LinkPreviewOptions: &LinkPreviewOptions{IsDisabled: true},
		ReplyMarkup:        noButtons(),
	}))
}

func (m *Moderator) EditCaption(ctx context.Context, ref moderation.MessageRef, caption string) error {
	return editError(m.client.EditMessageCaption(ctx, EditMessageCaptionParams{
		ChatID:      ChatID(ref.ChatID),
		MessageID:   ref.MessageID,
		Caption:     caption,
		ReplyMarkup: noButtons(),
	}))
}

func (m *Moderator) RemoveButtons(ctx context.Context, ref moderation.MessageRef) error {
	return editError(m.client.EditMessageReplyMarkup(ctx, EditMessageReplyMarkupParams{
		ChatID:      ChatID(ref.ChatID),
		MessageID:   ref.MessageID,
		ReplyMarkup: noButtons(),
	}))
}

func (m *Moderator) Answer(ctx context.Context, callbackID, text string, alert bool) error {
	return m.client.AnswerCallbackQuery(ctx, AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
}

// Channel is the public broadcast channel. The id may be numeric or "@name".
type Channel struct {
	client *Client
	chatID string
}

func NewChannel(client *Client, chatID string) *Channel {
	return &Channel{client: client, chatID: chatID}
}

// PublishText posts without a link preview; the source url ends every post.
func (c *Channel) PublishText(ctx context.Context, text string) error {
	_, err := c.client.SendMessage(ctx, SendMessageParams{
		ChatID:             c.chatID,
		Text:               text,
		ParseMode:          ParseModeHTML,
		LinkPreviewOptions: &LinkPreviewOptions{IsDisabled: true},
	})
	return err
}

func (c *Channel) PublishPhoto(ctx context.Context, photo []byte, caption string) error {
	_, err := c.client.SendPhoto(ctx, SendPhotoParams{
		ChatID:    c.chatID,
		Photo:     photo,
		Caption:   caption,
		ParseMode: ParseModeHTML,
	})
	return err
}
