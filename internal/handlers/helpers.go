package handlers

import (
	"context"
	"log"
	"strings"

	"multipost-bot/internal/locales"
	telegoapi "multipost-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// langCallbackPrefix marks callback data from the /language picker.
const langCallbackPrefix = "lang:"

// sendSuccess sends a message to the user. Send failures are logged only.
func (h *MessageHandler) sendSuccess(ctx context.Context, bot telegoapi.BotAPI, chatID int64, text string) error {
	_, err := bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	if err != nil {
		log.Printf("Error sending message to chat %d: %v", chatID, err)
	}
	return nil
}

// sendError notifies the user with a generic localized error message and
// returns the original error for the update loop to report.
func (h *MessageHandler) sendError(ctx context.Context, bot telegoapi.BotAPI, chatID int64, originalErr error) error {
	log.Printf("Error for user in chat %d: %v", chatID, originalErr)

	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
	errMsg := locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil)

	if _, sendErr := bot.SendMessage(ctx, tu.Message(tu.ID(chatID), errMsg)); sendErr != nil {
		log.Printf("Error sending generic error message to chat %d: %v", chatID, sendErr)
	}

	return originalErr
}

// getLocalizer picks the stored language preference when one exists, then the
// Telegram client language, then the configured default.
func (h *MessageHandler) getLocalizer(ctx context.Context, user *telego.User) *i18n.Localizer {
	lang := locales.GetDefaultLanguageTag().String()
	if user != nil {
		if h.userRepo != nil {
			if stored := h.userRepo.UserLanguage(ctx, user.ID); stored != "" {
				return locales.NewLocalizer(stored)
			}
		}
		if user.LanguageCode != "" {
			lang = user.LanguageCode
		}
	}
	return locales.NewLocalizer(lang)
}

// RecordUserActivity combines the user upsert and the action log write.
// Either failing is logged and never blocks the command.
func (h *MessageHandler) RecordUserActivity(ctx context.Context, user *telego.User, action string, details map[string]interface{}) {
	if user == nil {
		log.Printf("Attempted to record activity for nil user, action: %s", action)
		return
	}

	if h.userRepo != nil {
		if err := h.userRepo.UpsertUser(ctx, user.ID, user.Username, user.FirstName, user.LastName); err != nil {
			log.Printf("Error upserting user %d (%s) during action %s: %v", user.ID, user.Username, action, err)
		}
	}

	if h.actionLogger != nil {
		if err := h.actionLogger.LogUserAction(user.ID, action, details); err != nil {
			log.Printf("Error logging action %s for user %d (%s): %v", action, user.ID, user.Username, err)
		}
	}
}

// HandleCallbackQuery processes the language picker callbacks. Returns false
// for callback data that does not belong to this handler.
func (h *MessageHandler) HandleCallbackQuery(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery) (bool, error) {
	if !strings.HasPrefix(query.Data, langCallbackPrefix) {
		return false, nil
	}

	lang := strings.TrimPrefix(query.Data, langCallbackPrefix)
	if err := h.userRepo.SetLanguage(ctx, query.From.ID, lang); err != nil {
		log.Printf("Error storing language %q for user %d: %v", lang, query.From.ID, err)
		ackErr := bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{CallbackQueryID: query.ID})
		if ackErr != nil {
			log.Printf("Error answering callback query %s: %v", query.ID, ackErr)
		}
		return true, err
	}

	localizer := locales.NewLocalizer(lang)
	confirmation := locales.GetMessage(localizer, "MsgLanguageUpdated", nil, nil)

	err := bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
		Text:            confirmation,
	})
	if err != nil {
		log.Printf("Error answering callback query %s: %v", query.ID, err)
	}

	if msg, ok := query.Message.(*telego.Message); ok && msg != nil {
		_, editErr := bot.EditMessageText(ctx, &telego.EditMessageTextParams{
			ChatID:    tu.ID(msg.Chat.ID),
			MessageID: msg.MessageID,
			Text:      confirmation,
		})
		if editErr != nil {
			log.Printf("Error editing language prompt in chat %d: %v", msg.Chat.ID, editErr)
		}
	}

	h.RecordUserActivity(ctx, &query.From, ActionLanguageChanged, map[string]interface{}{"language": lang})
	return true, nil
}
