package handlers

import (
	"context"
	"fmt"
	"log"
	"strings"

	"multipost-bot/internal/channels"
	"multipost-bot/internal/database/models"
	"multipost-bot/internal/locales"
	"multipost-bot/internal/subscription"
	telegoapi "multipost-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// HandleStart handles the /start command. It registers the command menu with
// Telegram, records the user, and sends the welcome message.
func (h *MessageHandler) HandleStart(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if err := h.setupCommands(ctx, bot); err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, fmt.Errorf("failed to set up commands: %w", err))
	}

	localizer := h.getLocalizer(ctx, message.From)

	h.RecordUserActivity(ctx, message.From, ActionCommandStart, map[string]interface{}{
		"chat_id": message.Chat.ID,
	})

	return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgStart", nil, nil))
}

// HandleHelp handles the /help command, listing the available commands with
// localized descriptions.
func (h *MessageHandler) HandleHelp(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(ctx, message.From)

	var helpText strings.Builder
	helpText.WriteString(locales.GetMessage(localizer, "MsgHelpHeader", nil, nil) + "\n")
	for _, cmd := range h.commands {
		localizedDesc := locales.GetMessage(localizer, cmd.Description, nil, nil)
		helpText.WriteString(fmt.Sprintf("/%s - %s\n", cmd.Command, localizedDesc))
	}
	helpText.WriteString(locales.GetMessage(localizer, "MsgHelpFooter", nil, nil))

	h.RecordUserActivity(ctx, message.From, ActionCommandHelp, map[string]interface{}{
		"chat_id": message.Chat.ID,
	})

	return h.sendSuccess(ctx, bot, message.Chat.ID, helpText.String())
}

// HandleBroadcast handles the /broadcast command by starting a new session.
// The broadcast manager takes over user feedback from here.
func (h *MessageHandler) HandleBroadcast(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	h.RecordUserActivity(ctx, message.From, ActionCommandBroadcast, map[string]interface{}{
		"chat_id": message.Chat.ID,
	})
	return h.broadcastMgr.StartBroadcast(ctx, message.Chat.ID, message.From)
}

// HandleCancel handles the /cancel command, aborting the active broadcast
// session in this chat if there is one.
func (h *MessageHandler) HandleCancel(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(ctx, message.From)

	h.RecordUserActivity(ctx, message.From, ActionCommandCancel, map[string]interface{}{
		"chat_id": message.Chat.ID,
	})

	if h.broadcastMgr.Cancel(ctx, message.Chat.ID) {
		return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgBroadcastCancelled", nil, nil))
	}
	return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgCancelNoActive", nil, nil))
}

// HandleChannels handles the /channels command. Posting permissions are
// re-checked before the list is rendered so stale flags self-correct.
func (h *MessageHandler) HandleChannels(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(ctx, message.From)

	list, err := h.channelSvc.RefreshPermissions(ctx, message.From.ID)
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, fmt.Errorf("failed to refresh channels: %w", err))
	}

	h.RecordUserActivity(ctx, message.From, ActionCommandChannels, map[string]interface{}{
		"chat_id":       message.Chat.ID,
		"channel_count": len(list),
	})

	return h.sendSuccess(ctx, bot, message.Chat.ID, channels.FormatList(localizer, list))
}

// HandleAddChannel handles the /addchannel command. Registration itself is
// driven by my_chat_member updates; this only explains the procedure.
func (h *MessageHandler) HandleAddChannel(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(ctx, message.From)

	h.RecordUserActivity(ctx, message.From, ActionCommandAddChannel, map[string]interface{}{
		"chat_id": message.Chat.ID,
	})

	return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgAddChannelInstructions", nil, nil))
}

// HandleProfile handles the /profile command, showing the plan and usage.
func (h *MessageHandler) HandleProfile(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(ctx, message.From)

	user, err := h.userRepo.GetUser(ctx, message.From.ID)
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, fmt.Errorf("failed to load profile: %w", err))
	}
	if user == nil {
		user = &models.User{UserID: message.From.ID, Plan: models.PlanFree}
	}

	name := message.From.FirstName
	if message.From.Username != "" {
		name = "@" + message.From.Username
	}

	h.RecordUserActivity(ctx, message.From, ActionCommandProfile, map[string]interface{}{
		"chat_id": message.Chat.ID,
	})

	profileText := locales.GetMessage(localizer, "MsgProfile", map[string]interface{}{
		"Name":      name,
		"Plan":      user.Plan,
		"Total":     user.MessageCount,
		"FreeUsed":  user.FreeMessagesUsed,
		"FreeLimit": subscription.FreeMessageLimit,
	}, nil)
	return h.sendSuccess(ctx, bot, message.Chat.ID, profileText)
}

// HandleLanguage handles the /language command with an inline picker.
func (h *MessageHandler) HandleLanguage(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(ctx, message.From)

	h.RecordUserActivity(ctx, message.From, ActionCommandLanguage, map[string]interface{}{
		"chat_id": message.Chat.ID,
	})

	keyboard := &telego.InlineKeyboardMarkup{
		InlineKeyboard: [][]telego.InlineKeyboardButton{
			tu.InlineKeyboardRow(
				tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnLangEnglish", nil, nil)).WithCallbackData(langCallbackPrefix+"en"),
				tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnLangRussian", nil, nil)).WithCallbackData(langCallbackPrefix+"ru"),
			),
		},
	}

	prompt := locales.GetMessage(localizer, "MsgLanguagePrompt", nil, nil)
	_, err := bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), prompt).WithReplyMarkup(keyboard))
	if err != nil {
		return fmt.Errorf("failed to send language prompt: %w", err)
	}
	return nil
}

// setupCommands registers the bot's command menu with Telegram, using the
// default language for the descriptions.
func (h *MessageHandler) setupCommands(ctx context.Context, bot telegoapi.BotAPI) error {
	if len(h.commands) == 0 {
		return nil
	}

	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())

	commands := make([]telego.BotCommand, 0, len(h.commands))
	for _, cmd := range h.commands {
		commands = append(commands, telego.BotCommand{
			Command:     cmd.Command,
			Description: locales.GetMessage(localizer, cmd.Description, nil, nil),
		})
	}

	if err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: commands}); err != nil {
		return fmt.Errorf("failed to set bot commands: %w", err)
	}
	log.Printf("Successfully set %d bot commands.", len(commands))
	return nil
}
