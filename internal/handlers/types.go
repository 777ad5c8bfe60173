package handlers

import (
	"context"
	"log"

	"multipost-bot/internal/broadcast"
	"multipost-bot/internal/channels"
	"multipost-bot/internal/database"
	telegoapi "multipost-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
)

// Action types for the user action log.
const (
	ActionCommandStart      = "command_start"
	ActionCommandHelp       = "command_help"
	ActionCommandBroadcast  = "command_broadcast"
	ActionCommandCancel     = "command_cancel"
	ActionCommandChannels   = "command_channels"
	ActionCommandAddChannel = "command_addchannel"
	ActionCommandProfile    = "command_profile"
	ActionCommandLanguage   = "command_language"
	ActionLanguageChanged   = "language_changed"
)

// Command maps a command string to its description key and handler function.
type Command struct {
	Command     string
	Description string // Localization key, resolved on demand.
	Handler     func(context.Context, telegoapi.BotAPI, telego.Message) error
}

// MessageHandler routes incoming commands and callbacks to the broadcast
// manager, the channel registry, and the user store.
type MessageHandler struct {
	commands []Command

	broadcastMgr *broadcast.Manager
	channelSvc   *channels.Service
	userRepo     database.UserRepository
	actionLogger database.UserActionLogger
}

// NewMessageHandler creates the handler and registers the command set.
func NewMessageHandler(
	broadcastMgr *broadcast.Manager,
	channelSvc *channels.Service,
	userRepo database.UserRepository,
	actionLogger database.UserActionLogger,
) *MessageHandler {
	if broadcastMgr == nil || channelSvc == nil {
		log.Fatal("MessageHandler: broadcast manager and channel service are required")
	}
	h := &MessageHandler{
		broadcastMgr: broadcastMgr,
		channelSvc:   channelSvc,
		userRepo:     userRepo,
		actionLogger: actionLogger,
	}
	h.commands = []Command{
		{Command: "start", Description: "CmdStartDesc", Handler: h.HandleStart},
		{Command: "help", Description: "CmdHelpDesc", Handler: h.HandleHelp},
		{Command: "broadcast", Description: "CmdBroadcastDesc", Handler: h.HandleBroadcast},
		{Command: "cancel", Description: "CmdCancelDesc", Handler: h.HandleCancel},
		{Command: "channels", Description: "CmdChannelsDesc", Handler: h.HandleChannels},
		{Command: "addchannel", Description: "CmdAddChannelDesc", Handler: h.HandleAddChannel},
		{Command: "profile", Description: "CmdProfileDesc", Handler: h.HandleProfile},
		{Command: "language", Description: "CmdLanguageDesc", Handler: h.HandleLanguage},
	}
	return h
}

// GetCommandHandler returns the handler registered for a command string, or
// nil when the command is unknown.
func (h *MessageHandler) GetCommandHandler(command string) func(context.Context, telegoapi.BotAPI, telego.Message) error {
	for _, cmd := range h.commands {
		if cmd.Command == command {
			return cmd.Handler
		}
	}
	return nil
}

// BroadcastManager provides access to the broadcast manager dependency.
func (h *MessageHandler) BroadcastManager() *broadcast.Manager {
	return h.broadcastMgr
}
