package auth

import (
	"context"
	"fmt"
	"log"
	"strings"

	telegoapi "multipost-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
)

// PostChecker verifies the bot's own posting permission in a destination chat.
type PostChecker struct {
	bot   telegoapi.BotAPI
	botID int64
}

// NewPostChecker creates a new PostChecker.
// It resolves the bot's own user id once via GetMe.
func NewPostChecker(ctx context.Context, bot telegoapi.BotAPI) (*PostChecker, error) {
	if bot == nil {
		return nil, fmt.Errorf("bot instance cannot be nil")
	}
	me, err := bot.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bot identity: %w", err)
	}
	return &PostChecker{
		bot:   bot,
		botID: me.ID,
	}, nil
}

// CanPost reports whether the bot can post messages in the given chat.
// For channels only creators and administrators with the post-messages right
// qualify; in groups any member may post.
func (pc *PostChecker) CanPost(ctx context.Context, chatID int64, isChannel bool) (bool, error) {
	member, err := pc.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: telego.ChatID{ID: chatID},
		UserID: pc.botID,
	})
	if err != nil {
		// The bot not being in the chat at all simply means it cannot post.
		// API errors (network, permissions) should be returned.
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return false, nil
		}
		log.Printf("[PostCheck Chat:%d] Error checking chat member: %v", chatID, err)
		return false, fmt.Errorf("failed to get chat member info: %w", err)
	}

	switch t := member.(type) {
	case *telego.ChatMemberOwner:
		return true, nil
	case *telego.ChatMemberAdministrator:
		if isChannel {
			return t.CanPostMessages, nil
		}
		return true, nil
	case *telego.ChatMemberMember:
		return !isChannel, nil
	default:
		return false, nil
	}
}
