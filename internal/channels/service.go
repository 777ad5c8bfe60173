package channels

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"multipost-bot/internal/auth"
	"multipost-bot/internal/broadcast"
	"multipost-bot/internal/database"
	"multipost-bot/internal/database/models"
	"multipost-bot/internal/locales"

	"github.com/mymmrac/telego"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// Service manages the destination registry: channels and groups the bot was
// added to, keyed per owning user. It is the broadcast recipient directory.
type Service struct {
	repo    database.ChannelRepository
	checker *auth.PostChecker
}

// NewService creates the channel registry service.
func NewService(repo database.ChannelRepository, checker *auth.PostChecker) *Service {
	return &Service{repo: repo, checker: checker}
}

// ListEligible returns the owner's active channels where the bot can post,
// oldest first. Implements broadcast.RecipientDirectory.
func (s *Service) ListEligible(ctx context.Context, ownerID int64) ([]broadcast.Recipient, error) {
	channels, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels for owner %d: %w", ownerID, err)
	}
	recipients := make([]broadcast.Recipient, 0, len(channels))
	for _, c := range channels {
		if !c.IsActive || !c.CanPost {
			continue
		}
		recipients = append(recipients, broadcast.Recipient{
			ID:     c.ID.Hex(),
			Title:  c.Title,
			ChatID: c.ChatID,
		})
	}
	return recipients, nil
}

// List returns all of the owner's channel records, active or not.
func (s *Service) List(ctx context.Context, ownerID int64) ([]models.Channel, error) {
	channels, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels for owner %d: %w", ownerID, err)
	}
	return channels, nil
}

// HandleMyChatMember reacts to the bot's own membership changing in a chat.
// Promotion registers or refreshes the channel for the user who performed it;
// removal deactivates every record pointing at the chat.
func (s *Service) HandleMyChatMember(ctx context.Context, update telego.ChatMemberUpdated) error {
	chat := update.Chat
	if chat.Type != telego.ChatTypeChannel && chat.Type != telego.ChatTypeGroup && chat.Type != telego.ChatTypeSupergroup {
		return nil
	}
	isChannel := chat.Type == telego.ChatTypeChannel

	status := update.NewChatMember.MemberStatus()
	switch status {
	case telego.MemberStatusLeft, telego.MemberStatusBanned:
		log.Printf("[Channels Chat:%d] Bot removed (%s), deactivating.", chat.ID, status)
		if err := s.repo.Deactivate(ctx, chat.ID); err != nil {
			return fmt.Errorf("failed to deactivate chat %d: %w", chat.ID, err)
		}
		return nil

	case telego.MemberStatusCreator, telego.MemberStatusAdministrator, telego.MemberStatusMember:
		canPost := memberCanPost(update.NewChatMember, isChannel)
		channel := &models.Channel{
			OwnerID:   update.From.ID,
			ChatID:    chat.ID,
			Title:     chat.Title,
			Username:  chat.Username,
			Type:      string(chat.Type),
			IsActive:  true,
			CanPost:   canPost,
			UpdatedAt: time.Now(),
		}
		log.Printf("[Channels Chat:%d] Bot is %s (can post: %v), registering for user %d.", chat.ID, status, canPost, update.From.ID)
		if err := s.repo.Upsert(ctx, channel); err != nil {
			return fmt.Errorf("failed to upsert chat %d: %w", chat.ID, err)
		}
		return nil
	}

	return nil
}

// memberCanPost derives the posting permission from the bot's new membership.
// In channels only administrators with the post right count; in groups any
// member can send.
func memberCanPost(member telego.ChatMember, isChannel bool) bool {
	switch m := member.(type) {
	case *telego.ChatMemberOwner:
		return true
	case *telego.ChatMemberAdministrator:
		if isChannel {
			return m.CanPostMessages
		}
		return true
	case *telego.ChatMemberMember:
		return !isChannel
	}
	return false
}

// RefreshPermissions re-checks posting rights for every active channel of the
// owner and persists any change. Returns the refreshed records.
func (s *Service) RefreshPermissions(ctx context.Context, ownerID int64) ([]models.Channel, error) {
	channels, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels for owner %d: %w", ownerID, err)
	}

	for i := range channels {
		c := &channels[i]
		if !c.IsActive {
			continue
		}
		canPost, err := s.checker.CanPost(ctx, c.ChatID, c.Type == string(telego.ChatTypeChannel))
		if err != nil {
			log.Printf("[Channels Chat:%d] Permission check failed: %v", c.ChatID, err)
			continue
		}
		if canPost == c.CanPost {
			continue
		}
		if err := s.repo.SetCanPost(ctx, c.ID, canPost); err != nil {
			log.Printf("[Channels Chat:%d] Error updating can_post: %v", c.ChatID, err)
			continue
		}
		c.CanPost = canPost
	}
	return channels, nil
}

// FormatList renders the owner's channel list with a status icon per record.
func FormatList(localizer *i18n.Localizer, channels []models.Channel) string {
	if len(channels) == 0 {
		return locales.GetMessage(localizer, "MsgChannelsEmpty", nil, nil)
	}

	var b strings.Builder
	b.WriteString(locales.GetMessage(localizer, "MsgChannelsHeader", map[string]interface{}{
		"Count": len(channels),
	}, nil))
	for i, c := range channels {
		icon := "✅"
		switch {
		case !c.IsActive:
			icon = "🔴"
		case !c.CanPost:
			icon = "⚠️"
		}
		name := c.Title
		if c.Username != "" {
			name = fmt.Sprintf("%s (@%s)", c.Title, c.Username)
		}
		b.WriteString(fmt.Sprintf("\n%d. %s %s", i+1, icon, name))
	}
	return b.String()
}
