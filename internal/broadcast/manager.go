package broadcast

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"multipost-bot/internal/locales"
	telegoapi "multipost-bot/pkg/telegoapi"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

const (
	cancelKeyword = "/cancel"

	// Callback data for the confirmation keyboard.
	callbackPrefix  = "broadcast:"
	CallbackConfirm = "broadcast:confirm"
	CallbackCancel  = "broadcast:cancel"

	previewLimit = 200
)

// Manager owns the broadcast session lifecycle for every originating chat:
// collecting the message, confirming the recipient list, and running the
// fan-out. All session mutation goes through the injected SessionStore.
type Manager struct {
	bot        telegoapi.BotAPI
	sessions   SessionStore
	aggregator *Aggregator
	dispatcher *Dispatcher
	directory  RecipientDirectory
	usage      UsageGate
	langs      LanguageResolver
}

// ManagerDeps holds the dependencies required by the Manager.
type ManagerDeps struct {
	Bot           telegoapi.BotAPI
	Sessions      SessionStore
	Dispatcher    *Dispatcher
	Directory     RecipientDirectory
	Usage         UsageGate
	Langs         LanguageResolver
	FinalizeDelay time.Duration
}

// NewManager creates the broadcast session manager and its album aggregator.
func NewManager(deps ManagerDeps) (*Manager, error) {
	if deps.Bot == nil {
		return nil, fmt.Errorf("bot instance cannot be nil")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session store cannot be nil")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher cannot be nil")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("recipient directory cannot be nil")
	}
	if deps.Usage == nil {
		return nil, fmt.Errorf("usage gate cannot be nil")
	}

	m := &Manager{
		bot:        deps.Bot,
		sessions:   deps.Sessions,
		dispatcher: deps.Dispatcher,
		directory:  deps.Directory,
		usage:      deps.Usage,
		langs:      deps.Langs,
	}
	m.aggregator = NewAggregator(deps.FinalizeDelay, DefaultMaxGroupSize, m.finalizeGroup)
	return m, nil
}

// StartBroadcast begins a new session for the chat. Preconditions: the owner
// is within their usage allowance and has at least one eligible recipient;
// otherwise no session is created and the reason is sent to the user.
func (m *Manager) StartBroadcast(ctx context.Context, chatID int64, user *telego.User) error {
	localizer := m.localizerFor(ctx, user)

	allowed, used, limit, err := m.usage.CanSend(ctx, user.ID)
	if err != nil {
		m.sendMessage(ctx, chatID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil))
		return fmt.Errorf("failed to check usage allowance for user %d: %w", user.ID, err)
	}
	if !allowed {
		m.sendMessage(ctx, chatID, locales.GetMessage(localizer, "MsgBroadcastLimitReached", map[string]interface{}{
			"Used":  used,
			"Limit": limit,
		}, nil))
		return nil
	}

	recipients, err := m.directory.ListEligible(ctx, user.ID)
	if err != nil {
		m.sendMessage(ctx, chatID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil))
		return fmt.Errorf("failed to list recipients for user %d: %w", user.ID, err)
	}
	if len(recipients) == 0 {
		m.sendMessage(ctx, chatID, locales.GetMessage(localizer, "MsgBroadcastNoChannels", nil, nil))
		return nil
	}

	m.sessions.Set(chatID, &Session{
		OwnerID: user.ID,
		ChatID:  chatID,
		State:   StateCollecting,
		Message: &AuthoredMessage{Kind: KindText},
	})
	log.Printf("[Broadcast Chat:%d] Session started for user %d (%d recipients).", chatID, user.ID, len(recipients))

	m.sendMessage(ctx, chatID, locales.GetMessage(localizer, "MsgBroadcastPrompt", map[string]interface{}{
		"Count":    len(recipients),
		"Channels": formatRecipientList(recipients),
	}, nil))
	return nil
}

// HandleMessage feeds an inbound message into the session for its chat.
// Returns false when no session is collecting there, so the caller can route
// the message elsewhere. A message received while the session is already
// confirming is ignored; out-of-order input never corrupts the state.
func (m *Manager) HandleMessage(ctx context.Context, message telego.Message) (processed bool, err error) {
	session, ok := m.sessions.Get(message.Chat.ID)
	if !ok || session.State != StateCollecting {
		return false, nil
	}

	if strings.TrimSpace(message.Text) == cancelKeyword {
		m.cancelSession(ctx, session, m.localizerFor(ctx, message.From))
		return true, nil
	}

	if message.MediaGroupID != "" {
		session.GroupID = message.MediaGroupID
		m.sessions.Set(session.ChatID, session)
		m.aggregator.Add(message)
		return true, nil
	}

	return true, m.toConfirming(ctx, session, Classify(message), message.From)
}

// Cancel deletes the chat's session in any state, discarding a buffering
// album if one is pending. Returns whether a session existed.
func (m *Manager) Cancel(ctx context.Context, chatID int64) bool {
	session, ok := m.sessions.Get(chatID)
	if !ok {
		return false
	}
	if session.GroupID != "" {
		m.aggregator.Discard(session.GroupID)
	}
	m.sessions.Delete(chatID)
	log.Printf("[Broadcast Chat:%d] Session cancelled.", chatID)
	return true
}

// HandleCallback processes the confirmation keyboard actions. Returns false
// for callback data that does not belong to the broadcast flow. A click that
// arrives after the session ended, or while it is not confirming, is answered
// with an expiry notice and otherwise ignored.
func (m *Manager) HandleCallback(ctx context.Context, query telego.CallbackQuery) (processed bool, err error) {
	if !strings.HasPrefix(query.Data, callbackPrefix) {
		return false, nil
	}

	localizer := m.localizerFor(ctx, &query.From)

	msg, ok := query.Message.(*telego.Message)
	if !ok || msg == nil {
		log.Printf("[Broadcast Callback:%s] Message inaccessible, ignoring.", query.ID)
		m.answerCallback(ctx, query.ID, locales.GetMessage(localizer, "MsgBroadcastSessionExpired", nil, nil))
		return true, nil
	}
	chatID := msg.Chat.ID

	session, found := m.sessions.Get(chatID)
	if !found || session.State != StateConfirming {
		m.answerCallback(ctx, query.ID, locales.GetMessage(localizer, "MsgBroadcastSessionExpired", nil, nil))
		return true, nil
	}

	switch query.Data {
	case CallbackCancel:
		m.sessions.Delete(chatID)
		m.editMessage(ctx, chatID, msg.MessageID, locales.GetMessage(localizer, "MsgBroadcastCancelled", nil, nil))
		m.answerCallback(ctx, query.ID, locales.GetMessage(localizer, "MsgBroadcastCancelledAck", nil, nil))
		log.Printf("[Broadcast Chat:%d] Cancelled at confirmation.", chatID)
		return true, nil

	case CallbackConfirm:
		session.State = StateDispatching
		m.sessions.Set(chatID, session)

		m.editMessage(ctx, chatID, msg.MessageID, locales.GetMessage(localizer, "MsgBroadcastInProgress", nil, nil))
		m.answerCallback(ctx, query.ID, locales.GetMessage(localizer, "MsgBroadcastSendingAck", nil, nil))

		return true, m.execute(ctx, session, localizer)

	default:
		log.Printf("[Broadcast Chat:%d] Unknown callback data %q.", chatID, query.Data)
		m.answerCallback(ctx, query.ID, "")
		return true, nil
	}
}

// execute runs the fan-out and reports the outcome. The session is torn down
// whatever happens; it never survives a dispatch.
func (m *Manager) execute(ctx context.Context, session *Session, localizer *i18n.Localizer) error {
	defer m.sessions.Delete(session.ChatID)

	report, err := m.dispatcher.Dispatch(ctx, session.OwnerID, session.Message)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("broadcast dispatch for user %d: %w", session.OwnerID, err))
		m.sendMessage(ctx, session.ChatID, locales.GetMessage(localizer, "MsgBroadcastError", nil, nil))
		return err
	}

	log.Printf("[Broadcast Chat:%d] Dispatch complete: %d sent, %d failed, %d total.",
		session.ChatID, report.Success, report.Failed, report.Total)
	m.sendMessage(ctx, session.ChatID, FormatReport(localizer, report))
	return nil
}

// finalizeGroup is the aggregator callback. The state guard makes a finalize
// that fires after the session was cancelled or superseded a no-op.
func (m *Manager) finalizeGroup(ctx context.Context, chatID int64, combined *AuthoredMessage) {
	session, ok := m.sessions.Get(chatID)
	if !ok || session.State != StateCollecting {
		log.Printf("[Broadcast Chat:%d] Album finalized but no collecting session, dropping.", chatID)
		return
	}
	session.GroupID = ""
	if err := m.toConfirming(ctx, session, combined, nil); err != nil {
		log.Printf("[Broadcast Chat:%d] Error confirming album message: %v", chatID, err)
		sentry.CaptureException(err)
	}
}

// toConfirming snapshots the captured message, shows the recipient list for
// display purposes, and asks for confirmation.
func (m *Manager) toConfirming(ctx context.Context, session *Session, msg *AuthoredMessage, user *telego.User) error {
	localizer := m.localizerFor(ctx, user)

	session.Message = msg
	session.State = StateConfirming
	m.sessions.Set(session.ChatID, session)

	// Display-only snapshot; the dispatcher re-reads the set at send time.
	recipients, err := m.directory.ListEligible(ctx, session.OwnerID)
	if err != nil {
		m.sendMessage(ctx, session.ChatID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil))
		return fmt.Errorf("failed to list recipients for confirmation: %w", err)
	}

	keyboard := &telego.InlineKeyboardMarkup{
		InlineKeyboard: [][]telego.InlineKeyboardButton{
			tu.InlineKeyboardRow(
				tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnSendToAll", nil, nil)).WithCallbackData(CallbackConfirm),
				tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnCancel", nil, nil)).WithCallbackData(CallbackCancel),
			),
		},
	}

	text := locales.GetMessage(localizer, "MsgBroadcastConfirm", map[string]interface{}{
		"Count":     len(recipients),
		"Channels":  formatRecipientList(recipients),
		"Preview":   previewText(msg),
		"MediaInfo": m.mediaInfo(localizer, msg),
	}, nil)

	_, err = m.bot.SendMessage(ctx, tu.Message(tu.ID(session.ChatID), text).WithReplyMarkup(keyboard))
	if err != nil {
		return fmt.Errorf("failed to send confirmation message: %w", err)
	}
	return nil
}

func (m *Manager) cancelSession(ctx context.Context, session *Session, localizer *i18n.Localizer) {
	if session.GroupID != "" {
		m.aggregator.Discard(session.GroupID)
	}
	m.sessions.Delete(session.ChatID)
	m.sendMessage(ctx, session.ChatID, locales.GetMessage(localizer, "MsgBroadcastCancelled", nil, nil))
	log.Printf("[Broadcast Chat:%d] Session cancelled by keyword.", session.ChatID)
}

func (m *Manager) mediaInfo(localizer *i18n.Localizer, msg *AuthoredMessage) string {
	if len(msg.Media) == 0 {
		return ""
	}
	kinds := make([]string, 0, len(msg.Media))
	for _, ref := range msg.Media {
		kinds = append(kinds, string(ref.Kind))
	}
	return locales.GetMessage(localizer, "MsgBroadcastMediaInfo", map[string]interface{}{
		"Count": len(msg.Media),
		"Kinds": strings.Join(kinds, ", "),
	}, nil)
}

// localizerFor picks the stored language preference when available, then the
// Telegram client language, then the configured default.
func (m *Manager) localizerFor(ctx context.Context, user *telego.User) *i18n.Localizer {
	lang := locales.GetDefaultLanguageTag().String()
	if user != nil {
		if m.langs != nil {
			if stored := m.langs.UserLanguage(ctx, user.ID); stored != "" {
				return locales.NewLocalizer(stored)
			}
		}
		if user.LanguageCode != "" {
			lang = user.LanguageCode
		}
	}
	return locales.NewLocalizer(lang)
}

func (m *Manager) sendMessage(ctx context.Context, chatID int64, text string) {
	if _, err := m.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.Printf("[Broadcast Chat:%d] Error sending message: %v", chatID, err)
	}
}

func (m *Manager) editMessage(ctx context.Context, chatID int64, messageID int, text string) {
	_, err := m.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
		Text:      text,
	})
	if err != nil {
		log.Printf("[Broadcast Chat:%d] Error editing message %d: %v", chatID, messageID, err)
	}
}

func (m *Manager) answerCallback(ctx context.Context, queryID, text string) {
	err := m.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
		Text:            text,
	})
	if err != nil {
		log.Printf("[Broadcast Callback:%s] Error answering callback query: %v", queryID, err)
	}
}

func formatRecipientList(recipients []Recipient) string {
	lines := make([]string, 0, len(recipients))
	for i, recipient := range recipients {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, recipient.Title))
	}
	return strings.Join(lines, "\n")
}

func previewText(msg *AuthoredMessage) string {
	if msg.Text == "" {
		return "[media message]"
	}
	runes := []rune(msg.Text)
	if len(runes) > previewLimit {
		return string(runes[:previewLimit]) + "..."
	}
	return msg.Text
}
