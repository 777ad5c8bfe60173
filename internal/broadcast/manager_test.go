package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"multipost-bot/internal/locales"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	managerUserID = int64(5000)
	managerChatID = int64(6000)
)

type managerSuite struct {
	bot        *MockBot
	directory  *MockDirectory
	records    *MockRecordStore
	renderer   *MockRenderer
	accounting *MockAccounting
	usage      *MockUsageGate
	sessions   *MemorySessionStore
	manager    *Manager
}

func setupManagerSuite(t *testing.T) *managerSuite {
	t.Helper()
	locales.Init("en")

	s := &managerSuite{
		bot:        new(MockBot),
		directory:  new(MockDirectory),
		records:    new(MockRecordStore),
		renderer:   new(MockRenderer),
		accounting: new(MockAccounting),
		usage:      new(MockUsageGate),
		sessions:   NewMemorySessionStore(),
	}

	dispatcher := NewDispatcher(s.directory, s.records, s.renderer, s.accounting, 0)
	manager, err := NewManager(ManagerDeps{
		Bot:           s.bot,
		Sessions:      s.sessions,
		Dispatcher:    dispatcher,
		Directory:     s.directory,
		Usage:         s.usage,
		FinalizeDelay: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	s.manager = manager
	return s
}

func managerUser() *telego.User {
	return &telego.User{ID: managerUserID, FirstName: "Sender", LanguageCode: "en"}
}

func textMessage(text string) telego.Message {
	return telego.Message{
		MessageID: 1,
		From:      managerUser(),
		Chat:      telego.Chat{ID: managerChatID},
		Text:      text,
	}
}

func (s *managerSuite) expectSendMessage() {
	s.bot.On("SendMessage", mock.Anything, mock.AnythingOfType("*telego.SendMessageParams")).
		Return(&telego.Message{MessageID: 99}, nil)
}

func TestStartBroadcastNoRecipients(t *testing.T) {
	s := setupManagerSuite(t)
	ctx := context.Background()

	s.usage.On("CanSend", ctx, managerUserID).Return(true, 0, 3, nil).Once()
	s.directory.On("ListEligible", ctx, managerUserID).Return([]Recipient{}, nil).Once()
	s.expectSendMessage()

	err := s.manager.StartBroadcast(ctx, managerChatID, managerUser())

	assert.NoError(t, err)
	_, ok := s.sessions.Get(managerChatID)
	assert.False(t, ok, "no session should exist without recipients")
	s.bot.AssertExpectations(t)
}

func TestStartBroadcastLimitReached(t *testing.T) {
	s := setupManagerSuite(t)
	ctx := context.Background()

	s.usage.On("CanSend", ctx, managerUserID).Return(false, 3, 3, nil).Once()
	s.expectSendMessage()

	err := s.manager.StartBroadcast(ctx, managerChatID, managerUser())

	assert.NoError(t, err)
	_, ok := s.sessions.Get(managerChatID)
	assert.False(t, ok)
	s.directory.AssertNotCalled(t, "ListEligible", mock.Anything, mock.Anything)
}

func TestStartBroadcastOpensCollectingSession(t *testing.T) {
	s := setupManagerSuite(t)
	ctx := context.Background()

	recipients := []Recipient{{ID: "r1", Title: "News", ChatID: -100}}
	s.usage.On("CanSend", ctx, managerUserID).Return(true, 1, 3, nil).Once()
	s.directory.On("ListEligible", ctx, managerUserID).Return(recipients, nil).Once()
	s.expectSendMessage()

	err := s.manager.StartBroadcast(ctx, managerChatID, managerUser())

	assert.NoError(t, err)
	session, ok := s.sessions.Get(managerChatID)
	require.True(t, ok)
	assert.Equal(t, StateCollecting, session.State)
	assert.Equal(t, managerUserID, session.OwnerID)
}

func TestHandleMessageWithoutSession(t *testing.T) {
	s := setupManagerSuite(t)

	processed, err := s.manager.HandleMessage(context.Background(), textMessage("hello"))

	assert.NoError(t, err)
	assert.False(t, processed)
}

func TestHandleMessageCancelKeyword(t *testing.T) {
	s := setupManagerSuite(t)
	ctx := context.Background()

	s.sessions.Set(managerChatID, &Session{OwnerID: managerUserID, ChatID: managerChatID, State: StateCollecting})
	s.expectSendMessage()

	processed, err := s.manager.HandleMessage(ctx, textMessage("/cancel"))

	assert.NoError(t, err)
	assert.True(t, processed)
	_, ok := s.sessions.Get(managerChatID)
	assert.False(t, ok)
}

func TestHandleMessageMovesToConfirming(t *testing.T) {
	s := setupManagerSuite(t)
	ctx := context.Background()

	s.sessions.Set(managerChatID, &Session{OwnerID: managerUserID, ChatID: managerChatID, State: StateCollecting})
	s.directory.On("ListEligible", ctx, managerUserID).
		Return([]Recipient{{ID: "r1", Title: "News", ChatID: -100}}, nil).Once()

	var confirmParams *telego.SendMessageParams
	s.bot.On("SendMessage", mock.Anything, mock.AnythingOfType("*telego.SendMessageParams")).
		Run(func(args mock.Arguments) { confirmParams = args.Get(1).(*telego.SendMessageParams) }).
		Return(&telego.Message{MessageID: 99}, nil).Once()

	processed, err := s.manager.HandleMessage(ctx, textMessage("broadcast me"))

	assert.NoError(t, err)
	assert.True(t, processed)

	session, ok := s.sessions.Get(managerChatID)
	require.True(t, ok)
	assert.Equal(t, StateConfirming, session.State)
	require.NotNil(t, session.Message)
	assert.Equal(t, "broadcast me", session.Message.Text)

	// The confirmation carries the inline confirm/cancel keyboard.
	require.NotNil(t, confirmParams)
	keyboard, ok := confirmParams.ReplyMarkup.(*telego.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, keyboard.InlineKeyboard, 1)
	require.Len(t, keyboard.InlineKeyboard[0], 2)
	assert.Equal(t, CallbackConfirm, keyboard.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, CallbackCancel, keyboard.InlineKeyboard[0][1].CallbackData)
}

func TestHandleMessageIgnoredWhileConfirming(t *testing.T) {
	s := setupManagerSuite(t)

	s.sessions.Set(managerChatID, &Session{OwnerID: managerUserID, ChatID: managerChatID, State: StateConfirming})

	processed, err := s.manager.HandleMessage(context.Background(), textMessage("late message"))

	assert.NoError(t, err)
	assert.False(t, processed)
	session, _ := s.sessions.Get(managerChatID)
	assert.Equal(t, StateConfirming, session.State)
}

func TestHandleMessageAlbumGoesToAggregator(t *testing.T) {
	s := setupManagerSuite(t)
	ctx := context.Background()

	s.sessions.Set(managerChatID, &Session{OwnerID: managerUserID, ChatID: managerChatID, State: StateCollecting})
	s.directory.On("ListEligible", mock.Anything, managerUserID).
		Return([]Recipient{{ID: "r1", Title: "News", ChatID: -100}}, nil).Once()
	s.expectSendMessage()

	album := telego.Message{
		MessageID:    2,
		From:         managerUser(),
		Chat:         telego.Chat{ID: managerChatID},
		MediaGroupID: "grp-1",
		Caption:      "album",
		Photo:        []telego.PhotoSize{{FileID: "p1"}},
	}
	processed, err := s.manager.HandleMessage(ctx, album)

	assert.NoError(t, err)
	assert.True(t, processed)

	// Still collecting until the debounce window closes.
	session, _ := s.sessions.Get(managerChatID)
	assert.Equal(t, StateCollecting, session.State)
	assert.Equal(t, "grp-1", session.GroupID)

	assert.Eventually(t, func() bool {
		current, ok := s.sessions.Get(managerChatID)
		return ok && current.State == StateConfirming
	}, time.Second, 5*time.Millisecond)

	session, _ = s.sessions.Get(managerChatID)
	require.NotNil(t, session.Message)
	assert.Equal(t, "album", session.Message.Text)
	assert.Len(t, session.Message.Media, 1)
}

func TestHandleCallbackForeignDataIgnored(t *testing.T) {
	s := setupManagerSuite(t)

	processed, err := s.manager.HandleCallback(context.Background(), telego.CallbackQuery{
		ID:   "q1",
		From: *managerUser(),
		Data: "lang:en",
	})

	assert.NoError(t, err)
	assert.False(t, processed)
}

func TestHandleCallbackExpiredSession(t *testing.T) {
	s := setupManagerSuite(t)
	ctx := context.Background()

	var answered *telego.AnswerCallbackQueryParams
	s.bot.On("AnswerCallbackQuery", mock.Anything, mock.AnythingOfType("*telego.AnswerCallbackQueryParams")).
		Run(func(args mock.Arguments) { answered = args.Get(1).(*telego.AnswerCallbackQueryParams) }).
		Return(nil).Once()

	query := telego.CallbackQuery{
		ID:      "q1",
		From:    *managerUser(),
		Data:    CallbackConfirm,
		Message: &telego.Message{MessageID: 50, Chat: telego.Chat{ID: managerChatID}},
	}
	processed, err := s.manager.HandleCallback(ctx, query)

	assert.NoError(t, err)
	assert.True(t, processed)
	require.NotNil(t, answered)
	expired := locales.GetMessage(locales.NewLocalizer("en"), "MsgBroadcastSessionExpired", nil, nil)
	assert.Equal(t, expired, answered.Text)
}

func TestHandleCallbackCancel(t *testing.T) {
	s := setupManagerSuite(t)
	ctx := context.Background()

	s.sessions.Set(managerChatID, &Session{
		OwnerID: managerUserID,
		ChatID:  managerChatID,
		State:   StateConfirming,
		Message: &AuthoredMessage{Kind: KindText, Text: "hi"},
	})

	s.bot.On("EditMessageText", mock.Anything, mock.AnythingOfType("*telego.EditMessageTextParams")).
		Return(&telego.Message{}, nil).Once()
	s.bot.On("AnswerCallbackQuery", mock.Anything, mock.AnythingOfType("*telego.AnswerCallbackQueryParams")).
		Return(nil).Once()

	query := telego.CallbackQuery{
		ID:      "q2",
		From:    *managerUser(),
		Data:    CallbackCancel,
		Message: &telego.Message{MessageID: 50, Chat: telego.Chat{ID: managerChatID}},
	}
	processed, err := s.manager.HandleCallback(ctx, query)

	assert.NoError(t, err)
	assert.True(t, processed)
	_, ok := s.sessions.Get(managerChatID)
	assert.False(t, ok)
	s.bot.AssertExpectations(t)
}

func TestHandleCallbackConfirmDispatches(t *testing.T) {
	s := setupManagerSuite(t)
	ctx := context.Background()

	msg := &AuthoredMessage{Kind: KindText, Text: "announcement"}
	s.sessions.Set(managerChatID, &Session{
		OwnerID: managerUserID,
		ChatID:  managerChatID,
		State:   StateConfirming,
		Message: msg,
	})

	recipients := []Recipient{{ID: "r1", Title: "News", ChatID: -100}}
	s.directory.On("ListEligible", mock.Anything, managerUserID).Return(recipients, nil).Once()
	s.records.On("Create", mock.Anything, managerUserID, "r1", "announcement", "text", 0).Return("rec-1", nil).Once()
	s.renderer.On("Send", mock.Anything, int64(-100), msg).Return(700, nil).Once()
	s.records.On("MarkSent", mock.Anything, "rec-1", "700").Return(nil).Once()
	s.accounting.On("IncrementSentCount", mock.Anything, managerUserID).Return(nil).Once()

	s.bot.On("EditMessageText", mock.Anything, mock.AnythingOfType("*telego.EditMessageTextParams")).
		Return(&telego.Message{}, nil).Once()
	s.bot.On("AnswerCallbackQuery", mock.Anything, mock.AnythingOfType("*telego.AnswerCallbackQueryParams")).
		Return(nil).Once()

	var reportParams *telego.SendMessageParams
	s.bot.On("SendMessage", mock.Anything, mock.AnythingOfType("*telego.SendMessageParams")).
		Run(func(args mock.Arguments) { reportParams = args.Get(1).(*telego.SendMessageParams) }).
		Return(&telego.Message{}, nil).Once()

	query := telego.CallbackQuery{
		ID:      "q3",
		From:    *managerUser(),
		Data:    CallbackConfirm,
		Message: &telego.Message{MessageID: 50, Chat: telego.Chat{ID: managerChatID}},
	}
	processed, err := s.manager.HandleCallback(ctx, query)

	assert.NoError(t, err)
	assert.True(t, processed)

	// The session never survives a dispatch.
	_, ok := s.sessions.Get(managerChatID)
	assert.False(t, ok)

	require.NotNil(t, reportParams)
	assert.Contains(t, reportParams.Text, "✅ News")

	s.bot.AssertExpectations(t)
	s.records.AssertExpectations(t)
	s.accounting.AssertExpectations(t)
}

func TestHandleCallbackConfirmDispatchErrorTearsDownSession(t *testing.T) {
	s := setupManagerSuite(t)
	ctx := context.Background()

	s.sessions.Set(managerChatID, &Session{
		OwnerID: managerUserID,
		ChatID:  managerChatID,
		State:   StateConfirming,
		Message: &AuthoredMessage{Kind: KindText, Text: "hi"},
	})

	s.directory.On("ListEligible", mock.Anything, managerUserID).Return(nil, errors.New("db down")).Once()
	s.bot.On("EditMessageText", mock.Anything, mock.AnythingOfType("*telego.EditMessageTextParams")).
		Return(&telego.Message{}, nil).Once()
	s.bot.On("AnswerCallbackQuery", mock.Anything, mock.AnythingOfType("*telego.AnswerCallbackQueryParams")).
		Return(nil).Once()
	s.expectSendMessage()

	query := telego.CallbackQuery{
		ID:      "q4",
		From:    *managerUser(),
		Data:    CallbackConfirm,
		Message: &telego.Message{MessageID: 50, Chat: telego.Chat{ID: managerChatID}},
	}
	processed, err := s.manager.HandleCallback(ctx, query)

	assert.True(t, processed)
	assert.Error(t, err)
	_, ok := s.sessions.Get(managerChatID)
	assert.False(t, ok, "session must be deleted even when the dispatch fails")
}

func TestCancelWithoutSession(t *testing.T) {
	s := setupManagerSuite(t)

	assert.False(t, s.manager.Cancel(context.Background(), managerChatID))
}

func TestCancelDiscardsPendingAlbum(t *testing.T) {
	s := setupManagerSuite(t)
	ctx := context.Background()

	s.sessions.Set(managerChatID, &Session{OwnerID: managerUserID, ChatID: managerChatID, State: StateCollecting})

	album := telego.Message{
		MessageID:    2,
		From:         managerUser(),
		Chat:         telego.Chat{ID: managerChatID},
		MediaGroupID: "grp-cancel",
		Photo:        []telego.PhotoSize{{FileID: "p1"}},
	}
	processed, err := s.manager.HandleMessage(ctx, album)
	require.NoError(t, err)
	require.True(t, processed)

	assert.True(t, s.manager.Cancel(ctx, managerChatID))

	// The buffered album never finalizes into a new session.
	time.Sleep(60 * time.Millisecond)
	_, ok := s.sessions.Get(managerChatID)
	assert.False(t, ok)
}
