package broadcast

import (
	"context"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/mock"
)

// --- Mocks ---

// MockBot is a mock implementing the telegoapi.BotAPI interface
type MockBot struct {
	mock.Mock
}

func (m *MockBot) GetMe(ctx context.Context) (*telego.User, error) {
	args := m.Called(ctx)
	if user, ok := args.Get(0).(*telego.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) EditMessageText(ctx context.Context, params *telego.EditMessageTextParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockBot) SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockBot) GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error) {
	args := m.Called(ctx, params)
	if member, ok := args.Get(0).(telego.ChatMember); ok {
		return member, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendPhoto(ctx context.Context, params *telego.SendPhotoParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendVideo(ctx context.Context, params *telego.SendVideoParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendDocument(ctx context.Context, params *telego.SendDocumentParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendAudio(ctx context.Context, params *telego.SendAudioParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendAnimation(ctx context.Context, params *telego.SendAnimationParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendSticker(ctx context.Context, params *telego.SendStickerParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendMediaGroup(ctx context.Context, params *telego.SendMediaGroupParams) ([]telego.Message, error) {
	args := m.Called(ctx, params)
	if msgs, ok := args.Get(0).([]telego.Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockDirectory is a mock for RecipientDirectory
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) ListEligible(ctx context.Context, ownerID int64) ([]Recipient, error) {
	args := m.Called(ctx, ownerID)
	if recipients, ok := args.Get(0).([]Recipient); ok {
		return recipients, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockRecordStore is a mock for DeliveryRecordStore
type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) Create(ctx context.Context, ownerID int64, recipientID, content, kind string, mediaCount int) (string, error) {
	args := m.Called(ctx, ownerID, recipientID, content, kind, mediaCount)
	return args.String(0), args.Error(1)
}

func (m *MockRecordStore) MarkSent(ctx context.Context, recordID, transportMessageID string) error {
	args := m.Called(ctx, recordID, transportMessageID)
	return args.Error(0)
}

func (m *MockRecordStore) MarkFailed(ctx context.Context, recordID, errText string) error {
	args := m.Called(ctx, recordID, errText)
	return args.Error(0)
}

// MockAccounting is a mock for UsageAccounting
type MockAccounting struct {
	mock.Mock
}

func (m *MockAccounting) IncrementSentCount(ctx context.Context, ownerID int64) error {
	args := m.Called(ctx, ownerID)
	return args.Error(0)
}

// MockRenderer is a mock for RecipientRenderer
type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Send(ctx context.Context, chatID int64, msg *AuthoredMessage) (int, error) {
	args := m.Called(ctx, chatID, msg)
	return args.Int(0), args.Error(1)
}

// MockUsageGate is a mock for UsageGate
type MockUsageGate struct {
	mock.Mock
}

func (m *MockUsageGate) CanSend(ctx context.Context, ownerID int64) (bool, int, int, error) {
	args := m.Called(ctx, ownerID)
	return args.Bool(0), args.Int(1), args.Int(2), args.Error(3)
}
