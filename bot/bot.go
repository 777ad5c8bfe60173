package bot

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"multipost-bot/internal/broadcast"
	"multipost-bot/internal/channels"
	"multipost-bot/internal/handlers"
	"multipost-bot/internal/locales"
	telegoapi "multipost-bot/pkg/telegoapi"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/ratelimit"
)

// Bot runs the update loop: it reads updates from the long-polling channel
// and routes them to the command handlers, the broadcast manager, and the
// channel registry.
type Bot struct {
	bot          telegoapi.BotAPI
	updatesChan  <-chan telego.Update
	debug        bool
	handler      *handlers.MessageHandler
	broadcastMgr *broadcast.Manager
	channelSvc   *channels.Service
	ratelimiter  ratelimit.Limiter
}

// BotDeps holds the dependencies required by the Bot.
type BotDeps struct {
	Bot          telegoapi.BotAPI
	UpdatesChan  <-chan telego.Update
	Debug        bool
	Handler      *handlers.MessageHandler
	BroadcastMgr *broadcast.Manager
	ChannelSvc   *channels.Service
}

// New creates a new Bot instance from its dependencies.
func New(deps BotDeps) (*Bot, error) {
	if deps.Bot == nil {
		return nil, fmt.Errorf("telego bot (BotAPI) instance cannot be nil")
	}
	if deps.UpdatesChan == nil {
		return nil, fmt.Errorf("updates channel cannot be nil")
	}
	if deps.Handler == nil {
		return nil, fmt.Errorf("message handler cannot be nil")
	}
	if deps.BroadcastMgr == nil {
		return nil, fmt.Errorf("broadcast manager cannot be nil")
	}
	if deps.ChannelSvc == nil {
		return nil, fmt.Errorf("channel service cannot be nil")
	}

	return &Bot{
		bot:          deps.Bot,
		updatesChan:  deps.UpdatesChan,
		debug:        deps.Debug,
		handler:      deps.Handler,
		broadcastMgr: deps.BroadcastMgr,
		channelSvc:   deps.ChannelSvc,
		ratelimiter:  ratelimit.New(20),
	}, nil
}

// handleCommandUpdate processes a message identified as a command.
func (b *Bot) handleCommandUpdate(ctx context.Context, message telego.Message) {
	command := "unknown"
	if len(message.Text) > 1 && strings.HasPrefix(message.Text, "/") {
		command = strings.Split(message.Text, " ")[0][1:]
	}
	logPrefix := fmt.Sprintf("[Cmd:%s User:%d]", command, message.From.ID)

	handlerFunc := b.handler.GetCommandHandler(command)
	if handlerFunc == nil {
		log.Printf("%s No handler found", logPrefix)
		localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
		unknownCmdMsg := locales.GetMessage(localizer, "MsgErrorUnknownCommand", nil, nil)
		if _, err := b.bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), unknownCmdMsg)); err != nil {
			log.Printf("%s Failed to send unknown command message: %v", logPrefix, err)
		}
		return
	}

	if b.debug {
		log.Printf("%s Executing handler", logPrefix)
	}
	if err := handlerFunc(ctx, b.bot, message); err != nil {
		log.Printf("%s Handler error: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s handler error: %w", logPrefix, err))
	}
}

// handleCallbackQuery routes a callback to the broadcast manager first, then
// to the message handler (language picker).
func (b *Bot) handleCallbackQuery(ctx context.Context, query telego.CallbackQuery) {
	logPrefix := fmt.Sprintf("[Callback User:%d QueryID:%s]", query.From.ID, query.ID)
	if b.debug {
		log.Printf("%s Received callback query with data: %q", logPrefix, query.Data)
	}

	processed, err := b.broadcastMgr.HandleCallback(ctx, query)
	if err != nil {
		log.Printf("%s Broadcast callback handler error: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s broadcast callback handler error: %w", logPrefix, err))
		return
	}
	if processed {
		return
	}

	processed, err = b.handler.HandleCallbackQuery(ctx, b.bot, query)
	if err != nil {
		log.Printf("%s Callback handler error: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s callback handler error: %w", logPrefix, err))
		return
	}
	if processed {
		return
	}

	log.Printf("%s Callback query not handled. Data: %q", logPrefix, query.Data)
	_ = b.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{CallbackQueryID: query.ID})
}

// handleMyChatMember processes the bot's own membership changes, which drive
// channel registration and deactivation.
func (b *Bot) handleMyChatMember(ctx context.Context, update telego.ChatMemberUpdated) {
	logPrefix := fmt.Sprintf("[MyChatMember Chat:%d]", update.Chat.ID)
	if b.debug {
		log.Printf("%s Status changed to %s by user %d", logPrefix, update.NewChatMember.MemberStatus(), update.From.ID)
	}
	if err := b.channelSvc.HandleMyChatMember(ctx, update); err != nil {
		log.Printf("%s Handler error: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s handler error: %w", logPrefix, err))
	}
}

// processUpdate routes incoming updates to the appropriate handlers.
func (b *Bot) processUpdate(ctx context.Context, update telego.Update) {
	b.ratelimiter.Take()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC recovered in processUpdate: %v\n%s", r, debug.Stack())
			sentry.CurrentHub().Recover(r)
			sentry.Flush(time.Second * 2)
		}
	}()

	processingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch {
	case update.Message != nil:
		message := *update.Message
		if message.From == nil {
			log.Printf("Ignoring message %d from chat %d without sender", message.MessageID, message.Chat.ID)
			return
		}

		if strings.HasPrefix(message.Text, "/") && strings.TrimSpace(message.Text) != "/cancel" {
			b.handleCommandUpdate(processingCtx, message)
			return
		}

		// A broadcast session in this chat consumes the message, including
		// the /cancel keyword shortcut.
		processed, err := b.broadcastMgr.HandleMessage(processingCtx, message)
		if err != nil {
			log.Printf("Error processing message %d via broadcast manager: %v", message.MessageID, err)
			sentry.CaptureException(fmt.Errorf("broadcast message handler: %w", err))
			return
		}
		if processed {
			return
		}

		if strings.HasPrefix(message.Text, "/") {
			b.handleCommandUpdate(processingCtx, message)
			return
		}

		if b.debug {
			log.Printf("Ignoring message %d outside any broadcast session", message.MessageID)
		}

	case update.MyChatMember != nil:
		b.handleMyChatMember(processingCtx, *update.MyChatMember)

	case update.CallbackQuery != nil:
		b.handleCallbackQuery(processingCtx, *update.CallbackQuery)

	default:
		if b.debug {
			log.Printf("Ignoring unhandled update type: %+v", update)
		}
	}
}

// Start begins the bot's update processing loop. It returns when the context
// is cancelled and all in-flight updates finished.
func (b *Bot) Start(ctx context.Context) {
	if b.updatesChan == nil {
		log.Fatal("Bot updates channel is nil, cannot start")
	}
	log.Println("Listening for updates...")

	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			log.Println("Context done, stopping update processing...")
			wg.Wait()
			log.Println("All update processing finished.")
			return
		case update, ok := <-b.updatesChan:
			if !ok {
				log.Println("Updates channel closed.")
				wg.Wait()
				return
			}
			wg.Add(1)
			go func(up telego.Update) {
				defer wg.Done()
				b.processUpdate(ctx, up)
			}(update)
		}
	}
}

// Stop gracefully stops the bot. The actual stop is triggered by context
// cancellation in Start.
func (b *Bot) Stop() {
	log.Println("Bot Stop method called.")
}
