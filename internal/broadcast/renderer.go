package broadcast

import (
	"context"
	"fmt"
	"log"
	"time"

	telegoapi "multipost-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// DefaultItemDelay is the pacing between the individual sends of a
// mixed-media sequence, to respect destination rate limits.
const DefaultItemDelay = 100 * time.Millisecond

// groupableKinds are the media kinds Telegram accepts inside one media group.
var groupableKinds = map[MediaKind]bool{
	MediaPhoto: true,
	MediaVideo: true,
}

// Renderer decides how an authored message materializes at one destination:
// plain text, a single native media send, one media-group batch, or a paced
// sequence of individual sends for mixed media kinds.
type Renderer struct {
	bot       telegoapi.BotAPI
	itemDelay time.Duration
}

// NewRenderer creates a renderer on top of the given transport.
// itemDelay <= 0 selects DefaultItemDelay.
func NewRenderer(bot telegoapi.BotAPI, itemDelay time.Duration) *Renderer {
	if itemDelay < 0 {
		itemDelay = DefaultItemDelay
	}
	return &Renderer{bot: bot, itemDelay: itemDelay}
}

// Send delivers msg to chatID as a native (non-forwarded) message.
// Any media-send failure triggers exactly one fallback attempt as plain text;
// a fallback that also fails is the terminal failure for this recipient.
// Returns the transport id of the first sent message.
func (r *Renderer) Send(ctx context.Context, chatID int64, msg *AuthoredMessage) (int, error) {
	if msg.Kind == KindText || len(msg.Media) == 0 {
		return r.sendText(ctx, chatID, msg.Text)
	}

	messageID, err := r.sendMedia(ctx, chatID, msg)
	if err != nil {
		log.Printf("[Renderer Chat:%d] Media send failed, falling back to text: %v", chatID, err)
		fallbackID, fallbackErr := r.sendText(ctx, chatID, msg.Text)
		if fallbackErr != nil {
			return 0, fmt.Errorf("media send failed (%v); text fallback failed: %w", err, fallbackErr)
		}
		return fallbackID, nil
	}
	return messageID, nil
}

func (r *Renderer) sendMedia(ctx context.Context, chatID int64, msg *AuthoredMessage) (int, error) {
	if len(msg.Media) == 1 {
		return r.sendSingle(ctx, chatID, msg)
	}
	if allGroupable(msg.Media) {
		return r.sendAsGroup(ctx, chatID, msg)
	}
	return r.sendSequence(ctx, chatID, msg)
}

// sendSingle dispatches on the message kind. Every MessageKind must be
// handled here; kinds without a sendable payload degrade to plain text.
func (r *Renderer) sendSingle(ctx context.Context, chatID int64, msg *AuthoredMessage) (int, error) {
	fileID := msg.Media[0].FileID
	input := telego.InputFile{FileID: fileID}

	switch msg.Kind {
	case KindPhoto:
		sent, err := r.bot.SendPhoto(ctx, &telego.SendPhotoParams{ChatID: tu.ID(chatID), Photo: input, Caption: msg.Text})
		return messageID(sent), err
	case KindVideo:
		sent, err := r.bot.SendVideo(ctx, &telego.SendVideoParams{ChatID: tu.ID(chatID), Video: input, Caption: msg.Text})
		return messageID(sent), err
	case KindDocument:
		sent, err := r.bot.SendDocument(ctx, &telego.SendDocumentParams{ChatID: tu.ID(chatID), Document: input, Caption: msg.Text})
		return messageID(sent), err
	case KindAudio:
		sent, err := r.bot.SendAudio(ctx, &telego.SendAudioParams{ChatID: tu.ID(chatID), Audio: input, Caption: msg.Text})
		return messageID(sent), err
	case KindGIF:
		sent, err := r.bot.SendAnimation(ctx, &telego.SendAnimationParams{ChatID: tu.ID(chatID), Animation: input, Caption: msg.Text})
		return messageID(sent), err
	case KindSticker:
		// Stickers carry no caption.
		sent, err := r.bot.SendSticker(ctx, &telego.SendStickerParams{ChatID: tu.ID(chatID), Sticker: input})
		return messageID(sent), err
	case KindText, KindPoll, KindLocation:
		// No sendable media payload for these kinds.
		return r.sendText(ctx, chatID, msg.Text)
	}
	return 0, fmt.Errorf("unhandled message kind %q", msg.Kind)
}

// sendAsGroup sends photos and videos as one multi-item batch,
// attaching the caption only to the first item.
func (r *Renderer) sendAsGroup(ctx context.Context, chatID int64, msg *AuthoredMessage) (int, error) {
	media := make([]telego.InputMedia, 0, len(msg.Media))
	for i, ref := range msg.Media {
		input := telego.InputFile{FileID: ref.FileID}
		switch ref.Kind {
		case MediaPhoto:
			item := tu.MediaPhoto(input)
			if i == 0 {
				item.Caption = msg.Text
			}
			media = append(media, item)
		case MediaVideo:
			item := tu.MediaVideo(input)
			if i == 0 {
				item.Caption = msg.Text
			}
			media = append(media, item)
		default:
			return 0, fmt.Errorf("media kind %q is not groupable", ref.Kind)
		}
	}

	sent, err := r.bot.SendMediaGroup(ctx, tu.MediaGroup(tu.ID(chatID), media...))
	if err != nil {
		return 0, err
	}
	if len(sent) == 0 {
		return 0, nil
	}
	return sent[0].MessageID, nil
}

// sendSequence sends mixed media kinds as individual messages in order, with
// the caption only on the first and a short pacing delay between items.
func (r *Renderer) sendSequence(ctx context.Context, chatID int64, msg *AuthoredMessage) (int, error) {
	firstID := 0
	for i, ref := range msg.Media {
		caption := ""
		if i == 0 {
			caption = msg.Text
		}

		sentID, err := r.sendByMediaKind(ctx, chatID, ref, caption)
		if err != nil {
			return 0, fmt.Errorf("failed to send item %d of %d: %w", i+1, len(msg.Media), err)
		}
		if i == 0 {
			firstID = sentID
		}
		if r.itemDelay > 0 && i < len(msg.Media)-1 {
			time.Sleep(r.itemDelay)
		}
	}
	return firstID, nil
}

func (r *Renderer) sendByMediaKind(ctx context.Context, chatID int64, ref MediaRef, caption string) (int, error) {
	input := telego.InputFile{FileID: ref.FileID}

	switch ref.Kind {
	case MediaPhoto:
		sent, err := r.bot.SendPhoto(ctx, &telego.SendPhotoParams{ChatID: tu.ID(chatID), Photo: input, Caption: caption})
		return messageID(sent), err
	case MediaVideo:
		sent, err := r.bot.SendVideo(ctx, &telego.SendVideoParams{ChatID: tu.ID(chatID), Video: input, Caption: caption})
		return messageID(sent), err
	case MediaAudio:
		sent, err := r.bot.SendAudio(ctx, &telego.SendAudioParams{ChatID: tu.ID(chatID), Audio: input, Caption: caption})
		return messageID(sent), err
	case MediaAnimation:
		sent, err := r.bot.SendAnimation(ctx, &telego.SendAnimationParams{ChatID: tu.ID(chatID), Animation: input, Caption: caption})
		return messageID(sent), err
	case MediaSticker:
		sent, err := r.bot.SendSticker(ctx, &telego.SendStickerParams{ChatID: tu.ID(chatID), Sticker: input})
		return messageID(sent), err
	case MediaDocument, MediaVoice:
		// Voice references have no dedicated send path here; a document send
		// delivers the file either way.
		sent, err := r.bot.SendDocument(ctx, &telego.SendDocumentParams{ChatID: tu.ID(chatID), Document: input, Caption: caption})
		return messageID(sent), err
	}
	return 0, fmt.Errorf("unhandled media kind %q", ref.Kind)
}

func (r *Renderer) sendText(ctx context.Context, chatID int64, text string) (int, error) {
	sent, err := r.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func messageID(msg *telego.Message) int {
	if msg == nil {
		return 0
	}
	return msg.MessageID
}

func allGroupable(refs []MediaRef) bool {
	for _, ref := range refs {
		if !groupableKinds[ref.Kind] {
			return false
		}
	}
	return true
}
