package broadcast

import "github.com/mymmrac/telego"

// Classify derives a normalized AuthoredMessage from a raw inbound message.
// When several media fields are set on one message (malformed input), the
// precedence is photo > video > document > audio/voice > animation > sticker >
// poll > location > text. A message with none of the recognized fields yields
// KindText with empty text.
func Classify(message telego.Message) *AuthoredMessage {
	return &AuthoredMessage{
		Text:  extractText(message),
		Kind:  detectKind(message),
		Media: extractMedia(message),
	}
}

func detectKind(message telego.Message) MessageKind {
	switch {
	case message.Photo != nil:
		return KindPhoto
	case message.Video != nil:
		return KindVideo
	case message.Document != nil:
		return KindDocument
	case message.Audio != nil || message.Voice != nil:
		return KindAudio
	case message.Animation != nil:
		return KindGIF
	case message.Sticker != nil:
		return KindSticker
	case message.Poll != nil:
		return KindPoll
	case message.Location != nil:
		return KindLocation
	default:
		return KindText
	}
}

func extractText(message telego.Message) string {
	if message.Text != "" {
		return message.Text
	}
	return message.Caption
}

// extractMedia collects the transport references carried by one message.
// For photos only the highest-resolution size is kept; Telegram lists sizes
// in ascending order, so that is the last element.
func extractMedia(message telego.Message) []MediaRef {
	var refs []MediaRef

	if len(message.Photo) > 0 {
		refs = append(refs, MediaRef{FileID: message.Photo[len(message.Photo)-1].FileID, Kind: MediaPhoto})
	}
	if message.Video != nil {
		refs = append(refs, MediaRef{FileID: message.Video.FileID, Kind: MediaVideo})
	}
	if message.Document != nil {
		refs = append(refs, MediaRef{FileID: message.Document.FileID, Kind: MediaDocument})
	}
	if message.Audio != nil {
		refs = append(refs, MediaRef{FileID: message.Audio.FileID, Kind: MediaAudio})
	}
	if message.Voice != nil {
		refs = append(refs, MediaRef{FileID: message.Voice.FileID, Kind: MediaVoice})
	}
	if message.Animation != nil {
		refs = append(refs, MediaRef{FileID: message.Animation.FileID, Kind: MediaAnimation})
	}
	if message.Sticker != nil {
		refs = append(refs, MediaRef{FileID: message.Sticker.FileID, Kind: MediaSticker})
	}

	return refs
}
