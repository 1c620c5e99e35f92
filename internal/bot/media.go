package bot

import (
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-media-proxy/internal/model"
)

// ErrNoMediaSupplied is returned when a message carries no usable media.
var ErrNoMediaSupplied = errors.New("no media supplied")

// Media kinds.
const (
	KindDocument = "document"
	KindVideo    = "video"
	KindAudio    = "audio"
	KindVoice    = "voice"
	KindPhoto    = "photo"
)

// Media is a file reference extracted from an inbound message.
type Media struct {
	Ref   model.MediaReference
	Label string
	Kind  string
}

// ExtractMedia returns the first attachment of msg, checking document,
// video, audio, voice and photo in that order. For photos the largest
// size is used.
func ExtractMedia(msg *tgbotapi.Message) (Media, error) {
	if msg == nil {
		return Media{}, ErrNoMediaSupplied
	}

	switch {
	case msg.Document != nil && msg.Document.FileID != "":
		return Media{
			Ref:   model.MediaReference(msg.Document.FileID),
			Label: labelOr(msg.Document.FileName, KindDocument),
			Kind:  KindDocument,
		}, nil
	case msg.Video != nil && msg.Video.FileID != "":
		return Media{Ref: model.MediaReference(msg.Video.FileID), Label: KindVideo, Kind: KindVideo}, nil
	case msg.Audio != nil && msg.Audio.FileID != "":
		return Media{
			Ref:   model.MediaReference(msg.Audio.FileID),
			Label: labelOr(msg.Audio.Title, KindAudio),
			Kind:  KindAudio,
		}, nil
	case msg.Voice != nil && msg.Voice.FileID != "":
		return Media{Ref: model.MediaReference(msg.Voice.FileID), Label: "voice message", Kind: KindVoice}, nil
	case len(msg.Photo) > 0:
		return Media{Ref: model.MediaReference(largestPhoto(msg.Photo).FileID), Label: KindPhoto, Kind: KindPhoto}, nil
	}

	return Media{}, ErrNoMediaSupplied
}

func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, p := range sizes[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best
}

func labelOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
