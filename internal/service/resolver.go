package service

import (
	"fmt"
	"strings"

	"github.com/diegolsarmond/qchat/internal/models"
)

// ContentPayload is the raw content/media shape handed to the resolver.
// Empty strings mean absent. Callers already know either the precise media
// kind (messageType "image", "ptt", ...) or only a generic "media" flag
// plus side fields; the resolver owns that disambiguation so send, fetch
// and webhook paths cannot drift apart.
type ContentPayload struct {
	Content      string
	MessageType  string
	MediaType    string
	Caption      string
	DocumentName string
	MediaURL     string
	MediaBase64  string
}

// ResolveStoredContent decides the canonical persisted shape of a message.
// Text messages keep their content untouched with every media field nil;
// media messages get trimmed media fields and a content fallback chain of
// caption, then original content, then a "[<mediaType>]" label.
func ResolveStoredContent(p ContentPayload) models.StoredContent {
	if !isMediaPayload(p) {
		return models.StoredContent{
			MessageType: models.MessageTypeText,
			Content:     p.Content,
		}
	}

	mediaType := strings.TrimSpace(p.MediaType)
	if mediaType == "" && isSpecificMediaKind(p.MessageType) {
		mediaType = strings.TrimSpace(p.MessageType)
	}

	resolved := models.StoredContent{
		MessageType:  models.MessageTypeMedia,
		Content:      mediaContent(p, mediaType),
		MediaType:    trimmedOrNil(mediaType),
		Caption:      trimmedOrNil(p.Caption),
		DocumentName: trimmedOrNil(p.DocumentName),
		MediaURL:     trimmedOrNil(p.MediaURL),
		MediaBase64:  trimmedOrNil(p.MediaBase64),
	}

	// Exactly one of URL and base64 may be stored. Base64 is produced by
	// the later download/resolution step, so it wins over a plain URL.
	if resolved.MediaBase64 != nil && resolved.MediaURL != nil {
		resolved.MediaURL = nil
	}

	return resolved
}

// ResolveNormalized runs the resolver over a normalized message.
func ResolveNormalized(msg models.NormalizedMessage) models.StoredContent {
	return ResolveStoredContent(ContentPayload{
		Content:      msg.Content,
		MessageType:  msg.MessageType,
		MediaType:    msg.MediaType,
		Caption:      msg.Caption,
		DocumentName: msg.DocumentName,
		MediaURL:     msg.MediaURL,
		MediaBase64:  msg.MediaBase64,
	})
}

func isMediaPayload(p ContentPayload) bool {
	if p.MessageType == string(models.MessageTypeMedia) {
		return true
	}
	if isSpecificMediaKind(p.MessageType) {
		return true
	}
	return strings.TrimSpace(p.MediaType) != "" ||
		strings.TrimSpace(p.Caption) != "" ||
		strings.TrimSpace(p.DocumentName) != "" ||
		strings.TrimSpace(p.MediaURL) != "" ||
		strings.TrimSpace(p.MediaBase64) != ""
}

// isSpecificMediaKind reports whether the message type names a concrete
// media kind directly ("image", "ptt", "video") rather than the generic
// "text" or "media" buckets.
func isSpecificMediaKind(messageType string) bool {
	return messageType != "" &&
		messageType != string(models.MessageTypeText) &&
		messageType != string(models.MessageTypeMedia)
}

func mediaContent(p ContentPayload, mediaType string) string {
	if caption := strings.TrimSpace(p.Caption); caption != "" {
		return caption
	}
	if p.Content != "" {
		return p.Content
	}
	if mediaType != "" {
		return fmt.Sprintf("[%s]", mediaType)
	}
	return "[media]"
}

func trimmedOrNil(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
