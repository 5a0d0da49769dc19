package chat

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"tempchat/internal/app/model"
	"tempchat/internal/app/storage"
	"tempchat/internal/pkg/errs"
	"tempchat/internal/pkg/logx"
	"tempchat/internal/pkg/metrics"
	"tempchat/internal/pkg/randx"
)

const (
	// DefaultMaxFileBytes is the file size limit (10 MiB).
	DefaultMaxFileBytes int64 = 10 * 1024 * 1024

	// MaxTextLength is the character limit of one text message.
	MaxTextLength = 10000

	// MaxFileNameLength bounds stored file names.
	MaxFileNameLength = 255

	defaultFileType = "application/octet-stream"
)

var blobExtPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// FileUpload is the client-declared part of a file message.
type FileUpload struct {
	Name string
	Type string
	Size int64
	// Data is a data URL ("data:<type>;base64,<payload>") or bare base64.
	Data string
}

// Content is the body of a submitted message: Text for KindText, File for KindFile.
type Content struct {
	Text string
	File *FileUpload
}

// Ingestor validates, persists and broadcasts chat messages.
type Ingestor struct {
	store        MessageStore
	router       *Router
	blobs        storage.StorageService
	maxFileBytes int64
	log          zerolog.Logger
}

// NewIngestor creates an ingestor. blobs may be nil, in which case file payloads are
// stored inline. A non-positive maxFileBytes means DefaultMaxFileBytes.
func NewIngestor(s MessageStore, router *Router, blobs storage.StorageService, maxFileBytes int64) *Ingestor {
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	return &Ingestor{
		store:        s,
		router:       router,
		blobs:        blobs,
		maxFileBytes: maxFileBytes,
		log:          logx.Component("ingest"),
	}
}

// MaxFileBytes returns the enforced file size limit.
func (in *Ingestor) MaxFileBytes() int64 {
	return in.maxFileBytes
}

// SubmitMessage persists a text or file message from username and then publishes it
// to every connection of the room, the sender included. Nothing is persisted or
// published when validation fails.
func (in *Ingestor) SubmitMessage(ctx context.Context, code, username string, kind model.Kind, content Content) (*model.Message, error) {
	msg := &model.Message{
		ID:       randx.MessageID(),
		RoomCode: code,
		Kind:     kind,
		Username: username,
	}

	switch kind {
	case model.KindText:
		if content.Text == "" {
			return nil, errs.NewError(errs.ErrMessageEmpty)
		}
		if utf8.RuneCountInString(content.Text) > MaxTextLength {
			return nil, errs.NewError(errs.ErrMessageTooLong, MaxTextLength)
		}
		msg.Text = content.Text

	case model.KindFile:
		file, err := in.prepareFile(ctx, code, msg.ID, content.File)
		if err != nil {
			return nil, err
		}
		msg.File = file

	default:
		return nil, errs.NewError(errs.ErrInvalidParams)
	}

	if err := in.store.AddMessage(ctx, msg); err != nil {
		if msg.File != nil && msg.File.Key != "" {
			if delErr := in.blobs.Delete(context.WithoutCancel(ctx), msg.File.Key); delErr != nil {
				in.log.Warn().Err(delErr).Str("key", msg.File.Key).Msg("Failed to remove orphaned blob")
			}
		}
		return nil, errs.NewError(errs.ErrStorageFailed, err)
	}

	metrics.MessagesPosted.WithLabelValues(string(kind)).Inc()
	in.router.Publish(code, EventNewMessage, msg, "")

	return msg, nil
}

// prepareFile enforces the size limit on both the declared size and the decoded payload,
// then either keeps the payload inline or uploads it to the blob store.
func (in *Ingestor) prepareFile(ctx context.Context, code, msgID string, up *FileUpload) (*model.FileInfo, error) {
	if up == nil {
		return nil, errs.NewError(errs.ErrFileInvalid)
	}
	if up.Size < 0 {
		return nil, errs.NewError(errs.ErrInvalidParams)
	}
	if up.Size > in.maxFileBytes {
		return nil, in.oversized()
	}

	name := filepath.Base(strings.TrimSpace(up.Name))
	if name == "" || name == "." || name == "/" || utf8.RuneCountInString(name) > MaxFileNameLength {
		return nil, errs.NewError(errs.ErrFileInvalid)
	}

	dataType, encoded := splitDataURL(up.Data)
	if encoded == "" {
		return nil, errs.NewError(errs.ErrFileInvalid)
	}

	// DecodedLen over-estimates by at most two bytes of padding.
	if int64(base64.StdEncoding.DecodedLen(len(encoded))) > in.maxFileBytes+2 {
		return nil, in.oversized()
	}

	payload, err := decodeBase64(encoded)
	if err != nil {
		return nil, errs.NewError(errs.ErrFileInvalid)
	}
	if int64(len(payload)) > in.maxFileBytes {
		return nil, in.oversized()
	}

	fileType := strings.TrimSpace(up.Type)
	if fileType == "" {
		fileType = dataType
	}
	if fileType == "" {
		fileType = defaultFileType
	}

	file := &model.FileInfo{
		Name: name,
		Type: fileType,
		Size: int64(len(payload)),
	}

	if in.blobs == nil {
		file.Data = "data:" + fileType + ";base64," + encoded
		return file, nil
	}

	key := BlobKey(code, msgID, name)
	if err := in.blobs.Put(ctx, key, fileType, bytes.NewReader(payload), int64(len(payload))); err != nil {
		return nil, errs.NewError(errs.ErrFileStorageFailed)
	}
	file.Key = key

	return file, nil
}

func (in *Ingestor) oversized() error {
	return errs.NewError(errs.ErrOversizedPayload, in.maxFileBytes/(1024*1024))
}

// BlobKey is the object key of a file message: "<ROOM>/<messageID><ext>".
func BlobKey(code, msgID, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !blobExtPattern.MatchString(ext) {
		ext = ""
	}
	return fmt.Sprintf("%s/%s%s", code, msgID, ext)
}

// splitDataURL returns the media type and base64 payload of a data URL. Input without
// the data: prefix is treated as bare base64.
func splitDataURL(data string) (mediaType, encoded string) {
	data = strings.TrimSpace(data)
	if !strings.HasPrefix(data, "data:") {
		return "", data
	}

	header, payload, ok := strings.Cut(data[len("data:"):], ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return "", ""
	}

	mediaType = strings.TrimSuffix(header, ";base64")
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return mediaType, payload
}

func decodeBase64(encoded string) ([]byte, error) {
	if payload, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		return payload, nil
	}
	return base64.RawStdEncoding.DecodeString(encoded)
}
