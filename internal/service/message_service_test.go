package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"chatzam/internal/auth"
	"chatzam/internal/crypto"
	"chatzam/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend(t *testing.T) {
	session := auth.Session{UserID: "alice"}

	t.Run("applies optimistically and confirms on success", func(t *testing.T) {
		var persisted *models.Message
		msgRepo := &stubMessageRepo{
			CreateFn: func(ctx context.Context, msg *models.Message) error {
				persisted = msg
				return nil
			},
		}
		svc := NewMessageService(msgRepo, &stubConversationRepo{}, &stubBlobStore{}, nil)
		tl := NewTimeline()

		results, err := svc.Send(context.Background(), session, tl, SendInput{
			ConversationID: "c1",
			Content:        "hello",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, tl.Len(), "message must be visible before the write completes")

		res := <-results
		require.NoError(t, res.Err)
		assert.NotEmpty(t, res.MessageID)

		require.NotNil(t, persisted)
		assert.Equal(t, "alice", persisted.SenderID)
		assert.Equal(t, models.MessageText, persisted.Kind)
		assert.NotEmpty(t, persisted.ClientID)
		assert.Equal(t, 1, tl.Len())
	})

	t.Run("rolls the timeline back on write failure", func(t *testing.T) {
		boom := errors.New("store down")
		msgRepo := &stubMessageRepo{
			CreateFn: func(ctx context.Context, msg *models.Message) error {
				return boom
			},
		}
		svc := NewMessageService(msgRepo, &stubConversationRepo{}, &stubBlobStore{}, nil)
		tl := NewTimeline()
		tl.Apply(tlMessage("existing", "c0", "already here"))

		results, err := svc.Send(context.Background(), session, tl, SendInput{
			ConversationID: "c1",
			Content:        "doomed",
		})
		require.NoError(t, err)

		res := <-results
		require.ErrorIs(t, res.Err, boom)

		msgs := tl.Messages()
		require.Len(t, msgs, 1, "failed send must vanish")
		assert.Equal(t, "existing", msgs[0].ID)
	})

	t.Run("updates the conversation preview on success", func(t *testing.T) {
		var fields map[string]any
		convRepo := &stubConversationRepo{
			UpdateFieldsFn: func(ctx context.Context, id string, f map[string]any) error {
				fields = f
				return nil
			},
		}
		svc := NewMessageService(&stubMessageRepo{}, convRepo, &stubBlobStore{}, nil)

		results, err := svc.Send(context.Background(), session, NewTimeline(), SendInput{
			ConversationID: "c1",
			Content:        "latest words",
		})
		require.NoError(t, err)
		<-results

		require.NotNil(t, fields)
		assert.Equal(t, "latest words", fields["last_message"])
		assert.IsType(t, time.Time{}, fields["last_message_timestamp"])
	})

	t.Run("preview failure does not fail the send", func(t *testing.T) {
		convRepo := &stubConversationRepo{
			UpdateFieldsFn: func(ctx context.Context, id string, f map[string]any) error {
				return errors.New("preview write refused")
			},
		}
		svc := NewMessageService(&stubMessageRepo{}, convRepo, &stubBlobStore{}, nil)

		results, err := svc.Send(context.Background(), session, NewTimeline(), SendInput{
			ConversationID: "c1",
			Content:        "hello",
		})
		require.NoError(t, err)
		res := <-results
		assert.NoError(t, res.Err)
	})

	t.Run("rejects empty payload synchronously", func(t *testing.T) {
		svc := NewMessageService(&stubMessageRepo{}, &stubConversationRepo{}, &stubBlobStore{}, nil)
		tl := NewTimeline()

		_, err := svc.Send(context.Background(), session, tl, SendInput{
			ConversationID: "c1",
			Content:        "   ",
		})
		assert.True(t, models.IsValidation(err))
		assert.Zero(t, tl.Len(), "nothing must be applied")
	})

	t.Run("rejects missing session", func(t *testing.T) {
		svc := NewMessageService(&stubMessageRepo{}, &stubConversationRepo{}, &stubBlobStore{}, nil)
		_, err := svc.Send(context.Background(), auth.Session{}, NewTimeline(), SendInput{
			ConversationID: "c1",
			Content:        "hello",
		})
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, models.CodeUnauthorized, appErr.Code)
	})
}

func TestSendEncrypted(t *testing.T) {
	session := auth.Session{UserID: "alice"}

	t.Run("ciphertext round-trips with the conversation key", func(t *testing.T) {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)

		var persisted *models.Message
		msgRepo := &stubMessageRepo{
			CreateFn: func(ctx context.Context, msg *models.Message) error {
				persisted = msg
				return nil
			},
		}
		convRepo := &stubConversationRepo{
			GetOrCreateEncryptionKeyFn: func(ctx context.Context, id string) (string, error) {
				return key, nil
			},
		}
		svc := NewMessageService(msgRepo, convRepo, &stubBlobStore{}, nil)
		chats := NewChatService(convRepo, &stubUserRepo{}, nil)

		results, err := svc.SendEncrypted(context.Background(), session, NewTimeline(), SendInput{
			ConversationID: "c1",
			Content:        "secret plans",
		}, chats)
		require.NoError(t, err)
		res := <-results
		require.NoError(t, res.Err)

		require.NotNil(t, persisted)
		assert.True(t, persisted.Encrypted)
		assert.NotEqual(t, "secret plans", persisted.Content)
		assert.Contains(t, persisted.Content, ":")

		plain, err := svc.Decrypt(context.Background(), *persisted, chats)
		require.NoError(t, err)
		assert.Equal(t, "secret plans", plain)
	})

	t.Run("key failure aborts before the timeline", func(t *testing.T) {
		convRepo := &stubConversationRepo{
			GetOrCreateEncryptionKeyFn: func(ctx context.Context, id string) (string, error) {
				return "", models.NewRemoteError("load key", errors.New("unavailable"))
			},
		}
		svc := NewMessageService(&stubMessageRepo{}, convRepo, &stubBlobStore{}, nil)
		chats := NewChatService(convRepo, &stubUserRepo{}, nil)
		tl := NewTimeline()

		_, err := svc.SendEncrypted(context.Background(), session, tl, SendInput{
			ConversationID: "c1",
			Content:        "secret",
		}, chats)
		assert.True(t, models.IsRemote(err))
		assert.Zero(t, tl.Len())
	})
}

func TestSendMedia(t *testing.T) {
	session := auth.Session{UserID: "alice"}

	t.Run("uploads then sends with the stored url", func(t *testing.T) {
		var uploadedPath string
		blobs := &stubBlobStore{
			UploadFn: func(ctx context.Context, r io.Reader, path string) (string, error) {
				uploadedPath = path
				return "https://blobs.test/" + path, nil
			},
		}
		var persisted *models.Message
		msgRepo := &stubMessageRepo{
			CreateFn: func(ctx context.Context, msg *models.Message) error {
				persisted = msg
				return nil
			},
		}
		svc := NewMessageService(msgRepo, &stubConversationRepo{}, blobs, nil)

		results, err := svc.SendMedia(context.Background(), session, NewTimeline(), "c1",
			models.MessageImage, "beach", strings.NewReader("jpegbytes"))
		require.NoError(t, err)
		res := <-results
		require.NoError(t, res.Err)

		assert.True(t, strings.HasPrefix(uploadedPath, "media/image/"))
		require.NotNil(t, persisted)
		assert.Equal(t, models.MessageImage, persisted.Kind)
		assert.Equal(t, "https://blobs.test/"+uploadedPath, persisted.MediaURL)
		assert.Equal(t, "beach", persisted.Content)
	})

	t.Run("upload failure aborts before the timeline", func(t *testing.T) {
		blobs := &stubBlobStore{
			UploadFn: func(ctx context.Context, r io.Reader, path string) (string, error) {
				return "", errors.New("disk full")
			},
		}
		svc := NewMessageService(&stubMessageRepo{}, &stubConversationRepo{}, blobs, nil)
		tl := NewTimeline()

		_, err := svc.SendMedia(context.Background(), session, tl, "c1",
			models.MessageImage, "", strings.NewReader("bytes"))
		assert.True(t, models.IsRemote(err))
		assert.Zero(t, tl.Len())
	})

	t.Run("rejects non-media kinds", func(t *testing.T) {
		svc := NewMessageService(&stubMessageRepo{}, &stubConversationRepo{}, &stubBlobStore{}, nil)
		_, err := svc.SendMedia(context.Background(), session, NewTimeline(), "c1",
			models.MessageText, "", strings.NewReader("bytes"))
		assert.True(t, models.IsValidation(err))
	})
}

func TestMarkReadImpliesDelivered(t *testing.T) {
	var readID string
	msgRepo := &stubMessageRepo{
		MarkReadFn: func(ctx context.Context, messageID string) error {
			readID = messageID
			return nil
		},
	}
	svc := NewMessageService(msgRepo, &stubConversationRepo{}, &stubBlobStore{}, nil)

	require.NoError(t, svc.MarkRead(context.Background(), "m1"))
	assert.Equal(t, "m1", readID)
}
