// internal/interfaces/http/middleware/idempotency.go
package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// IdempotencyHeader is the client supplied key for safely retried writes
const IdempotencyHeader = "Idempotency-Key"

const (
	defaultIdempotencyTTL = 24 * time.Hour

	// inFlightMarker holds a key while its first request runs
	inFlightMarker = "in_progress"
	inFlightTTL    = 2 * time.Minute
)

type idempotencyRecord struct {
	Status      int    `json:"status"`
	Body        string `json:"body"`
	ContentType string `json:"content_type,omitempty"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the stored response when a request is retried with the
// same Idempotency-Key. Reusing a key with a different body is a conflict, and
// so is a retry that arrives while the first request is still running.
// Requests without the header pass through untouched. Only 2xx responses are stored.
func Idempotency(rdb redis.Cmdable, ttl time.Duration, logger *logrus.Entry) gin.HandlerFunc {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}

	return func(c *gin.Context) {
		idemKey := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
		if idemKey == "" || rdb == nil {
			c.Next()
			return
		}
		if len(idemKey) > 128 {
			RespondError(c, apperrors.New(apperrors.CodeValidation, "Idempotency-Key must be at most 128 characters"))
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			RespondError(c, apperrors.Wrap(apperrors.CodeValidation, err, "failed to read request body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		requestHash := hashBody(body)
		key := idempotencyKey(c, idemKey)

		claimed, err := rdb.SetNX(ctx, key, inFlightMarker, inFlightTTL).Result()
		if err != nil {
			RespondError(c, apperrors.Wrap(apperrors.CodeDependency, err, "failed to check idempotency key"))
			return
		}
		if !claimed {
			replayStored(c, rdb, key, requestHash)
			return
		}

		// the claim is released unless a 2xx response replaces it, including on panic
		stored := false
		defer func() {
			if stored {
				return
			}
			if err := rdb.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
				logger.WithError(err).WithField("request_id", c.GetString(ContextRequestID)).Warn("failed to release idempotency key")
			}
		}()

		capture := &responseCapture{ResponseWriter: c.Writer}
		c.Writer = capture
		c.Next()

		status := capture.Status()
		if status < 200 || status >= 300 {
			return
		}

		payload, err := json.Marshal(idempotencyRecord{
			Status:      status,
			Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
			ContentType: capture.Header().Get("Content-Type"),
			RequestHash: requestHash,
		})
		if err != nil {
			logger.WithError(err).Error("failed to encode idempotency record")
			return
		}
		if err := rdb.Set(context.WithoutCancel(ctx), key, payload, ttl).Err(); err != nil {
			logger.WithError(err).WithField("request_id", c.GetString(ContextRequestID)).Warn("failed to persist idempotency record")
			return
		}
		stored = true
	}
}

// replayStored answers a request whose key is already claimed: 409 while the
// first request is running, the stored response once it has finished.
func replayStored(c *gin.Context, rdb redis.Cmdable, key, requestHash string) {
	stored, err := rdb.Get(c.Request.Context(), key).Result()
	if errors.Is(err, redis.Nil) {
		RespondError(c, apperrors.New(apperrors.CodeIdempotency, "the previous request with this Idempotency-Key failed, retry it"))
		return
	}
	if err != nil {
		RespondError(c, apperrors.Wrap(apperrors.CodeDependency, err, "failed to check idempotency key"))
		return
	}
	if stored == inFlightMarker {
		RespondError(c, apperrors.New(apperrors.CodeIdempotency, "a request with this Idempotency-Key is already in progress"))
		return
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		RespondError(c, apperrors.Wrap(apperrors.CodeDependency, err, "failed to decode idempotency record"))
		return
	}
	if record.RequestHash != requestHash {
		RespondError(c, apperrors.New(apperrors.CodeIdempotency, "idempotency key reused with a different request body"))
		return
	}
	replay(c, record)
}

// idempotencyKey scopes the client key to the caller and the endpoint
func idempotencyKey(c *gin.Context, key string) string {
	owner := "anon"
	if userID, ok := GetUserIDFromContext(c); ok {
		owner = fmt.Sprintf("user:%d", userID)
	} else if session := SessionIDFromContext(c); session != "" {
		owner = "session:" + session
	}
	return fmt.Sprintf("idempotency:%s:%s:%s:%s", owner, c.Request.Method, c.Request.URL.Path, key)
}

func replay(c *gin.Context, record idempotencyRecord) {
	decoded, err := base64.StdEncoding.DecodeString(record.Body)
	if err != nil {
		RespondError(c, apperrors.Wrap(apperrors.CodeDependency, err, "failed to decode idempotency record"))
		return
	}
	contentType := record.ContentType
	if contentType == "" {
		contentType = "application/json; charset=utf-8"
	}
	c.Header("Idempotent-Replayed", "true")
	c.Data(record.Status, contentType, decoded)
	c.Abort()
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

type responseCapture struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (r *responseCapture) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) WriteString(s string) (int, error) {
	r.body.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

var _ http.ResponseWriter = (*responseCapture)(nil)
