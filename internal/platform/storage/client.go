package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/oklog/ulid/v2"

	domain "github.com/pureclean/api/internal/domain"
)

const (
	defaultSignedURLExpiry = 15 * time.Minute
	maxSignedURLExpiry     = time.Hour
	defaultMaxPhotoBytes   = 10 << 20
)

var (
	errNoClient          = errors.New("storage: client is required")
	errInvalidBucket     = errors.New("storage: bucket name is required")
	errInvalidObject     = errors.New("storage: object name is required")
	errNoSigner          = errors.New("storage: signer is required for signed urls")
	errEmptyPhoto        = errors.New("storage: photo payload is empty")
	errPhotoTooLarge     = errors.New("storage: photo exceeds the size limit")
	errContentTypeDenied = errors.New("storage: content type not allowed")
	errExpiryTooLong     = errors.New("storage: expiry exceeds permitted maximum")
)

// PhotoClient stores item photos in a Cloud Storage bucket and issues signed
// download URLs for them.
type PhotoClient struct {
	client       *storage.Client
	bucket       string
	signer       Signer
	allowedTypes []string
	maxBytes     int64
	now          func() time.Time
	newID        func() string
}

// PhotoClientOption customises client behaviour.
type PhotoClientOption func(*PhotoClient)

// WithSigner enables signed download URLs via the given signer.
func WithSigner(signer Signer) PhotoClientOption {
	return func(c *PhotoClient) {
		c.signer = signer
	}
}

// WithMaxPhotoBytes overrides the per-photo size limit.
func WithMaxPhotoBytes(limit int64) PhotoClientOption {
	return func(c *PhotoClient) {
		if limit > 0 {
			c.maxBytes = limit
		}
	}
}

// WithAllowedContentTypes restricts accepted upload content types. Patterns
// like "image/*" are honoured.
func WithAllowedContentTypes(types ...string) PhotoClientOption {
	return func(c *PhotoClient) {
		if len(types) > 0 {
			c.allowedTypes = append([]string(nil), types...)
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) PhotoClientOption {
	return func(c *PhotoClient) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewPhotoClient constructs a photo store over the given bucket.
func NewPhotoClient(client *storage.Client, bucket string, opts ...PhotoClientOption) (*PhotoClient, error) {
	if client == nil {
		return nil, errNoClient
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	pc := &PhotoClient{
		client:       client,
		bucket:       bucket,
		allowedTypes: []string{"image/*"},
		maxBytes:     defaultMaxPhotoBytes,
		now:          time.Now,
		newID:        func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(pc)
		}
	}
	return pc, nil
}

// Upload writes one photo under the session/item prefix and returns its ref.
func (c *PhotoClient) Upload(ctx context.Context, sessionID, itemID, fileName string, data []byte) (domain.PhotoRef, error) {
	if c == nil || c.client == nil {
		return domain.PhotoRef{}, errNoClient
	}
	if len(data) == 0 {
		return domain.PhotoRef{}, errEmptyPhoto
	}
	if int64(len(data)) > c.maxBytes {
		return domain.PhotoRef{}, errPhotoTooLarge
	}
	contentType := http.DetectContentType(data)
	if !contentTypeAllowed(contentType, c.allowedTypes) {
		return domain.PhotoRef{}, fmt.Errorf("%w: %s", errContentTypeDenied, contentType)
	}

	id := c.newID()
	object := photoObjectName(sessionID, itemID, id, fileName)

	writer := c.client.Bucket(c.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return domain.PhotoRef{}, fmt.Errorf("storage: write photo: %w", err)
	}
	if err := writer.Close(); err != nil {
		return domain.PhotoRef{}, fmt.Errorf("storage: finalise photo: %w", err)
	}

	return domain.PhotoRef{
		ID:         id,
		ObjectName: object,
		UploadedAt: c.now().UTC(),
	}, nil
}

// SignedURL issues a time-limited download URL for a stored photo.
func (c *PhotoClient) SignedURL(ctx context.Context, ref domain.PhotoRef, ttl time.Duration) (string, error) {
	if c == nil || c.client == nil {
		return "", errNoClient
	}
	if c.signer == nil || strings.TrimSpace(c.signer.Email()) == "" {
		return "", errNoSigner
	}
	object := strings.TrimSpace(ref.ObjectName)
	if object == "" {
		return "", errInvalidObject
	}
	if ttl <= 0 {
		ttl = defaultSignedURLExpiry
	}
	if ttl > maxSignedURLExpiry {
		return "", errExpiryTooLong
	}

	opts := &storage.SignedURLOptions{
		GoogleAccessID: c.signer.Email(),
		Scheme:         storage.SigningSchemeV4,
		Method:         http.MethodGet,
		Expires:        c.now().Add(ttl),
		SignBytes: func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		},
	}
	signedURL, err := storage.SignedURL(c.bucket, object, opts)
	if err != nil {
		return "", fmt.Errorf("storage: sign download url: %w", err)
	}
	return signedURL, nil
}

// Delete removes a stored photo. Missing objects are not an error so retried
// cleanups stay idempotent.
func (c *PhotoClient) Delete(ctx context.Context, ref domain.PhotoRef) error {
	if c == nil || c.client == nil {
		return errNoClient
	}
	object := strings.TrimSpace(ref.ObjectName)
	if object == "" {
		return errInvalidObject
	}
	err := c.client.Bucket(c.bucket).Object(object).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: delete photo: %w", err)
	}
	return nil
}

func photoObjectName(sessionID, itemID, photoID, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return fmt.Sprintf("sessions/%s/items/%s/%s%s",
		sanitizeSegment(sessionID), sanitizeSegment(itemID), photoID, ext)
}

func sanitizeSegment(segment string) string {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range segment {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

func contentTypeAllowed(contentType string, allowed []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	for _, candidate := range allowed {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		if candidate == "*" {
			return true
		}
		if strings.HasSuffix(candidate, "/*") {
			prefix := strings.TrimSuffix(candidate, "*")
			if strings.HasPrefix(normalized, strings.TrimSuffix(prefix, "/")) {
				return true
			}
			continue
		}
		if normalized == candidate {
			return true
		}
	}
	return false
}
