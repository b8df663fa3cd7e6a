package services

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/pkg/logger"
)

const uploadURLTTL = 15 * time.Minute

// SVG is left out: uploads are served from a public bucket and an SVG can
// carry script.
var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type objectPresigner interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	PublicURL(key string) string
}

type uploadService struct {
	objects objectPresigner
	now     func() time.Time
}

func NewUploadService(objects objectPresigner) *uploadService {
	return &uploadService{objects: objects, now: time.Now}
}

// CreateImageUpload returns a presigned PUT URL for an image tile asset
// and the URL the tile should reference once the upload is done.
func (s *uploadService) CreateImageUpload(ctx context.Context, req dto.ImageUploadRequest) (dto.ImageUpload, error) {
	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	ext, ok := imageExtensions[contentType]
	if !ok {
		return dto.ImageUpload{}, errs.NewValidationError("unsupported image content type")
	}
	if s.objects == nil {
		return dto.ImageUpload{}, errs.NewExternalServiceError("object storage", "image uploads are not configured", false, nil)
	}

	key := path.Join("images", uuid.NewString()+ext)
	uploadURL, err := s.objects.PresignPut(ctx, key, contentType, uploadURLTTL)
	if err != nil {
		return dto.ImageUpload{}, errs.NewExternalServiceError("object storage", "failed to presign upload", true, err)
	}

	logger.FromContext(ctx).Info("image upload presigned", "key", key, "file_name", req.FileName)
	return dto.ImageUpload{
		UploadURL: uploadURL,
		ImageURL:  s.objects.PublicURL(key),
		Key:       key,
		ExpiresAt: s.now().Add(uploadURLTTL),
	}, nil
}
