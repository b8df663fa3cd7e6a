package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/pkg/helpers"
)

type fakePresigner struct {
	gotKey  string
	gotType string
	gotTTL  time.Duration
	err     error
}

func (f *fakePresigner) PresignPut(_ context.Context, key, contentType string, ttl time.Duration) (string, error) {
	f.gotKey, f.gotType, f.gotTTL = key, contentType, ttl
	if f.err != nil {
		return "", f.err
	}
	return "https://s3.example.com/" + key + "?sig=abc", nil
}

func (f *fakePresigner) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

func TestCreateImageUpload(t *testing.T) {
	objects := &fakePresigner{}
	svc := NewUploadService(objects)

	up, err := svc.CreateImageUpload(helpers.TestCtx(), dto.ImageUploadRequest{FileName: "logo.PNG", ContentType: "Image/PNG"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(up.Key, "images/") || !strings.HasSuffix(up.Key, ".png") {
		t.Errorf("unexpected key %q", up.Key)
	}
	if objects.gotType != "image/png" || objects.gotTTL != uploadURLTTL {
		t.Errorf("unexpected presign args: %s %v", objects.gotType, objects.gotTTL)
	}
	if up.ImageURL != "https://cdn.example.com/"+up.Key {
		t.Errorf("unexpected image url %q", up.ImageURL)
	}
}

func TestCreateImageUpload_RejectsSVG(t *testing.T) {
	objects := &fakePresigner{}

	_, err := NewUploadService(objects).CreateImageUpload(helpers.TestCtx(), dto.ImageUploadRequest{FileName: "logo.svg", ContentType: "image/svg+xml"})

	var ve *errs.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if objects.gotKey != "" {
		t.Errorf("nothing should be presigned, got key %q", objects.gotKey)
	}
}

func TestCreateImageUpload_Errors(t *testing.T) {
	_, err := NewUploadService(&fakePresigner{}).CreateImageUpload(helpers.TestCtx(), dto.ImageUploadRequest{ContentType: "application/pdf"})
	var ve *errs.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}

	_, err = NewUploadService(nil).CreateImageUpload(helpers.TestCtx(), dto.ImageUploadRequest{ContentType: "image/png"})
	var ee *errs.ExternalServiceError
	if !errors.As(err, &ee) {
		t.Errorf("expected ExternalServiceError when unconfigured, got %v", err)
	}

	_, err = NewUploadService(&fakePresigner{err: errors.New("denied")}).CreateImageUpload(helpers.TestCtx(), dto.ImageUploadRequest{ContentType: "image/png"})
	if !errors.As(err, &ee) || !ee.Transient {
		t.Errorf("expected transient ExternalServiceError, got %v", err)
	}
}
