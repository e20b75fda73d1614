// Package publisher uploads normalized photos to public object storage.
package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// DefaultFolder groups every published photo.
const DefaultFolder = "1mfaces"

// Published describes an uploaded asset.
type Published struct {
	URL    string
	ID     string
	Width  int
	Height int
	Format string
}

// Publisher stores image bytes and returns their public location.
type Publisher interface {
	Upload(ctx context.Context, imageBytes []byte, folder string) (*Published, error)
}

// UploadAPI is the slice of the Cloudinary SDK used here.
type UploadAPI interface {
	Upload(ctx context.Context, file interface{}, uploadParams uploader.UploadParams) (*uploader.UploadResult, error)
}

// CloudinaryPublisher uploads through the Cloudinary upload API.
type CloudinaryPublisher struct {
	api UploadAPI
}

// NewCloudinaryPublisher builds a publisher from account credentials.
func NewCloudinaryPublisher(cloudName, apiKey, apiSecret string) (*CloudinaryPublisher, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("configure cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true
	return &CloudinaryPublisher{api: &cld.Upload}, nil
}

// NewPublisherWithAPI wraps an existing upload API.
func NewPublisherWithAPI(api UploadAPI) *CloudinaryPublisher {
	return &CloudinaryPublisher{api: api}
}

func (p *CloudinaryPublisher) Upload(ctx context.Context, imageBytes []byte, folder string) (*Published, error) {
	if folder == "" {
		folder = DefaultFolder
	}
	res, err := p.api.Upload(ctx, bytes.NewReader(imageBytes), uploader.UploadParams{Folder: folder})
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload: %w", err)
	}
	// The SDK reports API-level failures in the result body rather than as an error.
	if res == nil {
		return nil, errors.New("cloudinary upload: empty response")
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	if res.SecureURL == "" {
		return nil, errors.New("cloudinary upload: response has no secure url")
	}
	return &Published{
		URL:    res.SecureURL,
		ID:     res.PublicID,
		Width:  res.Width,
		Height: res.Height,
		Format: res.Format,
	}, nil
}
