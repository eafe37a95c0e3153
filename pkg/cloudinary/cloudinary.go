package cloudinary

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// Client uploads chat attachments.
type Client interface {
	UploadImage(ctx context.Context, file io.Reader, folder, publicID string) (*UploadResult, error)
	UploadDocument(ctx context.Context, file io.Reader, folder, publicID string) (*UploadResult, error)
}

type UploadResult struct {
	URL          string
	ThumbnailURL string
	PublicID     string
	Bytes        int
}

const (
	ImageWidth = 1280
	ThumbWidth = 200
)

// Eager transformation applied to every uploaded image.
const imageEager = "q_auto,f_auto,w_1280,c_limit"

var eagerAsyncFalse = false

// BuildOptimizedImageURL returns a delivery URL resized to width.
func BuildOptimizedImageURL(cloudName, publicID string, width int) string {
	if width <= 0 {
		width = ImageWidth
	}
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/q_auto,f_auto,w_%d,c_fill/%s",
		cloudName, width, publicID)
}

type clientImpl struct {
	cloudName string
	uploader  *uploader.API
}

// UploadImage uploads an image with an eager optimized rendition and returns a thumbnail URL.
func (c *clientImpl) UploadImage(ctx context.Context, file io.Reader, folder, publicID string) (*UploadResult, error) {
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:     folder,
		PublicID:   publicID,
		Eager:      imageEager,
		EagerAsync: &eagerAsyncFalse,
	})
	if err != nil {
		return nil, err
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary: %s", result.Error.Message)
	}
	return &UploadResult{
		URL:          result.SecureURL,
		ThumbnailURL: BuildOptimizedImageURL(c.cloudName, result.PublicID, ThumbWidth),
		PublicID:     result.PublicID,
		Bytes:        result.Bytes,
	}, nil
}

// UploadDocument stores the file as a raw resource so it is served unchanged.
func (c *clientImpl) UploadDocument(ctx context.Context, file io.Reader, folder, publicID string) (*UploadResult, error) {
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: "raw",
	})
	if err != nil {
		return nil, err
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary: %s", result.Error.Message)
	}
	return &UploadResult{
		URL:      result.SecureURL,
		PublicID: result.PublicID,
		Bytes:    result.Bytes,
	}, nil
}

// NewClientFromParams builds a Client from Cloudinary cloud name, API key, and secret.
func NewClientFromParams(cloudName, apiKey, apiSecret string) (Client, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &clientImpl{
		cloudName: cloudName,
		uploader:  up,
	}, nil
}
