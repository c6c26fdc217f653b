package imagestore

import (
	"fmt"

	"storefront/config"
)

// NewBackend builds the blob backend selected by cfg.ImageBackend.
func NewBackend(cfg *config.Config) (Backend, error) {
	switch cfg.ImageBackend {
	case config.BackendCloudinary:
		return NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	case config.BackendDisk:
		return NewDisk(cfg.UploadDir, cfg.PublicBaseURL)
	}
	return nil, fmt.Errorf("unknown image backend %q", cfg.ImageBackend)
}
