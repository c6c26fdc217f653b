package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Cloudinary stores images in a Cloudinary folder, keyed by public id.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinary(cloudName, apiKey, apiSecret, folder string) (*Cloudinary, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, errors.New("cloudinary credentials are incomplete")
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary client: %w", err)
	}
	return &Cloudinary{cld: cld, folder: folder}, nil
}

func (c *Cloudinary) Put(ctx context.Context, key, _ string, data []byte) (string, error) {
	resp, err := c.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID: key,
		Folder:   c.folder,
	})
	if err != nil {
		return "", err
	}
	if resp.Error.Message != "" {
		return "", errors.New(resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return "", errors.New("cloudinary returned no url")
	}
	return resp.SecureURL, nil
}

func (c *Cloudinary) Delete(ctx context.Context, key string) error {
	publicID := key
	if c.folder != "" {
		publicID = c.folder + "/" + key
	}
	resp, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return err
	}
	if resp.Result != "ok" {
		return fmt.Errorf("destroy %s: result %q", publicID, resp.Result)
	}
	return nil
}
