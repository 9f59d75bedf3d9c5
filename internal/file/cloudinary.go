package file

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type FileUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func New(cloudName, apiKey, apiSecret, folder string) (*FileUploader, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}

	return &FileUploader{
		cld:    cld,
		folder: folder,
	}, nil
}

func (f *FileUploader) Upload(ctx context.Context, objectName string, r io.Reader, _ int64, _ string) (string, error) {
	publicID := strings.TrimSuffix(objectName, path.Ext(objectName))

	uploadResult, err := f.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:     publicID,
		Folder:       f.folder,
		ResourceType: "auto",
	})
	if err != nil {
		return "", err
	}

	return uploadResult.SecureURL, nil
}
