package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gabriel-vasile/mimetype"

	"storyhub/pkg/models"
)

// UploadRoot is the only directory blobs may be written under
const UploadRoot = "uploads"

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// BlobStore stores uploaded images and returns the URL they are served from
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader) (string, error)
}

// SniffImage detects the content type of data and rejects anything but the accepted image formats
func SniffImage(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	for _, allowed := range allowedImageTypes {
		if mt.Is(allowed) {
			return allowed, nil
		}
	}
	return "", fmt.Errorf("%s: %w", mt.String(), models.ErrUnsupportedMedia)
}

// CleanKey validates a client supplied storage path such as uploads/s_1/cover.jpg
func CleanKey(key string) (string, error) {
	key = strings.TrimPrefix(strings.ReplaceAll(key, "\\", "/"), "/")
	cleaned := path.Clean(key)
	if cleaned == "." || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", models.ErrInvalidPath
	}
	if !strings.HasPrefix(cleaned, UploadRoot+"/") {
		return "", fmt.Errorf("%w: must be under %s/", models.ErrInvalidPath, UploadRoot)
	}
	return cleaned, nil
}

func readImage(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if _, err := SniffImage(data); err != nil {
		return nil, err
	}
	return data, nil
}

// LocalBlobStore writes blobs below root and serves them from baseURL
type LocalBlobStore struct {
	root    string
	baseURL string
}

// NewLocalBlobStore. An empty baseURL yields relative URLs ("uploads/...").
func NewLocalBlobStore(root, baseURL string) *LocalBlobStore {
	return &LocalBlobStore{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (s *LocalBlobStore) Put(ctx context.Context, key string, body io.Reader) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	data, err := readImage(body)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store %s: %w", key, err)
	}

	if s.baseURL == "" {
		return key, nil
	}
	return s.baseURL + "/" + key, nil
}

// CloudinaryBlobStore uploads to Cloudinary. The storage key becomes the public id.
type CloudinaryBlobStore struct {
	client *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryBlobStore builds a store from account credentials
func NewCloudinaryBlobStore(cloud, key, secret, folder string) (*CloudinaryBlobStore, error) {
	client, err := cloudinary.NewFromParams(cloud, key, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to configure cloudinary: %w", err)
	}
	return &CloudinaryBlobStore{client: client, folder: folder}, nil
}

func (s *CloudinaryBlobStore) Put(ctx context.Context, key string, body io.Reader) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	data, err := readImage(body)
	if err != nil {
		return "", err
	}

	publicID := strings.TrimSuffix(key, path.Ext(key))
	resp, err := s.client.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID: publicID,
		Folder:   s.folder,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("failed to upload %s: %s", key, resp.Error.Message)
	}
	return resp.SecureURL, nil
}
