// internal/adapters/out/gcs/logo_uploader_gcs.go
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	issuanceapp "tokenissuer/internal/application/issuance"
)

// ロゴは 5MB まで
const MaxLogoBytes = 5 << 20

// LogoUploaderGCS はフォームで添付されたロゴを公開バケットに置き、公開 URL を返す。
type LogoUploaderGCS struct {
	Client *storage.Client
	Bucket string

	newID func() string
}

var _ issuanceapp.LogoStore = (*LogoUploaderGCS)(nil)

var ErrLogoTooLarge = errors.New("logo exceeds size limit")

func NewLogoUploaderGCS(client *storage.Client, bucket string) *LogoUploaderGCS {
	return &LogoUploaderGCS{
		Client: client,
		Bucket: strings.TrimSpace(bucket),
		newID:  uuid.NewString,
	}
}

func (u *LogoUploaderGCS) UploadLogo(ctx context.Context, fileName, contentType string, r io.Reader) (string, error) {
	if u == nil || u.Client == nil {
		return "", errors.New("LogoUploaderGCS: nil storage client")
	}
	if u.Bucket == "" {
		return "", errors.New("LogoUploaderGCS: bucket is empty (set LOGO_BUCKET)")
	}

	objectPath := logoObjectPath(u.newID(), fileName, contentType)

	w := u.Client.Bucket(u.Bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = contentTypeOrDefault(contentType)
	w.CacheControl = "public, max-age=31536000"

	n, err := io.Copy(w, io.LimitReader(r, MaxLogoBytes+1))
	if err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload logo: %w", err)
	}
	if n > MaxLogoBytes {
		// Close せずに ctx を捨てると書き込みが破棄される。ここでは明示的に削除する
		_ = w.Close()
		_ = u.Client.Bucket(u.Bucket).Object(objectPath).Delete(ctx)
		return "", ErrLogoTooLarge
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload logo: %w", err)
	}

	url := PublicURL(u.Bucket, objectPath)
	log.Printf("[logo_uploader_gcs] uploaded bucket=%s object=%s bytes=%d", u.Bucket, objectPath, n)
	return url, nil
}

// PublicURL builds a public GCS URL.
func PublicURL(bucket, objectPath string) string {
	obj := strings.TrimLeft(strings.TrimSpace(objectPath), "/")
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", strings.TrimSpace(bucket), obj)
}

// logoObjectPath は "logos/{id}{ext}"。拡張子はファイル名、無ければ Content-Type から決める。
func logoObjectPath(id, fileName, contentType string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(fileName)))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg":
	default:
		ext = extFromContentType(contentType)
	}
	return "logos/" + id + ext
}

func extFromContentType(ct string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0])) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	default:
		return ""
	}
}

func contentTypeOrDefault(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
