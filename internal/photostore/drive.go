// Package photostore lists and downloads photos from a Google Drive folder
// using a service account with read-only scope.
package photostore

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/fpang/autopost/internal/media"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	listPageSize   = 50
)

// ImageMimeTypes are the Drive MIME types listed as photos.
var ImageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/heic": true,
}

// Photo is one image file in the folder.
type Photo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MimeType    string `json:"mimeType"`
	CreatedTime string `json:"createdTime"`
}

// Folder identifies a Drive folder.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Drive is the Google Drive photo store.
type Drive struct {
	svc *drive.Service
}

// LoadCredentials returns service-account JSON from the inline value if
// set, otherwise from the file path.
func LoadCredentials(inlineJSON, filePath string) ([]byte, error) {
	if strings.TrimSpace(inlineJSON) != "" {
		return []byte(inlineJSON), nil
	}
	if filePath == "" {
		return nil, fmt.Errorf("Google service account not configured: set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE")
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// NewDrive builds a Drive client from service-account JSON.
func NewDrive(ctx context.Context, credentialsJSON []byte) (*Drive, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	return NewDriveWithOptions(ctx, option.WithCredentials(creds))
}

// NewDriveWithOptions builds a Drive client from raw client options.
func NewDriveWithOptions(ctx context.Context, opts ...option.ClientOption) (*Drive, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Drive{svc: svc}, nil
}

// ListPhotos returns the image files directly inside folderID, newest first.
func (d *Drive) ListPhotos(ctx context.Context, folderID string) ([]Photo, error) {
	start := time.Now()
	q := fmt.Sprintf("'%s' in parents and mimeType != '%s' and trashed = false",
		escapeQuery(folderID), folderMimeType)

	var photos []Photo
	err := d.svc.Files.List().
		Q(q).
		OrderBy("createdTime desc").
		PageSize(listPageSize).
		Fields("nextPageToken, files(id, name, mimeType, createdTime)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				if !ImageMimeTypes[f.MimeType] {
					continue
				}
				photos = append(photos, Photo{
					ID:          f.Id,
					Name:        f.Name,
					MimeType:    f.MimeType,
					CreatedTime: f.CreatedTime,
				})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list folder %s: %w", folderID, err)
	}

	log.Debug().
		Str("folderId", folderID).
		Int("photos", len(photos)).
		Dur("duration", time.Since(start)).
		Msg("Drive folder listed")
	return photos, nil
}

// DownloadPhoto returns the full file bytes and MIME type.
func (d *Drive) DownloadPhoto(ctx context.Context, fileID string) ([]byte, string, error) {
	meta, err := d.svc.Files.Get(fileID).
		Fields("id, name, mimeType").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, "", fmt.Errorf("get metadata %s: %w", fileID, err)
	}

	resp, err := d.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", fileID, err)
	}

	mimeType := meta.MimeType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = media.DetectMIME(data)
	}
	log.Debug().Str("fileId", fileID).Int("bytes", len(data)).Str("mimeType", mimeType).Msg("Photo downloaded")
	return data, mimeType, nil
}

// DownloadPhotoHeader returns at most the first size bytes of a file using
// a Range request. Servers that ignore Range still only get read up to size.
func (d *Drive) DownloadPhotoHeader(ctx context.Context, fileID string, size int) ([]byte, error) {
	call := d.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx)
	call.Header().Set("Range", fmt.Sprintf("bytes=0-%d", size-1))

	resp, err := call.Download()
	if err != nil {
		return nil, fmt.Errorf("download header %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(size)))
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", fileID, err)
	}
	return data, nil
}

// FolderInfo returns the folder's id and name, failing if the id is not a folder.
func (d *Drive) FolderInfo(ctx context.Context, folderID string) (Folder, error) {
	f, err := d.svc.Files.Get(folderID).
		Fields("id, name, mimeType").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return Folder{}, fmt.Errorf("get folder %s: %w", folderID, err)
	}
	if f.MimeType != folderMimeType {
		return Folder{}, fmt.Errorf("%s is not a folder (mimeType %s)", folderID, f.MimeType)
	}
	return Folder{ID: f.Id, Name: f.Name}, nil
}

// escapeQuery escapes a value for use inside a single-quoted Drive query string.
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
