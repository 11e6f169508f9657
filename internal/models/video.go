package models

import (
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Video is an uploaded candidate file. Only its name is ever used for
// assessment; the stored blob exists for playback.
type Video struct {
	ID          string
	Filename    string
	StoredName  string
	ContentType string
	Size        int64
	UploadTime  time.Time
}

func NewVideo(filename, storedName, contentType string, size int64) *Video {
	return &Video{
		ID:          uuid.New().String(),
		Filename:    filename,
		StoredName:  storedName,
		ContentType: contentType,
		Size:        size,
		UploadTime:  time.Now(),
	}
}

// DeclaredType returns the media type a client declared for filename,
// falling back to the extension when the header is missing or generic.
func DeclaredType(filename, header string) string {
	contentType := strings.TrimSpace(header)
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if known, ok := videoExtensions[ext]; ok {
		return known
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt
	}
	return contentType
}

// The stdlib table has no video entries unless the host ships mime.types.
var videoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".ogv":  "video/ogg",
}

func IsVideoType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "video/")
}
