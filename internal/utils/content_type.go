package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

// photo types not every platform's mime table knows
var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
}

// DetectContentType returns the upload content type for an object key.
func DetectContentType(key string) string {
	ext := strings.ToLower(filepath.Ext(key))
	if t, ok := imageTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
