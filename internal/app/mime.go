package app

import (
	"log"
	"mime"
)

// Photo and export types served from /uploads and the export action.
func init() {
	ensureMimeType(".mp4", "video/mp4")
	ensureMimeType(".mov", "video/quicktime")
	ensureMimeType(".avi", "video/x-msvideo")
	ensureMimeType(".xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		log.Printf("app: failed to register MIME type for %s: %v", ext, err)
	}
}
