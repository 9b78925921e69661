package app

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

var imageExt = map[string]string{
	"image/jpeg":               "jpg",
	"image/png":                "png",
	"image/gif":                "gif",
	"image/webp":               "webp",
	"image/avif":               "avif",
	"image/x-icon":             "ico",
	"image/vnd.microsoft.icon": "ico",
}

// imageType resolves the content type of an upload from its declared type,
// then its extension, then its first bytes. Only raster types in imageExt
// are accepted.
func imageType(filename, declared string, head []byte) (string, bool) {
	for _, ct := range []string{
		baseType(declared),
		baseType(mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))),
		baseType(http.DetectContentType(head)),
	} {
		if _, ok := imageExt[ct]; ok {
			return ct, true
		}
	}
	return "", false
}

func baseType(ct string) string {
	if ct == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return ""
}

// extension follows the resolved content type, never the client filename.
func extension(contentType string) string {
	if ext, ok := imageExt[contentType]; ok {
		return ext
	}
	return "bin"
}

// titleFromFilename is the part of the base name before its first dot.
func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return strings.TrimSpace(base)
}
