package constants

import "strings"

// Source formats understood by the extraction stage.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
	CSV   = "CSV"
	TXT   = "TXT"
)

// AllowedExtensions holds the file extensions accepted at the upload boundary.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"bmp":  {},
	"webp": {},
	"heic": {},
	"heif": {},
	"csv":  {},
	"txt":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapExtToFormat returns the source format for a normalized extension, or "".
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "tif", "tiff", "bmp", "webp", "heic", "heif":
		return IMAGE
	case "csv":
		return CSV
	case "txt":
		return TXT
	default:
		return ""
	}
}

// IsHEIC reports whether an image needs converting before OCR.
func IsHEIC(ext string) bool {
	switch NormalizeExt(ext) {
	case "heic", "heif":
		return true
	}
	return false
}

// FormatFromHint resolves the format from an extension, falling back to a MIME hint.
func FormatFromHint(ext, contentType string) string {
	if f := MapExtToFormat(ext); f != "" {
		return f
	}
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "csv"):
		return CSV
	case strings.Contains(ct, "pdf"):
		return PDF
	case strings.HasPrefix(ct, "image/"):
		return IMAGE
	case strings.HasPrefix(ct, "text/"):
		return TXT
	}
	return ""
}
