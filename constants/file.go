package constants

import "strings"

// Format is the coarse family a file extension belongs to.
type Format string

const (
	PDF   Format = "PDF"
	IMAGE Format = "IMAGE"
	TEXT  Format = "TEXT"
	HTML  Format = "HTML"
	OTHER Format = "OTHER"
)

// SupportedExtensions are the extensions the pipeline routes (lowercase, without '.').
var SupportedExtensions = map[string]struct{}{
	"pdf":  {},
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"tif":  {},
	"tiff": {},
	"bmp":  {},
	"webp": {},
	"heic": {},
	"heif": {},
	"txt":  {},
	"md":   {},
	"csv":  {},
	"text": {},
	"html": {},
	"htm":  {},
}

var imageExtensions = map[string]struct{}{
	"png": {}, "jpg": {}, "jpeg": {}, "tif": {}, "tiff": {},
	"bmp": {}, "webp": {}, "heic": {}, "heif": {},
}

var textExtensions = map[string]struct{}{
	"txt": {}, "md": {}, "csv": {}, "text": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsSupportedExt reports whether ext (with or without '.') is routed by the pipeline.
func IsSupportedExt(ext string) bool {
	_, ok := SupportedExtensions[NormalizeExt(ext)]
	return ok
}

// IsHEICExt reports whether ext needs a HEIC/HEIF conversion before OCR.
func IsHEICExt(ext string) bool {
	e := NormalizeExt(ext)
	return e == "heic" || e == "heif"
}

// MapExtToFormat maps an extension (with or without '.') to its Format.
func MapExtToFormat(ext string) Format {
	e := NormalizeExt(ext)
	if e == "pdf" {
		return PDF
	}
	if _, ok := imageExtensions[e]; ok {
		return IMAGE
	}
	if _, ok := textExtensions[e]; ok {
		return TEXT
	}
	if e == "html" || e == "htm" {
		return HTML
	}
	return OTHER
}
