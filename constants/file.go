package constants

import "strings"

// Format is the extraction strategy family selected from a file extension.
type Format string

const (
	PDF         Format = "PDF"
	DOCX        Format = "DOCX"
	TXT         Format = "TXT"
	JSON        Format = "JSON"
	SPREADSHEET Format = "SPREADSHEET"
	EMAIL       Format = "EMAIL"
	IMAGE       Format = "IMAGE"
	ARCHIVE     Format = "ARCHIVE"
)

// extFormats holds every recognized extension, lowercased sans '.'.
var extFormats = map[string]Format{
	"pdf":  PDF,
	"docx": DOCX,
	"txt":  TXT,
	"json": JSON,
	"xlsx": SPREADSHEET,
	"xls":  SPREADSHEET,
	"msg":  EMAIL,
	"eml":  EMAIL,
	"jpg":  IMAGE,
	"jpeg": IMAGE,
	"png":  IMAGE,
	"zip":  ARCHIVE,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapExtToFormat returns the Format for ext, or "" when the extension is not recognized.
func MapExtToFormat(ext string) Format {
	return extFormats[NormalizeExt(ext)]
}

// SupportedExtensions returns the recognized extensions in a stable order.
func SupportedExtensions() []string {
	return []string{"pdf", "docx", "txt", "json", "xlsx", "xls", "msg", "eml", "jpg", "jpeg", "png", "zip"}
}
