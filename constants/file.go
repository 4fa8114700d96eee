package constants

import "strings"

// AllowedExtensions holds the file extensions accepted by the file source.
var AllowedExtensions = map[string]struct{}{
	"txt": {},
	"pdf": {},
}

// MailExtension is the extension the mailbox source enumerates.
const MailExtension = "eml"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// AllowedExt reports whether a normalized extension is ingestible.
func AllowedExt(ext string) bool {
	_, ok := AllowedExtensions[ext]
	return ok
}
