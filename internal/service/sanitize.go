package service

import (
	"path/filepath"
	"strings"

	"github.com/sxlmons/filelink/pkg/constants"
)

// reservedChars are the bytes rejected by mainstream filesystems; control
// characters are rejected alongside them.
const reservedChars = `<>:"/\|?*`

// SanitizeFileName makes a client-supplied name safe to place on the host
// filesystem. Illegal bytes become underscores, an empty result is replaced
// by a placeholder, and overlong names are truncated with the extension
// preserved.
func SanitizeFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(reservedChars, r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}

	out := strings.TrimSpace(b.String())
	// Names of only dots would collapse into path navigation.
	if strings.Trim(out, ".") == "" {
		out = ""
	}
	if out == "" {
		return constants.UnnamedFile
	}

	if len(out) > constants.MaxFileNameLength {
		ext := filepath.Ext(out)
		if len(ext) >= constants.MaxFileNameLength {
			ext = ""
		}
		out = out[:constants.MaxFileNameLength-len(ext)] + ext
	}
	return out
}
