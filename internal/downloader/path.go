package downloader

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// maxBaseNameBytes caps sanitized base names. Collisions caused by the cap
	// are tolerated rather than deduplicated.
	maxBaseNameBytes = 200
	defaultBaseName  = "video"
	partSuffix       = ".part"
)

var unsafeNameChars = regexp.MustCompile(`[\\/*?:"<>|\x00-\x1F\x7F]`)

// SanitizeFilename makes name safe as a file base name on common filesystems.
// It is deterministic and idempotent.
func SanitizeFilename(name string) string {
	clean := strings.ToValidUTF8(name, "_")
	clean = unsafeNameChars.ReplaceAllString(clean, "_")
	clean = strings.TrimSpace(clean)
	clean = truncateUTF8(clean, maxBaseNameBytes)
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return defaultBaseName
	}
	return clean
}

func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Target says where a request's files go.
type Target struct {
	Dir string
	// BaseName names the final artifact; it is sanitized before use.
	BaseName string
	// PartsBaseName names the intermediate files of a split plan. It falls back
	// to BaseName.
	PartsBaseName string
}

func (t Target) baseName() string {
	return SanitizeFilename(t.BaseName)
}

func (t Target) partsBaseName() string {
	if strings.TrimSpace(t.PartsBaseName) == "" {
		return t.baseName()
	}
	return SanitizeFilename(t.PartsBaseName)
}

// finalPath returns the artifact path for a container extension.
func (t Target) finalPath(ext string) string {
	return filepath.Join(t.Dir, t.baseName()+"."+ext)
}

// partPath returns a split intermediate path. The role suffix keeps video and
// audio files from colliding even when both share a container.
func (t Target) partPath(role, ext string) string {
	return filepath.Join(t.Dir, t.partsBaseName()+"."+role+"."+ext)
}

// mergedContainer picks the container of a merged artifact. mp4 accepts the
// site's mp4 video codecs; anything else goes to Matroska, which accepts all.
func mergedContainer(video StreamDescriptor) string {
	if video.Container == "mp4" {
		return "mp4"
	}
	return "mkv"
}
