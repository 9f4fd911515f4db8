package downloader

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

// validateInputURL checks that raw is an absolute http(s) URL.
func validateInputURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", wrapCategory(CategoryInvalidURL, errors.New("no url provided"))
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", wrapCategory(CategoryInvalidURL, errors.Wrap(err, "invalid URL"))
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", wrapCategory(CategoryInvalidURL, errors.New("invalid URL: missing scheme or host"))
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return "", wrapCategory(CategoryInvalidURL, errors.Newf("unsupported URL scheme: %s", parsed.Scheme))
	}
	return parsed.String(), nil
}

// normalizeTarget validates raw and rewrites alternate YouTube forms to a
// watch URL. Playlist-only URLs are rejected.
func normalizeTarget(raw string) (string, error) {
	valid, err := validateInputURL(raw)
	if err != nil {
		return "", err
	}
	normalized := NormalizeYouTubeURL(ConvertMusicURL(valid))
	if isPlaylistOnly(normalized) {
		return "", wrapCategory(CategoryInvalidURL, errors.New("playlist URLs are not supported; pass a single video URL"))
	}
	return normalized, nil
}

// normalizeHostname returns the normalized hostname from a URL:
// lowercase, with "www." prefix removed, and port stripped.
func normalizeHostname(parsed *url.URL) string {
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// ConvertMusicURL converts YouTube Music URLs to regular YouTube URLs
func ConvertMusicURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	if normalizeHostname(parsed) != "music.youtube.com" {
		return u
	}
	parsed.Host = "www.youtube.com"
	query := parsed.Query()
	delete(query, "si")
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// NormalizeYouTubeURL converts alternate YouTube URL forms (live/shorts/youtu.be) to watch?v=.
func NormalizeYouTubeURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	host := normalizeHostname(parsed)
	if host != "youtube.com" && host != "youtu.be" && host != "m.youtube.com" {
		return u
	}
	query := parsed.Query()
	if host == "youtu.be" {
		id := strings.TrimPrefix(parsed.Path, "/")
		if id != "" {
			query.Set("v", id)
			parsed.Host = "www.youtube.com"
			parsed.Path = "/watch"
			parsed.RawQuery = query.Encode()
		}
		return parsed.String()
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) >= 2 && (parts[0] == "live" || parts[0] == "shorts") {
		if query.Get("v") == "" && parts[1] != "" {
			query.Set("v", parts[1])
		}
		parsed.Path = "/watch"
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}
	return u
}

func isPlaylistOnly(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	query := parsed.Query()
	return query.Get("list") != "" && query.Get("v") == ""
}
