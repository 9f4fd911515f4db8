package db

import (
	"strings"
)

// ClassifyMediaType labels a download as music, movie or video from the
// signals available after resolving it:
//   - Music: URL contains music.youtube.com, or channel name ends in " - Topic"
//   - Movie: channel is "YouTube Movies & TV"
//   - Video: fallback for everything else
func ClassifyMediaType(url, channelName string) string {
	if strings.Contains(url, "music.youtube.com") {
		return "music"
	}
	if strings.HasSuffix(channelName, " - Topic") {
		return "music"
	}
	if channelName == "YouTube Movies & TV" {
		return "movie"
	}
	return "video"
}
