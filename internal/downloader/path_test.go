package downloader

import (
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "My Video", want: "My Video"},
		{name: "reserved characters", input: `a\b/c*d?e:f"g<h>i|j`, want: "a_b_c_d_e_f_g_h_i_j"},
		{name: "control characters", input: "line\nbreak\ttab\x00nul", want: "line_break_tab_nul"},
		{name: "surrounding whitespace", input: "  spaced  ", want: "spaced"},
		{name: "empty", input: "", want: "video"},
		{name: "whitespace only", input: " \t ", want: "video"},
		{name: "unicode kept", input: "日本語 タイトル", want: "日本語 タイトル"},
		{name: "reserved only", input: "???", want: "___"},
		{name: "invalid utf-8 keeps valid prefix", input: "a" + strings.Repeat("\x80", 300), want: "a_"},
		{name: "invalid byte inside text", input: "ab\xffcd", want: "ab_cd"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SanitizeFilename(tc.input)
			if got != tc.want {
				t.Fatalf("SanitizeFilename(%q) = %q, want %q", tc.input, got, tc.want)
			}
			if again := SanitizeFilename(got); again != got {
				t.Fatalf("not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestSanitizeFilenameCapsLength(t *testing.T) {
	long := strings.Repeat("é", 150) // 300 bytes
	got := SanitizeFilename(long)
	if len(got) > maxBaseNameBytes {
		t.Fatalf("expected at most %d bytes, got %d", maxBaseNameBytes, len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a rune")
	}
	if got != strings.Repeat("é", 100) {
		t.Fatalf("unexpected truncation %q", got)
	}
	if SanitizeFilename(got) != got {
		t.Fatal("not idempotent after truncation")
	}

	trailing := strings.Repeat("a", 199) + " b"
	if got := SanitizeFilename(trailing); got != strings.Repeat("a", 199) {
		t.Fatalf("expected trailing space trimmed after truncation, got %q", got)
	}
}

func TestTargetPaths(t *testing.T) {
	target := Target{Dir: "out", BaseName: "A/B", PartsBaseName: "id123"}
	if got := target.finalPath("mp4"); got != filepath.Join("out", "A_B.mp4") {
		t.Fatalf("unexpected final path %s", got)
	}
	if got := target.partPath(labelAudio, "m4a"); got != filepath.Join("out", "id123.audio.m4a") {
		t.Fatalf("unexpected part path %s", got)
	}

	noParts := Target{Dir: "out", BaseName: "clip"}
	if got := noParts.partPath(labelVideo, "webm"); got != filepath.Join("out", "clip.video.webm") {
		t.Fatalf("expected parts to fall back to base name, got %s", got)
	}
}

func TestMergedContainer(t *testing.T) {
	if got := mergedContainer(videoOnlyStream(137, 1080, "mp4", 1)); got != "mp4" {
		t.Fatalf("expected mp4, got %s", got)
	}
	if got := mergedContainer(videoOnlyStream(248, 1080, "webm", 1)); got != "mkv" {
		t.Fatalf("expected mkv, got %s", got)
	}
}

func TestStreamExtension(t *testing.T) {
	cases := []struct {
		stream StreamDescriptor
		want   string
	}{
		{stream: combinedStream(18, 360, "mp4", 1), want: "mp4"},
		{stream: audioOnlyStream(140, 128000, "mp4", 1), want: "m4a"},
		{stream: audioOnlyStream(251, 160000, "webm", 1), want: "webm"},
		{stream: StreamDescriptor{HasVideo: true}, want: "bin"},
	}
	for _, tc := range cases {
		if got := tc.stream.Extension(); got != tc.want {
			t.Fatalf("expected %s, got %s", tc.want, got)
		}
	}
}
