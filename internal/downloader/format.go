package downloader

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// WriteFormats prints the catalog as a table, one stream per row.
func WriteFormats(w io.Writer, catalog *Catalog) error {
	if catalog == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "%s  %s\n", catalog.ID, catalog.Title); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tEXT\tQUALITY\tRES\tBITRATE\tSIZE\tMIME")
	for _, s := range catalog.Streams {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID,
			streamKind(s),
			s.Extension(),
			dash(s.QualityLabel),
			resolutionText(s),
			bitrateText(s.AudioBitrateRank),
			sizeText(s.SizeBytes),
			s.MimeType,
		)
	}
	return tw.Flush()
}

func streamKind(s StreamDescriptor) string {
	switch {
	case s.IsCombined():
		return "av"
	case s.IsVideoOnly():
		return "video"
	case s.IsAudioOnly():
		return "audio"
	default:
		return "none"
	}
}

func resolutionText(s StreamDescriptor) string {
	if !s.HasVideo || s.ResolutionRank <= 0 {
		return "-"
	}
	return fmt.Sprintf("%dp", s.ResolutionRank)
}

func bitrateText(bps int) string {
	if bps <= 0 {
		return "-"
	}
	return fmt.Sprintf("%dk", bps/1000)
}

func sizeText(n int64) string {
	if n < 0 {
		return "?"
	}
	return humanBytes(n)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func mimeToExt(mime string) string {
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	parts := strings.Split(strings.TrimSpace(mime), "/")
	if len(parts) == 2 && parts[1] != "" {
		switch parts[1] {
		case "3gpp":
			return "3gp"
		default:
			return parts[1]
		}
	}
	return ""
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for n >= unit*div && exp < 3 {
		div *= unit
		exp++
	}
	value := float64(n) / float64(div)
	suffix := []string{"KB", "MB", "GB", "TB"}
	return fmt.Sprintf("%.1f%s", value, suffix[exp])
}
