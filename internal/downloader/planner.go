package downloader

import "fmt"

// Mode is the acquisition strategy chosen by Plan.
type Mode int

const (
	// ModeCombined fetches one stream carrying both video and audio.
	ModeCombined Mode = iota + 1
	// ModeSplit fetches a video-only and an audio-only stream and merges them.
	ModeSplit
)

func (m Mode) String() string {
	switch m {
	case ModeCombined:
		return "combined"
	case ModeSplit:
		return "split"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// AcquisitionPlan says how a target will be acquired. Build it with Plan;
// the zero value is not a valid plan.
type AcquisitionPlan struct {
	mode     Mode
	combined StreamDescriptor
	video    StreamDescriptor
	audio    StreamDescriptor
}

// CombinedPlan returns a plan that fetches stream directly.
func CombinedPlan(stream StreamDescriptor) AcquisitionPlan {
	return AcquisitionPlan{mode: ModeCombined, combined: stream}
}

// SplitPlan returns a plan that fetches video and audio and merges them.
func SplitPlan(video, audio StreamDescriptor) AcquisitionPlan {
	return AcquisitionPlan{mode: ModeSplit, video: video, audio: audio}
}

func (p AcquisitionPlan) Mode() Mode { return p.mode }

// Combined returns the stream of a combined plan.
func (p AcquisitionPlan) Combined() (StreamDescriptor, bool) {
	return p.combined, p.mode == ModeCombined
}

// Split returns the video and audio streams of a split plan.
func (p AcquisitionPlan) Split() (video, audio StreamDescriptor, ok bool) {
	return p.video, p.audio, p.mode == ModeSplit
}

// Streams lists the streams the plan fetches, video first.
func (p AcquisitionPlan) Streams() []StreamDescriptor {
	switch p.mode {
	case ModeCombined:
		return []StreamDescriptor{p.combined}
	case ModeSplit:
		return []StreamDescriptor{p.video, p.audio}
	default:
		return nil
	}
}

// Plan picks how to acquire a target from its candidate streams. It is a pure
// function: the result depends only on its arguments and always references
// elements of streams.
func Plan(streams []StreamDescriptor, mergeToolAvailable bool) (AcquisitionPlan, error) {
	combined, hasCombined := bestStream(streams, StreamDescriptor.IsCombined, betterVideoStream)
	video, hasVideo := bestStream(streams, StreamDescriptor.IsVideoOnly, betterVideoStream)
	audio, hasAudio := bestStream(streams, StreamDescriptor.IsAudioOnly, betterAudioStream)

	if mergeToolAvailable && hasVideo && hasAudio &&
		(!hasCombined || video.ResolutionRank > combined.ResolutionRank) {
		return SplitPlan(video, audio), nil
	}
	if hasCombined {
		return CombinedPlan(combined), nil
	}
	return AcquisitionPlan{}, wrapCategory(CategoryNoStreamAvailable, ErrNoStreamAvailable)
}

// bestStream returns the first stream matching keep that no later match beats.
// Ties keep the earlier stream, which makes the order total.
func bestStream(streams []StreamDescriptor, keep func(StreamDescriptor) bool, better func(a, b StreamDescriptor) bool) (StreamDescriptor, bool) {
	var best StreamDescriptor
	found := false
	for _, s := range streams {
		if !keep(s) {
			continue
		}
		if !found || better(s, best) {
			best = s
			found = true
		}
	}
	return best, found
}

func betterVideoStream(candidate, current StreamDescriptor) bool {
	if candidate.ResolutionRank != current.ResolutionRank {
		return candidate.ResolutionRank > current.ResolutionRank
	}
	if c, k := isMP4(candidate), isMP4(current); c != k {
		return c
	}
	if candidate.AudioBitrateRank != current.AudioBitrateRank {
		return candidate.AudioBitrateRank > current.AudioBitrateRank
	}
	return candidate.SizeBytes > current.SizeBytes
}

func betterAudioStream(candidate, current StreamDescriptor) bool {
	if candidate.AudioBitrateRank != current.AudioBitrateRank {
		return candidate.AudioBitrateRank > current.AudioBitrateRank
	}
	if c, k := isMP4(candidate), isMP4(current); c != k {
		return c
	}
	return candidate.SizeBytes > current.SizeBytes
}

func isMP4(s StreamDescriptor) bool {
	return s.Container == "mp4"
}
