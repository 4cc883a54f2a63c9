package transcription

// TranscriptionRequest holds parameters for a transcription call.
type TranscriptionRequest struct {
	// AudioPath is the path to the audio file to transcribe.
	AudioPath string `json:"audio_path"`
	// BeamSize is the decoding beam width. Zero uses the backend default.
	BeamSize int `json:"beam_size,omitempty"`
	// Language is the expected language of the audio (e.g. "en"). Empty means detect.
	Language string `json:"language,omitempty"`
	// Model overrides the backend's configured model for this call, where supported.
	Model string `json:"model,omitempty"`
}

// TranscriptionResponse holds the result of a transcription call.
type TranscriptionResponse struct {
	// Text is the full transcription text.
	Text string `json:"text"`
	// Segments contains time-aligned transcript segments in audio order.
	Segments []Segment `json:"segments,omitempty"`
	// Duration is the audio duration in seconds.
	Duration float64 `json:"duration,omitempty"`
	// Language is the detected or specified language.
	Language string `json:"language,omitempty"`
}

// Texts returns the segment texts in order.
func (r *TranscriptionResponse) Texts() []string {
	out := make([]string, len(r.Segments))
	for i, s := range r.Segments {
		out[i] = s.Text
	}
	return out
}

// Segment represents a time-aligned portion of a transcript.
type Segment struct {
	// Start is the segment start time in seconds.
	Start float64 `json:"start"`
	// End is the segment end time in seconds.
	End float64 `json:"end"`
	// Text is the transcribed text for this segment.
	Text string `json:"text"`
	// Speaker is the identified speaker label, if available.
	Speaker string `json:"speaker,omitempty"`
}

// Model settings shared by backends.
const (
	DefaultModelSize   = "base"
	DefaultDevice      = "cpu"
	DefaultComputeType = "float16"
	DefaultBeamSize    = 5
)

// Factory config keys understood by the registered backends.
const (
	KeyModelSize   = "model_size"
	KeyDevice      = "device"
	KeyComputeType = "compute_type"
	KeyBeamSize    = "beam_size"
	KeyLanguage    = "language"
	KeyTimeout     = "timeout"
)
