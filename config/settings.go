package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings configures the practice agent. Infrastructure connections are
// read separately by the Init functions.
type Settings struct {
	Port string

	CaptureMaxDuration   time.Duration
	CaptureChunkInterval time.Duration
	CaptureMinBytes      int
	CaptureMaxBytes      int
	LevelFrameInterval   time.Duration

	STTProvider      string // http|google
	TranscriptionURL string
	TranscriptionKey string
	SpeechLanguage   string

	SynthesisURL      string
	SynthesisKey      string
	SynthesisVoice    string
	SynthesisCacheTTL time.Duration

	VertexProjectID string
	VertexLocation  string
	VertexModel     string

	HTTPTimeout time.Duration

	AudioInputCommand  string
	AudioOutputCommand string

	QuestionCount int
	TaskTimeout   time.Duration

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
}

// LoadSettings reads Settings from the environment, applying defaults.
func LoadSettings() (Settings, error) {
	s := Settings{
		Port:               getEnv("PORT", "8080"),
		STTProvider:        strings.ToLower(getEnv("STT_PROVIDER", "http")),
		TranscriptionURL:   os.Getenv("TRANSCRIPTION_URL"),
		TranscriptionKey:   os.Getenv("TRANSCRIPTION_API_KEY"),
		SpeechLanguage:     getEnv("SPEECH_LANGUAGE", "en-US"),
		SynthesisURL:       os.Getenv("SYNTHESIS_URL"),
		SynthesisKey:       os.Getenv("SYNTHESIS_API_KEY"),
		SynthesisVoice:     os.Getenv("SYNTHESIS_VOICE"),
		VertexProjectID:    os.Getenv("VERTEX_PROJECT_ID"),
		VertexLocation:     getEnv("VERTEX_LOCATION", "us-central1"),
		VertexModel:        getEnv("VERTEX_MODEL", "gemini-1.5-flash"),
		AudioInputCommand:  getEnv("AUDIO_INPUT_COMMAND", "rec"),
		AudioOutputCommand: getEnv("AUDIO_OUTPUT_COMMAND", "ffplay"),
		JWTSecret:          os.Getenv("SUPABASE_JWT_SECRET"),
		JWTIssuer:          os.Getenv("SUPABASE_JWT_ISSUER"),
		JWTAudience:        os.Getenv("SUPABASE_JWT_AUDIENCE"),
	}

	var err error
	if s.CaptureMaxDuration, err = getDuration("CAPTURE_MAX_DURATION", 30*time.Second); err != nil {
		return s, err
	}
	if s.CaptureChunkInterval, err = getDuration("CAPTURE_CHUNK_INTERVAL", 500*time.Millisecond); err != nil {
		return s, err
	}
	if s.LevelFrameInterval, err = getDuration("LEVEL_FRAME_INTERVAL", 16*time.Millisecond); err != nil {
		return s, err
	}
	if s.SynthesisCacheTTL, err = getDuration("SYNTHESIS_CACHE_TTL", 24*time.Hour); err != nil {
		return s, err
	}
	if s.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return s, err
	}
	if s.TaskTimeout, err = getDuration("TASK_TIMEOUT", 30*time.Second); err != nil {
		return s, err
	}
	if s.QuestionCount, err = getInt("QUESTION_COUNT", 5); err != nil {
		return s, err
	}
	if s.CaptureMinBytes, err = getInt("CAPTURE_MIN_BYTES", 1000); err != nil {
		return s, err
	}
	if s.CaptureMaxBytes, err = getInt("CAPTURE_MAX_BYTES", 3_000_000); err != nil {
		return s, err
	}

	if s.CaptureMinBytes > s.CaptureMaxBytes {
		return s, fmt.Errorf("CAPTURE_MIN_BYTES (%d) exceeds CAPTURE_MAX_BYTES (%d)", s.CaptureMinBytes, s.CaptureMaxBytes)
	}
	switch s.STTProvider {
	case "http":
		if s.TranscriptionURL == "" {
			return s, fmt.Errorf("TRANSCRIPTION_URL is required when STT_PROVIDER=http")
		}
	case "google":
	default:
		return s, fmt.Errorf("STT_PROVIDER must be http or google, got %q", s.STTProvider)
	}
	if s.SynthesisURL == "" {
		return s, fmt.Errorf("SYNTHESIS_URL is required")
	}
	return s, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: invalid positive integer %q", key, v)
	}
	return n, nil
}
