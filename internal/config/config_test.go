package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"CONFIG_FILE", "HOST", "PORT", "TARGET_SAMPLE_RATE", "DEVICE",
	"SEGMENTER_BACKEND", "SEGMENTER_MODEL", "SEGMENTER_URL", "SEGMENTATION_BATCH_SIZE",
	"EMBEDDING_BATCH_SIZE", "SPEAKER_LABEL", "MODELS_DIR", "VAD_THRESHOLD",
	"TRANSCRIBER_BACKEND", "TRANSCRIBER_MODEL", "TRANSCRIBER_URL", "TRANSCRIPTION_BATCH_SIZE",
	"TRANSCRIPTION_LABEL", "NEEDS_DECODER", "TRANSCRIPTION_LANGUAGE", "OPENAI_API_KEY",
	"OPENAI_BASE_URL", "WHISPER_MODEL_PATH", "WHISPER_THREADS", "CAPABILITY_TIMEOUT",
	"RESAMPLE_QUALITY", "FFMPEG_PATH", "MAX_UPLOAD_BYTES", "READ_TIMEOUT", "WRITE_TIMEOUT",
	"LOG_LEVEL", "LOG_FORMAT", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_INSECURE", "OTEL_SERVICE_NAME",
}

// chdir isolates Load from the host environment and from any .env file in
// the package directory.
func chdir(t *testing.T) string {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
	require.Equal(t, "0.0.0.0:5000", cfg.Addr())
	require.Equal(t, 16000, cfg.TargetSampleRate)
	require.Equal(t, -1, cfg.Device)
	require.Equal(t, "speaker", cfg.SpeakerLabel)
	require.Equal(t, "transcription", cfg.TranscriptionLabel)
	require.False(t, cfg.NeedsDecoder)
}

func TestLoadEnv(t *testing.T) {
	chdir(t)
	t.Setenv("PORT", "8080")
	t.Setenv("DEVICE", "0")
	t.Setenv("SEGMENTER_BACKEND", "energy")
	t.Setenv("TRANSCRIPTION_BATCH_SIZE", "4")
	t.Setenv("NEEDS_DECODER", "yes")
	t.Setenv("CAPABILITY_TIMEOUT", "90")
	t.Setenv("READ_TIMEOUT", "1m")
	t.Setenv("VAD_THRESHOLD", "0.3")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 0, cfg.Device)
	require.Equal(t, "energy", cfg.SegmenterBackend)
	require.Equal(t, 4, cfg.TranscriptionBatchSize)
	require.True(t, cfg.NeedsDecoder)
	require.Equal(t, 90*time.Second, cfg.CapabilityTimeout)
	require.Equal(t, time.Minute, cfg.ReadTimeout)
	require.Equal(t, 0.3, cfg.VADThreshold)
	require.EqualValues(t, 1024, cfg.MaxUploadBytes)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TRANSCRIPTION_LANGUAGE=fr\n"), 0o600))
	require.NoError(t, os.Unsetenv("TRANSCRIPTION_LANGUAGE"))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "fr", cfg.Language)
}

func TestLoadFile(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 6000
transcriber_backend: openai
openai_api_key: sk-test
capability_timeout: 45s
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7000")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Port, "env overrides file")
	require.Equal(t, "openai", cfg.TranscriberBackend)
	require.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	require.Equal(t, 45*time.Second, cfg.CapabilityTimeout)
	require.Equal(t, "pyannote", cfg.SegmenterBackend, "defaults survive")

	require.NoError(t, os.WriteFile(path, []byte("bogus_key: 1\n"), 0o600))
	_, err = Load()
	require.ErrorContains(t, err, "decode config file")
}

func TestValidate(t *testing.T) {
	tcs := []struct {
		name   string
		modify func(*Config)
		err    string
	}{
		{
			name:   "valid",
			modify: func(*Config) {},
		},
		{
			name:   "bad port",
			modify: func(c *Config) { c.Port = 70000 },
			err:    "port: failed max=65535",
		},
		{
			name:   "unknown segmenter",
			modify: func(c *Config) { c.SegmenterBackend = "magic" },
			err:    "segmenter_backend: failed oneof",
		},
		{
			name:   "zero batch size",
			modify: func(c *Config) { c.TranscriptionBatchSize = 0 },
			err:    "transcription_batch_size: failed min=1",
		},
		{
			name:   "whispercpp needs a model",
			modify: func(c *Config) { c.TranscriberBackend = "whispercpp" },
			err:    "whisper_model_path: failed required_if",
		},
		{
			name:   "bad resample quality",
			modify: func(c *Config) { c.ResampleQuality = "best" },
			err:    "resample_quality: failed oneof",
		},
		{
			name:   "device below cpu",
			modify: func(c *Config) { c.Device = -2 },
			err:    "device: failed min=-1",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.modify(&cfg)
			err := cfg.Validate()
			if tc.err != "" {
				require.ErrorContains(t, err, tc.err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
