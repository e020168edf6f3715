package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Host             string `yaml:"host" validate:"required"`
	Port             int    `yaml:"port" validate:"min=1,max=65535"`
	TargetSampleRate int    `yaml:"target_sample_rate" validate:"gt=0"`
	Device           int    `yaml:"device" validate:"min=-1"`

	SegmenterBackend      string  `yaml:"segmenter_backend" validate:"oneof=pyannote vad energy"`
	SegmenterModel        string  `yaml:"segmenter_model"`
	SegmenterURL          string  `yaml:"segmenter_url" validate:"omitempty,url"`
	SegmentationBatchSize int     `yaml:"segmentation_batch_size" validate:"min=1"`
	EmbeddingBatchSize    int     `yaml:"embedding_batch_size" validate:"min=1"`
	SpeakerLabel          string  `yaml:"speaker_label" validate:"required"`
	ModelsDir             string  `yaml:"models_dir"`
	VADThreshold          float64 `yaml:"vad_threshold" validate:"gte=0,lt=1"`

	TranscriberBackend     string `yaml:"transcriber_backend" validate:"oneof=sidecar openai whispercpp"`
	TranscriberModel       string `yaml:"transcriber_model"`
	TranscriberURL         string `yaml:"transcriber_url" validate:"omitempty,url"`
	TranscriptionBatchSize int    `yaml:"transcription_batch_size" validate:"min=1"`
	TranscriptionLabel     string `yaml:"transcription_label" validate:"required"`
	NeedsDecoder           bool   `yaml:"needs_decoder"`
	Language               string `yaml:"language"`
	OpenAIAPIKey           string `yaml:"openai_api_key"`
	OpenAIBaseURL          string `yaml:"openai_base_url" validate:"omitempty,url"`
	WhisperModelPath       string `yaml:"whisper_model_path" validate:"required_if=TranscriberBackend whispercpp"`
	WhisperThreads         int    `yaml:"whisper_threads" validate:"min=0"`

	CapabilityTimeout time.Duration `yaml:"capability_timeout" validate:"min=0"`
	ResampleQuality   string        `yaml:"resample_quality" validate:"oneof=high linear"`
	FFmpegPath        string        `yaml:"ffmpeg_path"`

	MaxUploadBytes int64         `yaml:"max_upload_bytes" validate:"gt=0"`
	ReadTimeout    time.Duration `yaml:"read_timeout" validate:"min=0"`
	WriteTimeout   time.Duration `yaml:"write_timeout" validate:"min=0"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format" validate:"oneof=json console"`

	OTelEndpoint    string `yaml:"otel_endpoint"`
	OTelInsecure    bool   `yaml:"otel_insecure"`
	OTelServiceName string `yaml:"otel_service_name" validate:"required"`
}

// Defaults mirrors the deployed simsamu service.
func Defaults() Config {
	return Config{
		Host:                   "0.0.0.0",
		Port:                   5000,
		TargetSampleRate:       16000,
		Device:                 -1,
		SegmenterBackend:       "pyannote",
		SegmenterModel:         "medkit/simsamu-diarization",
		SegmentationBatchSize:  10,
		EmbeddingBatchSize:     10,
		SpeakerLabel:           "speaker",
		ModelsDir:              "./models",
		TranscriberBackend:     "sidecar",
		TranscriberModel:       "medkit/simsamu-transcription",
		TranscriptionBatchSize: 10,
		TranscriptionLabel:     "transcription",
		CapabilityTimeout:      5 * time.Minute,
		ResampleQuality:        "high",
		MaxUploadBytes:         100 << 20,
		ReadTimeout:            30 * time.Second,
		WriteTimeout:           10 * time.Minute,
		LogLevel:               "info",
		LogFormat:              "json",
		OTelServiceName:        "api-ctc-finetuned",
	}
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch v {
		case "0", "false", "no", "off", "False", "FALSE":
			return false
		default:
			return true
		}
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// getenvDuration accepts Go durations ("90s") and bare integers as seconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

// Load builds the configuration from, in increasing precedence: defaults,
// the YAML file named by CONFIG_FILE, and the environment. A .env file in the
// working directory is loaded first without overriding variables already set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	base := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &base); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		Host:             getenv("HOST", base.Host),
		Port:             getenvInt("PORT", base.Port),
		TargetSampleRate: getenvInt("TARGET_SAMPLE_RATE", base.TargetSampleRate),
		Device:           getenvInt("DEVICE", base.Device),

		SegmenterBackend:      getenv("SEGMENTER_BACKEND", base.SegmenterBackend),
		SegmenterModel:        getenv("SEGMENTER_MODEL", base.SegmenterModel),
		SegmenterURL:          getenv("SEGMENTER_URL", base.SegmenterURL),
		SegmentationBatchSize: getenvInt("SEGMENTATION_BATCH_SIZE", base.SegmentationBatchSize),
		EmbeddingBatchSize:    getenvInt("EMBEDDING_BATCH_SIZE", base.EmbeddingBatchSize),
		SpeakerLabel:          getenv("SPEAKER_LABEL", base.SpeakerLabel),
		ModelsDir:             getenv("MODELS_DIR", base.ModelsDir),
		VADThreshold:          getenvFloat("VAD_THRESHOLD", base.VADThreshold),

		TranscriberBackend:     getenv("TRANSCRIBER_BACKEND", base.TranscriberBackend),
		TranscriberModel:       getenv("TRANSCRIBER_MODEL", base.TranscriberModel),
		TranscriberURL:         getenv("TRANSCRIBER_URL", base.TranscriberURL),
		TranscriptionBatchSize: getenvInt("TRANSCRIPTION_BATCH_SIZE", base.TranscriptionBatchSize),
		TranscriptionLabel:     getenv("TRANSCRIPTION_LABEL", base.TranscriptionLabel),
		NeedsDecoder:           getenvBool("NEEDS_DECODER", base.NeedsDecoder),
		Language:               getenv("TRANSCRIPTION_LANGUAGE", base.Language),
		OpenAIAPIKey:           getenv("OPENAI_API_KEY", base.OpenAIAPIKey),
		OpenAIBaseURL:          getenv("OPENAI_BASE_URL", base.OpenAIBaseURL),
		WhisperModelPath:       getenv("WHISPER_MODEL_PATH", base.WhisperModelPath),
		WhisperThreads:         getenvInt("WHISPER_THREADS", base.WhisperThreads),

		CapabilityTimeout: getenvDuration("CAPABILITY_TIMEOUT", base.CapabilityTimeout),
		ResampleQuality:   getenv("RESAMPLE_QUALITY", base.ResampleQuality),
		FFmpegPath:        getenv("FFMPEG_PATH", base.FFmpegPath),

		MaxUploadBytes: getenvInt64("MAX_UPLOAD_BYTES", base.MaxUploadBytes),
		ReadTimeout:    getenvDuration("READ_TIMEOUT", base.ReadTimeout),
		WriteTimeout:   getenvDuration("WRITE_TIMEOUT", base.WriteTimeout),

		LogLevel:  getenv("LOG_LEVEL", base.LogLevel),
		LogFormat: getenv("LOG_FORMAT", base.LogFormat),

		OTelEndpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", base.OTelEndpoint),
		OTelInsecure:    getenvBool("OTEL_INSECURE", base.OTelInsecure),
		OTelServiceName: getenv("OTEL_SERVICE_NAME", base.OTelServiceName),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile decodes path over cfg. Keys missing from the file keep their value.
func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks field constraints and reports every violation.
func (c Config) Validate() error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
