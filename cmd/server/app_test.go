package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"

	"github.com/garmage/API-CTC-finetuned/internal/config"
)

func TestBuildPipeline(t *testing.T) {
	tcs := []struct {
		name   string
		modify func(*config.Config)
		err    string
	}{
		{
			name:   "defaults",
			modify: func(*config.Config) {},
		},
		{
			name: "energy with openai",
			modify: func(c *config.Config) {
				c.SegmenterBackend = "energy"
				c.TranscriberBackend = "openai"
				c.OpenAIAPIKey = "sk-test"
			},
		},
		{
			name:   "unknown segmenter",
			modify: func(c *config.Config) { c.SegmenterBackend = "bogus" },
			err:    `create segmenter: segmenter backend "bogus" not registered (available: energy, pyannote, vad)`,
		},
		{
			name:   "openai without credentials",
			modify: func(c *config.Config) { c.TranscriberBackend = "openai" },
			err:    "create transcriber: openai transcriber: api key or base url required",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Defaults()
			tc.modify(&cfg)
			p, closeFn, err := buildPipeline(cfg)
			if tc.err != "" {
				require.EqualError(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, p)
			require.Equal(t, cfg.SegmenterBackend, p.Segmenter().Name())
			require.Equal(t, cfg.TranscriberBackend, p.Transcriber().Name())
			require.NoError(t, closeFn())
		})
	}
}

func TestSetupLogging(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.DefaultContextLogger = nil
	})

	setupLogging("debug", "console")
	require.Equal(t, zerolog.DebugLevel, log.Logger.GetLevel())
	require.Same(t, &log.Logger, zerolog.DefaultContextLogger)

	setupLogging("nonsense", "json")
	require.Equal(t, zerolog.InfoLevel, log.Logger.GetLevel())
}
