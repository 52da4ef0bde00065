package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/kikitorin/internal/config"
)

type envConfig struct {
	Env                   string `env:"ENV" envDefault:"production"`
	SpeechCredentialsJSON string `env:"SPEECH_CREDENTIALS_JSON,required"`
	VoiceProfileID        string `env:"VOICE_PROFILE_ID,required"`
	SpeechLanguage        string `env:"SPEECH_LANGUAGE" envDefault:"en-US"`
	SpeechLocation        string `env:"SPEECH_LOCATION" envDefault:"global"`
	DatabaseURL           string `env:"DATABASE_URL,required"`
	MicSource             string `env:"MIC_SOURCE" envDefault:"pulse"`
	MicDevice             string `env:"MIC_DEVICE"`
	TranscriptWebhookURL  string `env:"TRANSCRIPT_WEBHOOK_URL"`
	APIListenAddr         string `env:"API_LISTEN_ADDR" envDefault:":8080"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                   raw.Env,
		SpeechCredentialsJSON: raw.SpeechCredentialsJSON,
		VoiceProfileID:        raw.VoiceProfileID,
		SpeechLanguage:        raw.SpeechLanguage,
		SpeechLocation:        raw.SpeechLocation,
		DatabaseURL:           raw.DatabaseURL,
		MicSource:             raw.MicSource,
		MicDevice:             raw.MicDevice,
		TranscriptWebhookURL:  raw.TranscriptWebhookURL,
		APIListenAddr:         raw.APIListenAddr,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
