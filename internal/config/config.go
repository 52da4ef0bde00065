package config

import "fmt"

const (
	MicSourcePulse  = "pulse"
	MicSourceRemote = "remote"
)

type Config struct {
	Env                   string
	SpeechCredentialsJSON string
	VoiceProfileID        string
	SpeechLanguage        string
	SpeechLocation        string
	DatabaseURL           string
	MicSource             string
	MicDevice             string
	TranscriptWebhookURL  string
	APIListenAddr         string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.MicSource != MicSourcePulse && c.MicSource != MicSourceRemote {
		return fmt.Errorf("MIC_SOURCE must be %q or %q, got %q", MicSourcePulse, MicSourceRemote, c.MicSource)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "SPEECH_CREDENTIALS_JSON", value: c.SpeechCredentialsJSON},
		{name: "VOICE_PROFILE_ID", value: c.VoiceProfileID},
		{name: "SPEECH_LANGUAGE", value: c.SpeechLanguage},
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "API_LISTEN_ADDR", value: c.APIListenAddr},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
