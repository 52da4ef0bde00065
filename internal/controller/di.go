package controller

import (
	"github.com/foxseedlab/kikitorin/internal/config"
	"github.com/foxseedlab/kikitorin/internal/microphone"
	"github.com/foxseedlab/kikitorin/internal/repository"
	"github.com/foxseedlab/kikitorin/internal/transcriber"
	"github.com/foxseedlab/kikitorin/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Controller, error) {
		cfg := do.MustInvoke[*config.Config](i)
		session := SessionConfig{
			Credential:     cfg.SpeechCredentialsJSON,
			VoiceProfileID: cfg.VoiceProfileID,
		}
		return New(
			session,
			cfg.MicSource,
			do.MustInvoke[transcriber.Factory](i),
			do.MustInvoke[microphone.Gate](i),
			do.MustInvoke[repository.Repository](i),
			do.MustInvoke[webhook.Sender](i),
			do.MustInvoke[Handler](i),
		), nil
	})
}
