package transcriber

import (
	"github.com/foxseedlab/kikitorin/internal/config"
	"github.com/foxseedlab/kikitorin/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcriber.Factory, error) {
		c := do.MustInvoke[*config.Config](i)
		return func(settings transcriber.Settings) (transcriber.Transcriber, error) {
			if settings.Language == "" {
				settings.Language = c.SpeechLanguage
			}
			if settings.Location == "" {
				settings.Location = c.SpeechLocation
			}
			return NewCloudSpeechTranscriber(settings), nil
		}, nil
	})
}
