package audio

import (
	"github.com/foxseedlab/kikitorin/internal/audio"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.ProvideValue(injector, audio.MixerFactory(func() audio.Mixer {
		return NewOpusMixer()
	}))
}
