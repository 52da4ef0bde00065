package microphone

import (
	"github.com/foxseedlab/kikitorin/internal/audio"
	"github.com/foxseedlab/kikitorin/internal/config"
	"github.com/foxseedlab/kikitorin/internal/microphone"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*RemoteGate, error) {
		newMixer := do.MustInvoke[audio.MixerFactory](i)
		return NewRemoteGate(newMixer), nil
	})
	do.Provide(injector, func(i do.Injector) (microphone.Gate, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.MicSource == config.MicSourceRemote {
			return do.MustInvoke[*RemoteGate](i), nil
		}
		return NewPulseGate(cfg.MicDevice), nil
	})
}
