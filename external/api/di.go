package api

import (
	"github.com/foxseedlab/kikitorin/external/microphone"
	"github.com/foxseedlab/kikitorin/internal/config"
	"github.com/foxseedlab/kikitorin/internal/controller"
	"github.com/foxseedlab/kikitorin/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		ctrl := do.MustInvoke[*controller.Controller](i)
		repo := do.MustInvoke[repository.Repository](i)
		var remote *microphone.RemoteGate
		if cfg.MicSource == config.MicSourceRemote {
			remote = do.MustInvoke[*microphone.RemoteGate](i)
		}
		return NewServer(cfg.APIListenAddr, ctrl, remote, repo), nil
	})
}
