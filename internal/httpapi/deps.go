package httpapi

import (
	"database/sql"
	"sync/atomic"

	"go.uber.org/zap"

	"lcamail-engine/internal/auth"
	"lcamail-engine/internal/config"
	"lcamail-engine/internal/coverletter"
	"lcamail-engine/internal/dispatch"
	"lcamail-engine/internal/events"
	"lcamail-engine/internal/lca"
)

// SenderFactory opens the mail account a user sends from.
type SenderFactory func(cfg config.Config, userEmail string) (dispatch.Sender, error)

type Deps struct {
	DB *sql.DB

	Hub *events.Hub
	Log *zap.Logger

	// Atomic stores
	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string

	Dataset     *lca.Dataset
	Index       *lca.FilterIndex
	Dispatcher  *dispatch.Dispatcher
	Auth        *auth.Service
	CoverLetter *coverletter.Generator

	// Mail account entrypoint (inject for testability)
	Senders SenderFactory
}

func (d Deps) config() config.Config {
	return d.CfgVal.Load().(config.Config)
}
