package modules

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/memohai/anontalks/internal/boot"
	"github.com/memohai/anontalks/internal/ledger"
	"github.com/memohai/anontalks/internal/matchmaker"
	"github.com/memohai/anontalks/internal/participants"
	"github.com/memohai/anontalks/internal/router"
	"github.com/memohai/anontalks/internal/storage"
)

var DomainModule = fx.Module(
	"domain",
	fx.Provide(
		participants.NewService,
		provideLedger,
		provideRouter,
		provideMatchmaker,
	),
)

func provideLedger(log *slog.Logger, store storage.Store, rc *boot.RuntimeConfig) *ledger.Ledger {
	return ledger.New(log, store, ledger.Options{
		RecentOpponentTimeout: rc.RecentOpponentTimeout,
		ClaimAttempts:         rc.ClaimAttempts,
	})
}

func provideRouter(log *slog.Logger, people *participants.Service) *router.Router {
	return router.New(log, people)
}

func provideMatchmaker(log *slog.Logger, people *participants.Service, pairing *ledger.Ledger, r *router.Router) *matchmaker.Matchmaker {
	return matchmaker.New(log, people, pairing, r)
}
