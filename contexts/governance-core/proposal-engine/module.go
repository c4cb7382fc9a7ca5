package proposalengine

import (
	"log/slog"

	httpadapter "agora/contexts/governance-core/proposal-engine/adapters/http"
	"agora/contexts/governance-core/proposal-engine/adapters/memory"
	"agora/contexts/governance-core/proposal-engine/application/commands"
	"agora/contexts/governance-core/proposal-engine/application/queries"
	"agora/contexts/governance-core/proposal-engine/application/workers"
	"agora/contexts/governance-core/proposal-engine/ports"
)

type Module struct {
	Handler   httpadapter.Handler
	Scheduler workers.LifecycleScheduler
	Store     *memory.Store
}

type Dependencies struct {
	Proposals          ports.ProposalRepository
	Votes              ports.VoteRepository
	Balances           ports.BalanceProvider
	Organizations      ports.OrganizationProvider
	Outbox             ports.OutboxWriter
	Clock              ports.Clock
	IDGen              ports.IDGenerator
	SchedulerBatchSize int
	AutoOpen           bool
	AutoClose          bool
	Logger             *slog.Logger
}

func NewModule(deps Dependencies) Module {
	proposalUseCase := commands.ProposalUseCase{
		Proposals:     deps.Proposals,
		Votes:         deps.Votes,
		Balances:      deps.Balances,
		Organizations: deps.Organizations,
		Outbox:        deps.Outbox,
		Clock:         deps.Clock,
		IDGen:         deps.IDGen,
		Logger:        deps.Logger,
	}
	voteUseCase := commands.VoteUseCase{
		Proposals: deps.Proposals,
		Votes:     deps.Votes,
		Balances:  deps.Balances,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	resultsUseCase := queries.ResultsUseCase{
		Proposals: deps.Proposals,
		Votes:     deps.Votes,
	}
	return Module{
		Handler: httpadapter.Handler{
			Proposals: proposalUseCase,
			Votes:     voteUseCase,
			Results:   resultsUseCase,
			Logger:    deps.Logger,
		},
		Scheduler: workers.LifecycleScheduler{
			Proposals:   deps.Proposals,
			ProposalOps: proposalUseCase,
			Clock:       deps.Clock,
			BatchSize:   deps.SchedulerBatchSize,
			AutoOpen:    deps.AutoOpen,
			AutoClose:   deps.AutoClose,
			Logger:      deps.Logger,
		},
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Proposals:          store,
		Votes:              store,
		Balances:           store,
		Organizations:      store,
		Outbox:             store,
		Clock:              store,
		IDGen:              store,
		SchedulerBatchSize: 50,
		AutoOpen:           true,
		AutoClose:          true,
		Logger:             logger,
	})
	module.Store = store
	return module
}
