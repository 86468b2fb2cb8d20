package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	dispatchx "github.com/chainquery/chainquery/agent/dispatch"
	intentx "github.com/chainquery/chainquery/agent/intent"
	orchestratorx "github.com/chainquery/chainquery/agent/orchestrator"
	promptx "github.com/chainquery/chainquery/agent/prompt"
	reasonx "github.com/chainquery/chainquery/agent/reason"
	sessionx "github.com/chainquery/chainquery/agent/session"
	toolx "github.com/chainquery/chainquery/agent/tool"
	cmcx "github.com/chainquery/chainquery/pkg/coinmarketcap"
	configx "github.com/chainquery/chainquery/pkg/config"
	llamax "github.com/chainquery/chainquery/pkg/defillama"
	dunex "github.com/chainquery/chainquery/pkg/dune"
	etherscanx "github.com/chainquery/chainquery/pkg/etherscan"
	_ "github.com/chainquery/chainquery/pkg/logger/autoload"
	openrouterx "github.com/chainquery/chainquery/pkg/openrouter"
	serverx "github.com/chainquery/chainquery/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	openRouterCfg := configx.MustNew[openrouterx.OpenRouterConfig]("OPENROUTER")
	if client := openrouterx.NewClient(*openRouterCfg); client != nil {
		if err := openrouterx.Verify(ctx, client); err != nil {
			log.Warn().Err(err).Msg("openrouter credential check failed, synthesis may be degraded")
		}
	}

	chatModel, err := openRouterCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize chat model")
	}
	reasoner, err := reasonx.NewService(ctx, chatModel, promptx.ResearchPrompt())
	if err != nil {
		log.Fatal().Err(err).Msg("initialize reasoning service")
	}

	duneClient, err := dunex.NewClient(*configx.MustNew[dunex.Config]("DUNE"))
	if err != nil {
		log.Fatal().Err(err).Msg("initialize dune client")
	}
	etherscanClient, err := etherscanx.NewClient(*configx.MustNew[etherscanx.Config]("ETHERSCAN"))
	if err != nil {
		log.Fatal().Err(err).Msg("initialize etherscan client")
	}
	cmcClient, err := cmcx.NewClient(*configx.MustNew[cmcx.Config]("COINMARKETCAP"))
	if err != nil {
		log.Fatal().Err(err).Msg("initialize coinmarketcap client")
	}
	llamaClient, err := llamax.NewClient(*configx.MustNew[llamax.Config]("DEFILLAMA"))
	if err != nil {
		log.Fatal().Err(err).Msg("initialize defillama client")
	}

	registry := toolx.NewRegistry(
		toolx.NewCoinMarketCapTool(cmcClient),
		toolx.NewDuneTool(duneClient),
		toolx.NewDefiLlamaTool(llamaClient),
		toolx.NewEtherscanTool(etherscanClient),
	)
	for name, status := range registry.Services() {
		log.Info().Str("provider", name).Str("status", status).Msg("registered data provider")
	}

	store := sessionx.NewStore(*configx.MustNew[sessionx.Config]("SESSION"))
	go store.Run(ctx)

	dispatcher := dispatchx.NewDispatcher(*configx.MustNew[dispatchx.Config]("DISPATCH"), registry)

	research, err := orchestratorx.New(
		*configx.MustNew[orchestratorx.Config]("ORCHESTRATOR"),
		intentx.NewClassifier(),
		dispatcher,
		store,
		reasoner,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize orchestrator")
	}

	srv, err := serverx.New(*configx.MustNew[serverx.Config]("SERVER"), research, registry)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize http server")
	}
	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("http server exited")
	}
}
