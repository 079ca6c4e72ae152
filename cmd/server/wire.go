//go:build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"
	"resty.dev/v3"

	"taxthink-server/internal/config"
	"taxthink-server/internal/domain/advisor"
	"taxthink-server/internal/domain/taxsession"
	"taxthink-server/internal/infrastructure/llm"
	"taxthink-server/internal/infrastructure/logger"
	"taxthink-server/internal/interfaces/httpserver"
)

var sessionSet = wire.NewSet(
	provideRepository,
	taxsession.NewService,
	provideCompletionClient,
	wire.Bind(new(advisor.CompletionClient), new(*llm.Client)),
	provideAdvisorService,
)

// BuildApplication assembles the service with Wire.
func BuildApplication() (*Application, error) {
	wire.Build(
		config.Load,
		provideLogger,
		sessionSet,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}

func provideLogger(cfg *config.Config) (zerolog.Logger, error) {
	return logger.New(cfg.LogLevel, cfg.LogFormat)
}

func provideRepository(cfg *config.Config, log zerolog.Logger) (taxsession.Repository, error) {
	return newRepository(cfg, log)
}

func provideCompletionClient(cfg *config.Config) *llm.Client {
	return llm.NewClient(resty.New(), cfg.OpenAIBaseURL, cfg.OpenAIAPIKey)
}

func provideAdvisorService(cfg *config.Config, client advisor.CompletionClient) *advisor.Service {
	return advisor.NewService(client, cfg.OpenAIModel)
}
