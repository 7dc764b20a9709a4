package app

import (
	"context"
	"log/slog"

	jiraapi "timecard/internal/adapter/jira"
	"timecard/internal/adapter/sqlstore"
	"timecard/internal/auth"
	"timecard/internal/config"
	"timecard/internal/migrate"
	"timecard/internal/ports"
	"timecard/internal/secret"
	"timecard/internal/usecase"
)

// App wires adapters and use cases.
type App struct {
	log     *slog.Logger
	store   *sqlstore.Store
	tokens  *auth.Issuer
	auth    *usecase.AuthUseCase
	records *usecase.RecordsUseCase
	jira    *usecase.JiraUseCase
	cors    []string
}

func New(ctx context.Context, log *slog.Logger, cfg config.Config) (*App, error) {
	box, err := secret.New(cfg.Jira.EncryptionKey)
	if err != nil {
		return nil, err
	}
	// Run migrations before opening the store for use
	if err := migrate.Run(ctx, cfg.DB.Driver, cfg.DB.DSN, log); err != nil {
		return nil, err
	}
	store, err := sqlstore.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, log)
	if err != nil {
		return nil, err
	}
	tokens := auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	clients := jiraapi.NewFactory(jiraapi.Options{Timeout: cfg.Jira.Timeout, RateLimit: cfg.Jira.RateLimit}, log)
	return assemble(log, store, tokens, box, clients, cfg.HTTP.CORSOrigins), nil
}

func assemble(log *slog.Logger, store *sqlstore.Store, tokens *auth.Issuer, cipher ports.Cipher, clients ports.JiraClientFactory, cors []string) *App {
	return &App{
		log:    log,
		store:  store,
		tokens: tokens,
		auth:   &usecase.AuthUseCase{Log: log, Users: store, Tokens: tokens},
		records: &usecase.RecordsUseCase{
			Log:        log,
			Attributes: store,
			Records:    store,
		},
		jira: &usecase.JiraUseCase{
			Log:     log,
			Store:   store,
			Records: store,
			Cipher:  cipher,
			Clients: clients,
		},
		cors: cors,
	}
}

// Close releases the database pool.
func (a *App) Close() error {
	return a.store.Close()
}
