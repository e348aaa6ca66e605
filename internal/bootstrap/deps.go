package bootstrap

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"mailpilot/adapter/out/persistence"
	"mailpilot/adapter/out/provider"
	"mailpilot/config"
	"mailpilot/core/agent/llm"
	"mailpilot/core/service/process"
	"mailpilot/core/service/vault"
	"mailpilot/infra/database"
	"mailpilot/pkg/apperr"
	"mailpilot/pkg/crypto"
	"mailpilot/pkg/logger"
)

// Dependencies wires the full processing engine: storage, provider adapters,
// the vault, the draft generator, and the orchestrator on top.
type Dependencies struct {
	Config *config.Config
	DB     *pgxpool.Pool
	SQLDB  *sqlx.DB
	Redis  *redis.Client

	CredentialRepo *persistence.CredentialAdapter
	CategoryRepo   *persistence.CategoryAdapter
	RuleRepo       *persistence.RuleAdapter
	LedgerRepo     *persistence.LedgerAdapter
	ActivityRepo   *persistence.ActivityLogAdapter
	RunLocker      *persistence.RedisRunLocker

	Providers *provider.Registry
	Vault     *vault.Service
	LLMClient *llm.Client
	Drafts    *llm.DraftGenerator

	Process *process.Service
}

// NewDependencies builds the dependency graph and returns a cleanup closing
// every connection in reverse order.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	if cfg.EncryptionKey == "" {
		return fail(apperr.ConfigError("ENCRYPTION_KEY is required"))
	}
	codec, err := crypto.NewEncryptor([]byte(cfg.EncryptionKey))
	if err != nil {
		return fail(err)
	}

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return fail(err)
	}
	deps.DB = db
	cleanups = append(cleanups, db.Close)

	sqlDB, err := database.NewSqlx(cfg.DatabaseURL)
	if err != nil {
		return fail(err)
	}
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		return fail(err)
	}
	deps.Redis = rdb
	cleanups = append(cleanups, func() { rdb.Close() })

	deps.CredentialRepo = persistence.NewCredentialAdapter(sqlDB)
	deps.CategoryRepo = persistence.NewCategoryAdapter(sqlDB)
	deps.RuleRepo = persistence.NewRuleAdapter(sqlDB)
	deps.LedgerRepo = persistence.NewLedgerAdapter(sqlDB)
	deps.ActivityRepo = persistence.NewActivityLogAdapter(sqlDB)
	deps.RunLocker = persistence.NewRedisRunLocker(rdb)

	registryCfg := &provider.RegistryConfig{}
	if cfg.GoogleClientID != "" {
		registryCfg.Gmail = &provider.GmailConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
		}
	}
	if cfg.MicrosoftClientID != "" {
		registryCfg.Outlook = &provider.OutlookConfig{
			ClientID:     cfg.MicrosoftClientID,
			ClientSecret: cfg.MicrosoftClientSecret,
			TenantID:     cfg.MicrosoftTenantID,
		}
	}
	deps.Providers = provider.NewRegistry(registryCfg)

	deps.Vault = vault.NewService(deps.CredentialRepo, deps.Providers, codec)

	deps.LLMClient = llm.NewClient(llm.ClientConfig{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
	})
	deps.Drafts = llm.NewDraftGenerator(deps.LLMClient)

	deps.Process = process.NewService(process.Deps{
		Credentials: deps.CredentialRepo,
		Categories:  deps.CategoryRepo,
		Rules:       deps.RuleRepo,
		Ledger:      deps.LedgerRepo,
		Activity:    deps.ActivityRepo,
		Providers:   deps.Providers,
		Vault:       deps.Vault,
		Drafts:      deps.Drafts,
		Locker:      deps.RunLocker,
	}, process.Options{
		Window:          cfg.ProcessWindow,
		MaxResults:      cfg.SearchMaxResults,
		ProviderTimeout: cfg.ProviderTimeout,
		DraftTimeout:    cfg.LLMTimeout,
		LockTTL:         cfg.RunLockTTL,
		MaxWorkers:      cfg.WorkerMax,
	})

	logger.Info("dependencies initialized")
	return deps, cleanup, nil
}
