package cmd

import (
	"database/sql"
	"gmptracker/domain/config"
	"gmptracker/infrastructure/dbhandler"
	"gmptracker/infrastructure/gmpapi"
	"gmptracker/infrastructure/logger"
	"gmptracker/infrastructure/reference"
	"gmptracker/infrastructure/relay"
	"gmptracker/interface/repository"
	"gmptracker/usecase"
	"time"

	"github.com/rs/zerolog/log"
)

func defaultDependencyInject(editable bool, onUpdate func(usecase.TrackerState)) {
	log.Logger = logger.New(config.GetLogLevel(), config.GetLogFormat(), config.GetLogSampler())

	// The journal is optional; without a database it only logs.
	var journalRepository usecase.JournalRepository
	if config.IsJournalEnabled() {
		var err error
		dbPool, err = sql.Open("postgres", config.GetDbUri())
		if err != nil {
			log.Fatal().Err(err).Msg("Unable to open database")
		}
		dbPool.SetMaxOpenConns(20)
		dbPool.SetMaxIdleConns(5)
		dbPool.SetConnMaxIdleTime(1 * time.Minute)
		dbPool.SetConnMaxLifetime(4 * time.Hour)

		dbHandler := dbhandler.DBHandler{DB: dbPool}
		journal := repository.NewJournalRepository(dbHandler)
		if err = journal.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Unable to prepare the action journal")
		}
		journalRepository = journal
	}

	queryClient := gmpapi.NewClient(config.GetQueryAPIURL(), config.GetRequestTimeout(),
		config.GetRequestRate(), config.GetRequestBurst(), log.Logger)
	relayClient := relay.NewClient(config.GetRelayAPIURL(), config.GetRequestTimeout(),
		config.GetRequestRate(), config.GetRequestBurst(), log.Logger)

	catalog := reference.NewCatalog(config.GetChains(), config.GetAssets())
	chains, assets := catalog.Len()
	log.Debug().Int("chains", chains).Int("assets", assets).Msg("🔵 reference data loaded")

	journalInteractor = usecase.NewJournalInteractor(journalRepository, log.Logger)
	services := usecase.Services{
		Query:       queryClient,
		Relay:       relayClient,
		Links:       usecase.NewLinkResolver(queryClient, log.Logger),
		Corrections: usecase.NewCorrectionSubmitter(queryClient, log.Logger),
		Journal:     journalInteractor,
	}

	options := usecase.TrackerOptions{
		PollInterval:   config.GetPollInterval(),
		SettleDelay:    delayOption(config.GetSettleDelay()),
		ChainDelay:     delayOption(config.GetChainDelay()),
		RequestTimeout: config.GetRequestTimeout(),
		Editable:       config.IsEditable(editable),
		OnUpdate:       onUpdate,
	}
	if editable && !options.Editable {
		log.Warn().Str("environment", config.GetEnvironment()).Msg("⚠️ Corrections are not available in this environment")
	}

	engine := usecase.NewEngine(config.GetPolicy(), catalog)
	manager = usecase.NewManager(engine, services, options, log.Logger)
}

// delayOption keeps a configured "0s" meaning no delay.
func delayOption(d time.Duration) time.Duration {
	if d == 0 {
		return usecase.NoDelay
	}
	return d
}

func closeDependencies() {
	if manager != nil {
		manager.Shutdown()
	}
	if dbPool != nil {
		if err := dbPool.Close(); err != nil {
			log.Warn().Err(err).Msg("⚠️ Failed closing database")
		}
	}
}

var dbPool *sql.DB
var manager *usecase.Manager
var journalInteractor *usecase.JournalInteractor
