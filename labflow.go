package labflow

import (
	"context"
	"fmt"
	"time"

	"github.com/jcuga/golongpoll"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	auditrepository "github.com/openlims/labflow/auditlog/repository"
	auditservice "github.com/openlims/labflow/auditlog/service"
	"github.com/openlims/labflow/authmanager"
	"github.com/openlims/labflow/clients"
	"github.com/openlims/labflow/config"
	"github.com/openlims/labflow/db"
	"github.com/openlims/labflow/migrator"
)

// LabFlow bundles the wired application: one instance per process, every
// dependency constructed once at startup and passed explicitly.
type LabFlow interface {
	Start() error
	Close()
}

type labFlow struct {
	config          *config.Configuration
	postgres        db.Postgres
	api             GinApi
	longpollManager *golongpoll.LongpollManager
	redisClient     *redis.Client
}

func New(ctx context.Context) (LabFlow, error) {
	configuration, err := config.ReadConfiguration()
	if err != nil {
		return nil, err
	}

	postgres := db.NewPostgres(ctx, &configuration)
	if err = postgres.Connect(); err != nil {
		log.Error().Err(err).Msg("Failed to connect to postgres")
		return nil, err
	}
	sqlConn, err := postgres.GetDbConnection()
	if err != nil {
		return nil, err
	}

	if err = migrator.NewLabFlowMigrator().Run(ctx, sqlConn, configuration.DBSchema); err != nil {
		log.Error().Err(err).Msg("Failed to migrate database")
		return nil, err
	}

	var authManager authmanager.AuthManager
	if configuration.Authorization {
		authManager, err = authmanager.NewAuthManager(&configuration,
			clients.NewRestyClient(ctx, &configuration, true))
		if err != nil {
			return nil, err
		}
		authManager.StartClientCredentialTask(ctx)
	}

	longpollManager, err := golongpoll.StartLongpoll(golongpoll.Options{
		MaxEventBufferSize: 250,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to start longpoll manager")
		return nil, err
	}

	var redisClient *redis.Client
	configCache := NewNoopFlaggingConfigCache()
	if configuration.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", configuration.RedisURL, configuration.RedisPort),
		})
		configCache = NewRedisFlaggingConfigCache(redisClient,
			time.Duration(configuration.FlaggingCacheTTLSeconds)*time.Second)
	}

	var eventLogClient clients.EventLogClient
	if configuration.EventLogURL != "" {
		eventLogRestyClient := clients.NewRestyClient(ctx, &configuration, true)
		if authManager != nil {
			eventLogRestyClient = clients.NewRestyClientWithAuthManager(ctx, &configuration, authManager)
		}
		eventLogClient = clients.NewEventLogClient(eventLogRestyClient, configuration.EventLogURL, configuration.ApplicationName)
	} else {
		eventLogClient = clients.NewNoopEventLogClient()
	}

	dbConn := db.CreateDbConnector(sqlConn)
	orderRepository := NewOrderRepository(dbConn, configuration.DBSchema)
	patientRepository := NewPatientRepository(dbConn, configuration.DBSchema)
	parameterRepository := NewParameterRepository(dbConn, configuration.DBSchema)
	instrumentRepository := NewInstrumentRepository(dbConn, configuration.DBSchema)
	flaggingRepository := NewFlaggingRepository(dbConn, configuration.DBSchema)
	reagentRepository := NewReagentRepository(dbConn, configuration.DBSchema)
	auditLogRepository := auditrepository.NewAuditLogRepository(dbConn, configuration.DBSchema)

	auditLogService := auditservice.NewAuditLogService(auditLogRepository, eventLogClient, longpollManager)
	instrumentService := NewInstrumentService(instrumentRepository, NewInstrumentCache(), auditLogService)
	flaggingService := NewFlaggingService(flaggingRepository, parameterRepository, configCache, NewDefaultAgeGroupClassifier())
	reagentService := NewReagentService(reagentRepository, instrumentRepository, auditLogService)
	orderService := NewOrderService(orderRepository, patientRepository, parameterRepository,
		flaggingService, reagentService, instrumentService, auditLogService)

	api := NewAPI(&configuration, authManager, orderService, flaggingService, reagentService,
		instrumentService, auditLogService, longpollManager)

	return &labFlow{
		config:          &configuration,
		postgres:        postgres,
		api:             api,
		longpollManager: longpollManager,
		redisClient:     redisClient,
	}, nil
}

func (l *labFlow) Start() error {
	log.Info().Msg(ApiStartMsg)
	if err := l.api.Run(); err != nil {
		log.Error().Err(err).Msg(ApiFailedToStartMsg)
		return err
	}
	log.Info().Msg(ApiEndedGracefullyMsg)
	return nil
}

func (l *labFlow) Close() {
	if l.longpollManager != nil {
		l.longpollManager.Shutdown()
	}
	if l.redisClient != nil {
		if err := l.redisClient.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
	if err := l.postgres.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close postgres connection")
	}
}
