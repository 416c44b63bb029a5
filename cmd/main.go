package main

import (
	"context"
	"log"

	"github.com/pot-code/lms-progress/internal/catalog"
	"github.com/pot-code/lms-progress/internal/enrollment"
	infra "github.com/pot-code/lms-progress/internal/infrastructure"
	"github.com/pot-code/lms-progress/internal/infrastructure/driver"
	"github.com/pot-code/lms-progress/internal/infrastructure/logging"
	"github.com/pot-code/lms-progress/internal/infrastructure/uuid"
	"github.com/pot-code/lms-progress/internal/infrastructure/websocket"
	"github.com/pot-code/lms-progress/internal/interfaces/rest"
	"github.com/pot-code/lms-progress/internal/migration"
	"github.com/pot-code/lms-progress/internal/progress"
	"github.com/pot-code/lms-progress/internal/user"
	"go.uber.org/zap"
)

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)
	option, err := infra.InitConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		FilePath: option.Logging.FilePath,
		Level:    option.Logging.Level,
		AppID:    option.AppID,
		Env:      option.Env,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %s\n", err)
	}
	logger = logger.With(
		zap.String("service.id", option.AppID),
	)
	defer logger.Sync()

	dbConn, err := driver.GetDBConnection(&driver.DBConfig{
		User:     option.Database.User,
		Password: option.Database.Password,
		MaxConn:  option.Database.MaxConn,
		Protocol: option.Database.Protocol,
		Driver:   option.Database.Driver,
		Host:     option.Database.Host,
		Port:     option.Database.Port,
		Query:    option.Database.Query,
		Schema:   option.Database.Schema,
	})
	if err != nil {
		log.Fatalf("Failed to create DB connection: %s\n", err)
	}
	logger.Debug("Create db connection instance", zap.String("db.driver", option.Database.Driver),
		zap.String("db.schema", option.Database.Schema),
		zap.String("db.host", option.Database.Host),
	)
	if option.Database.Migrate {
		ctx := logging.SetLoggerInContext(context.Background(), logger)
		if err := migration.Migrate(ctx, dbConn); err != nil {
			log.Fatalf("Failed to migrate database: %s\n", err)
		}
		logger.Info("Database migrated", zap.Strings("db.tables", migration.Tables()))
	}

	var kv driver.KeyValueDB
	if option.KVStore.Host != "" {
		rdb := driver.NewRedisClient(option.KVStore.Host, option.KVStore.Port, option.KVStore.Password)
		defer rdb.Close()
		kv = rdb
	} else {
		logger.Warn("No kv host configured, falling back to in-process store")
		kv = driver.NewMemoryKV()
	}

	UUIDGenerator := uuid.NewNanoIDGenerator(option.Security.IDLength)
	hub := websocket.NewHub(16, logger)

	var Catalog catalog.Catalog = catalog.NewCatalogRepository(dbConn)
	if option.Catalog.CacheTTL > 0 {
		Catalog = catalog.NewCachedCatalog(Catalog, kv, option.Catalog.CacheTTL)
	}

	UserRepo := user.NewUserRepository(dbConn, UUIDGenerator)
	UserUseCase := user.NewUserUseCase(UserRepo, option.Security.MaxLoginAttempts, option.Security.RetryTimeout)

	EnrollmentRepo := enrollment.NewEnrollmentRepository(dbConn, UUIDGenerator)
	EnrollmentUseCase := enrollment.NewEnrollmentUseCase(EnrollmentRepo, Catalog)

	gate, err := progress.ParseGatePolicy(option.Progress.UnlockGate)
	if err != nil {
		log.Fatal(err)
	}
	ProgressRepo := progress.NewProgressRepository(dbConn, UUIDGenerator)
	ProgressUseCase := progress.NewProgressUseCase(ProgressRepo, Catalog, EnrollmentRepo, hub, &progress.Options{
		Gate:              gate,
		MaxUpdateAttempts: option.Progress.MaxUpdateAttempts,
	})

	rest.Serve(dbConn, kv, hub, option, UserUseCase, EnrollmentUseCase, ProgressUseCase, logger)
}
