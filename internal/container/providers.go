// Package container provides dependency injection and lifecycle management
// for the back-office wizard server.
package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/backoffice-wizard/internal/application/dispatcher"
	"github.com/garyjia/backoffice-wizard/internal/application/port"
	"github.com/garyjia/backoffice-wizard/internal/config"
	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
	"github.com/garyjia/backoffice-wizard/internal/domain/event"
	infraLark "github.com/garyjia/backoffice-wizard/internal/infrastructure/external/lark"
	"github.com/garyjia/backoffice-wizard/internal/infrastructure/external/simulated"
	"github.com/garyjia/backoffice-wizard/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/backoffice-wizard/internal/infrastructure/receipt"
	"github.com/garyjia/backoffice-wizard/internal/infrastructure/storage"
	"github.com/garyjia/backoffice-wizard/internal/wizard"
	"github.com/garyjia/backoffice-wizard/pkg/database"
	"github.com/garyjia/backoffice-wizard/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn *database.DB
	DB   *sqlite.DB
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(conn, logger).RunEmbedded(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn: conn,
		DB:   sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideDraftStore returns the configured draft backend.
func ProvideDraftStore(cfg *config.DraftsConfig, db *sqlite.DB, logger *zap.Logger) (port.DraftStoreProvider, error) {
	switch cfg.Backend {
	case config.DraftBackendSQLite:
		if db == nil {
			return nil, fmt.Errorf("database is required for the sqlite draft backend")
		}
		return sqlite.NewDraftStore(db, logger), nil
	case config.DraftBackendFile:
		return storage.NewFileDraftStore(storage.NewLocalFileStorage(cfg.Dir, logger)), nil
	default:
		return nil, fmt.Errorf("unknown draft backend: %s", cfg.Backend)
	}
}

// ProvideTransport returns the configured submission transport.
func ProvideTransport(cfg *config.Config, logger *zap.Logger) (port.SubmissionTransport, error) {
	switch cfg.Submission.Transport {
	case config.TransportSimulated:
		return simulated.NewTransport(simulated.Config{
			Delay:       cfg.Submission.SimulatedDelay,
			FailureRate: cfg.Submission.FailureRate,
		}, logger), nil
	case config.TransportLark:
		sdk := infraLark.NewSDKClient(infraLark.Config{
			AppID:           cfg.Lark.AppID,
			AppSecret:       cfg.Lark.AppSecret,
			ApprovalCodes:   cfg.Lark.ApprovalCodes,
			FormWidgetID:    cfg.Lark.FormWidgetID,
			SubmitterOpenID: cfg.Lark.SubmitterOpenID,
		}, logger)
		return infraLark.NewTransport(sdk, logger), nil
	default:
		return nil, fmt.Errorf("unknown submission transport: %s", cfg.Submission.Transport)
	}
}

// ProvideUploadPolicy converts the configured limits. An empty type list
// keeps the default allow-list.
func ProvideUploadPolicy(cfg *config.UploadsConfig) wizard.UploadPolicy {
	policy := wizard.DefaultUploadPolicy()
	policy.MaxFiles = cfg.MaxFiles
	policy.MaxFileSize = cfg.MaxFileSize
	policy.MaxTotalSize = cfg.MaxTotalSize
	if len(cfg.AllowedTypes) > 0 {
		policy.AllowedTypes = cfg.AllowedTypes
	}
	return policy
}

// ProvideFlows registers every wizard flow.
func ProvideFlows(roster *entity.Roster, uploads wizard.UploadPolicy) []*wizard.Flow {
	return []*wizard.Flow{
		wizard.NewRequestFlow(roster, uploads),
		wizard.NewOnboardingFlow(uploads),
	}
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(utils.NewSugarLogger(logger)),
	)
}

// ProvideReceiptWriter subscribes a receipt writer to delivered submissions.
func ProvideReceiptWriter(cfg *config.ReceiptsConfig, d dispatcher.Dispatcher, logger *zap.Logger) *receipt.Writer {
	if !cfg.Enabled {
		return nil
	}
	writer := receipt.NewWriter(storage.NewLocalFileStorage(cfg.Dir, logger), logger)
	d.SubscribeNamed(event.TypeRequestSubmitted, "receipt_writer", writer.Handle)
	return writer
}
