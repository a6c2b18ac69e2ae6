package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"clusterwatch/pkg/core"
)

const servicesSchema = `
CREATE TABLE IF NOT EXISTS services (
	account_id   TEXT NOT NULL,
	cluster      TEXT NOT NULL,
	service_key  TEXT NOT NULL,
	name         TEXT NOT NULL,
	namespace    TEXT NOT NULL,
	type         TEXT NOT NULL,
	deleted      BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (account_id, cluster, service_key)
);

CREATE INDEX IF NOT EXISTS idx_services_active ON services(account_id, cluster) WHERE deleted = FALSE;
`

// PostgresStore keeps services in the shared "services" table, scoped to
// one account and cluster.
type PostgresStore struct {
	db        *sql.DB
	accountID string
	cluster   string
}

var _ ServiceStore = &PostgresStore{}

// NewPostgresStore connects to connStr, retrying the initial ping with
// backoff while the failure is transient, and bootstraps the schema.
func NewPostgresStore(ctx context.Context, connStr, accountID, cluster string, backoff core.BackoffStrategy) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if _, err := backoff.Retry(ctx, db.PingContext, core.IsRetryable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := &PostgresStore{db: db, accountID: accountID, cluster: cluster}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, servicesSchema)
	return err
}

func (s *PostgresStore) PersistService(ctx context.Context, service core.ServiceInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO services (account_id, cluster, service_key, name, namespace, type, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id, cluster, service_key) DO UPDATE SET
			name = EXCLUDED.name,
			namespace = EXCLUDED.namespace,
			type = EXCLUDED.type,
			deleted = EXCLUDED.deleted,
			updated_at = NOW()
	`, s.accountID, s.cluster, service.Key(), service.Name, service.Namespace, service.ServiceType, service.Deleted)
	if err != nil {
		return fmt.Errorf("failed to upsert service %s: %w", service.Key(), err)
	}
	return nil
}

func (s *PostgresStore) GetActiveServices(ctx context.Context) ([]core.ServiceInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, namespace, type
		FROM services
		WHERE account_id = $1 AND cluster = $2 AND deleted = FALSE
		ORDER BY service_key
	`, s.accountID, s.cluster)
	if err != nil {
		return nil, fmt.Errorf("failed to query active services: %w", err)
	}
	defer rows.Close()

	var services []core.ServiceInfo
	for rows.Next() {
		var service core.ServiceInfo
		if err := rows.Scan(&service.Name, &service.Namespace, &service.ServiceType); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, service)
	}
	return services, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
