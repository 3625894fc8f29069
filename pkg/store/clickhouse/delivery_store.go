package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaypoint/relaypoint/pkg/model"
	"github.com/relaypoint/relaypoint/pkg/store"
)

type ClickHouseDeliveryStore struct {
	conn   driver.Conn
	logger *zap.Logger
}

func NewClickHouseDeliveryStore(addr string, database string, username string, password string, logger *zap.Logger) (*ClickHouseDeliveryStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return &ClickHouseDeliveryStore{
		conn:   conn,
		logger: logger,
	}, nil
}

func (s *ClickHouseDeliveryStore) CreateBatch(ctx context.Context, records []*model.DeliveryRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO webhook_deliveries")
	if err != nil {
		return err
	}

	for _, record := range records {
		err := batch.Append(
			record.SubscriptionID,
			record.TriggerEvent,
			record.EndpointURL,
			record.StatusCode,
			record.Success,
			record.DurationMs,
			record.AttemptedAt,
			time.Now(), // created_at
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

func (s *ClickHouseDeliveryStore) List(ctx context.Context, subscriptionID string, sinceTime *time.Time, limit int) ([]model.DeliveryRecord, error) {
	subscriptionUUID, err := uuid.Parse(subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("invalid subscription id: %w", err)
	}

	query := "SELECT subscription_id, trigger_event, endpoint_url, status_code, success, duration_ms, attempted_at FROM webhook_deliveries WHERE subscription_id = ?"
	args := []interface{}{subscriptionUUID}

	if sinceTime != nil {
		query += " AND attempted_at > ?"
		args = append(args, *sinceTime)
	}

	query += " ORDER BY attempted_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDeliveryRows(rows)
}

func (s *ClickHouseDeliveryStore) Query(ctx context.Context, query store.DeliveryQuery) ([]model.DeliveryRecord, error) {
	if query.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription id is required")
	}

	subscriptionUUID, err := uuid.Parse(query.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("invalid subscription id: %w", err)
	}

	queryText := "SELECT subscription_id, trigger_event, endpoint_url, status_code, success, duration_ms, attempted_at FROM webhook_deliveries WHERE subscription_id = ?"
	args := []interface{}{subscriptionUUID}

	if query.TriggerEvent != "" {
		queryText += " AND trigger_event = ?"
		args = append(args, query.TriggerEvent)
	}

	if query.Success != nil {
		queryText += " AND success = ?"
		args = append(args, *query.Success)
	}

	if query.StartTime != nil {
		queryText += " AND attempted_at >= ?"
		args = append(args, *query.StartTime)
	}

	if query.EndTime != nil {
		queryText += " AND attempted_at <= ?"
		args = append(args, *query.EndTime)
	}

	queryText += " ORDER BY attempted_at DESC"

	if query.Limit > 0 {
		queryText += fmt.Sprintf(" LIMIT %d", query.Limit)
	}

	rows, err := s.conn.Query(ctx, queryText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDeliveryRows(rows)
}

func scanDeliveryRows(rows driver.Rows) ([]model.DeliveryRecord, error) {
	var records []model.DeliveryRecord
	for rows.Next() {
		var record model.DeliveryRecord
		if err := rows.Scan(
			&record.SubscriptionID,
			&record.TriggerEvent,
			&record.EndpointURL,
			&record.StatusCode,
			&record.Success,
			&record.DurationMs,
			&record.AttemptedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *ClickHouseDeliveryStore) DeleteOld(ctx context.Context, retentionDays int) error {
	// ClickHouse handles retention via TTL natively
	return nil
}

func (s *ClickHouseDeliveryStore) Close() error {
	return s.conn.Close()
}

// EnsureSchema creates the table if not exists
func (s *ClickHouseDeliveryStore) EnsureSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS webhook_deliveries (
		subscription_id UUID,
		trigger_event LowCardinality(String),
		endpoint_url String Codec(ZSTD),
		status_code Int32,
		success Bool,
		duration_ms Int64,
		attempted_at DateTime,
		created_at DateTime DEFAULT now()
	)
	ENGINE = MergeTree()
	ORDER BY (subscription_id, attempted_at)
	PARTITION BY toYYYYMMDD(created_at)
	TTL created_at + INTERVAL 7 DAY
	`
	return s.conn.Exec(ctx, query)
}
