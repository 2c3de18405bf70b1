package warehouse

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

// insertBatchSize keeps each streaming insert well under the request limit.
const insertBatchSize = 500

// MetricsRepository stores daily metrics outside the local artifacts.
type MetricsRepository interface {
	EnsureTable(ctx context.Context) error
	InsertMetrics(ctx context.Context, runID string, metrics []domain.DailyCustomerMetric) error
	CustomerHistory(ctx context.Context, customerID string, before civil.Date) ([]domain.DailyCustomerMetric, error)
	Close() error
}

// putter is the part of *bigquery.Inserter used for streaming inserts.
type putter interface {
	Put(ctx context.Context, src interface{}) error
}

// BigQueryMetricsRepository is the MetricsRepository backed by BigQuery.
type BigQueryMetricsRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	tableID   string
	now       func() time.Time
}

// NewBigQueryMetricsRepository creates a client for projectID.
func NewBigQueryMetricsRepository(ctx context.Context, projectID, datasetID, tableID string, opts ...option.ClientOption) (*BigQueryMetricsRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryMetricsRepository: creating client: %w", err)
	}
	return &BigQueryMetricsRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		tableID:   tableID,
		now:       time.Now,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryMetricsRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *BigQueryMetricsRepository) qualified() string {
	return fmt.Sprintf("`%s.%s.%s`", r.projectID, r.datasetID, r.tableID)
}

// EnsureTable creates the metrics table if it does not exist.
func (r *BigQueryMetricsRepository) EnsureTable(ctx context.Context) error {
	q := r.client.Query(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			date           DATE NOT NULL,
			customer_id    STRING NOT NULL,
			orders         INT64,
			items          INT64,
			gross_amount   FLOAT64,
			returns_amount FLOAT64,
			net_amount     FLOAT64,
			run_id         STRING,
			loaded_ts      TIMESTAMP
		)
		PARTITION BY date
		CLUSTER BY customer_id
	`, r.qualified()))

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("EnsureTable: running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("EnsureTable: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("EnsureTable: job error: %w", err)
	}
	return nil
}

// InsertMetrics streams metrics into the table tagged with runID.
func (r *BigQueryMetricsRepository) InsertMetrics(ctx context.Context, runID string, metrics []domain.DailyCustomerMetric) error {
	ins := r.client.DatasetInProject(r.projectID, r.datasetID).Table(r.tableID).Inserter()
	return insertMetrics(ctx, ins, runID, r.now(), metrics)
}

func insertMetrics(ctx context.Context, p putter, runID string, loaded time.Time, metrics []domain.DailyCustomerMetric) error {
	for start := 0; start < len(metrics); start += insertBatchSize {
		end := min(start+insertBatchSize, len(metrics))
		rows := make([]*DailyMetricRow, 0, end-start)
		for _, m := range metrics[start:end] {
			rows = append(rows, toRow(m, runID, loaded))
		}
		if err := p.Put(ctx, rows); err != nil {
			return fmt.Errorf("InsertMetrics: inserting rows %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// CustomerHistory reads customerID's metrics dated strictly before before.
// When a day was exported by more than one run the latest load wins.
func (r *BigQueryMetricsRepository) CustomerHistory(ctx context.Context, customerID string, before civil.Date) ([]domain.DailyCustomerMetric, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			date,
			customer_id,
			orders,
			items,
			gross_amount,
			returns_amount,
			net_amount,
			run_id,
			loaded_ts
		FROM %s
		WHERE customer_id = @customer_id
		  AND date < @before
		QUALIFY ROW_NUMBER() OVER (PARTITION BY date ORDER BY loaded_ts DESC) = 1
		ORDER BY date
	`, r.qualified()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "customer_id", Value: customerID},
		{Name: "before", Value: before},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("CustomerHistory: query read: %w", err)
	}

	var out []domain.DailyCustomerMetric
	for {
		var row DailyMetricRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CustomerHistory: iter next: %w", err)
		}
		out = append(out, row.metric())
	}
	return out, nil
}
