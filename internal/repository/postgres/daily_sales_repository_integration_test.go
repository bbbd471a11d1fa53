//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/DimaJoyti/analytics-engine/internal/config"
	"github.com/DimaJoyti/analytics-engine/internal/models"
)

// DailySalesIntegrationTestSuite exercises DailySalesRepository against a
// real Postgres instance, the one schema-dependent piece of the aggregator
// pipeline pure unit tests can't cover.
type DailySalesIntegrationTestSuite struct {
	suite.Suite
	container testcontainers.Container
	db        *Database
	repo      *DailySalesRepository
	ctx       context.Context
}

func (s *DailySalesIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "analytics_test",
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	s.Require().NoError(err)
	s.container = container

	host, err := container.Host(s.ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(s.ctx, "5432")
	s.Require().NoError(err)

	db, err := NewDatabase(config.DatabaseConfig{
		Host:         host,
		Port:         port.Int(),
		User:         "test",
		Password:     "test",
		DBName:       "analytics_test",
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
		MaxLifetime:  time.Minute,
	})
	s.Require().NoError(err)
	s.db = db

	s.createSchema()
	s.repo = &DailySalesRepository{db: db}
}

func (s *DailySalesIntegrationTestSuite) createSchema() {
	_, err := s.db.GetDB().Exec(`
		CREATE TABLE IF NOT EXISTS daily_sales_metrics (
			id                  BIGSERIAL PRIMARY KEY,
			date                DATE NOT NULL UNIQUE,
			total_sales         NUMERIC(18,2) NOT NULL DEFAULT 0,
			total_orders        INTEGER NOT NULL DEFAULT 0,
			average_order_value NUMERIC(18,2) NOT NULL DEFAULT 0,
			products_sold       INTEGER NOT NULL DEFAULT 0,
			unique_products     INTEGER NOT NULL DEFAULT 0,
			unique_customers    INTEGER NOT NULL DEFAULT 0,
			calculated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	s.Require().NoError(err)
}

func (s *DailySalesIntegrationTestSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		s.container.Terminate(s.ctx)
	}
}

func (s *DailySalesIntegrationTestSuite) TearDownTest() {
	_, err := s.db.GetDB().Exec(`TRUNCATE daily_sales_metrics RESTART IDENTITY`)
	s.Require().NoError(err)
}

func (s *DailySalesIntegrationTestSuite) TestUpsert_InsertsThenUpdatesSameDate() {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	metric := &models.DailySalesMetric{Date: day, TotalOrders: 1, CalculatedAt: time.Now().UTC()}
	s.Require().NoError(s.repo.Upsert(s.ctx, metric))
	s.NotZero(metric.ID)

	metric.TotalOrders = 2
	s.Require().NoError(s.repo.Upsert(s.ctx, metric))

	got, err := s.repo.GetByDate(s.ctx, day)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(2, got.TotalOrders)
}

func (s *DailySalesIntegrationTestSuite) TestGetByDate_ReturnsNilWhenAbsent() {
	got, err := s.repo.GetByDate(s.ctx, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *DailySalesIntegrationTestSuite) TestListRange_OrdersAscendingByDate() {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		m := &models.DailySalesMetric{Date: base.AddDate(0, 0, i), TotalOrders: i, CalculatedAt: time.Now().UTC()}
		s.Require().NoError(s.repo.Upsert(s.ctx, m))
	}

	rows, err := s.repo.ListRange(s.ctx, base, base.AddDate(0, 0, 2))
	s.Require().NoError(err)
	s.Require().Len(rows, 3)
	s.True(rows[0].Date.Before(rows[1].Date))
	s.True(rows[1].Date.Before(rows[2].Date))
}

func (s *DailySalesIntegrationTestSuite) TestDeleteOlderThan_RemovesOnlyStaleRows() {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	old := &models.DailySalesMetric{Date: base, CalculatedAt: time.Now().UTC()}
	recent := &models.DailySalesMetric{Date: base.AddDate(1, 0, 0), CalculatedAt: time.Now().UTC()}
	s.Require().NoError(s.repo.Upsert(s.ctx, old))
	s.Require().NoError(s.repo.Upsert(s.ctx, recent))

	cutoff := base.AddDate(0, 6, 0)
	n, err := s.repo.DeleteOlderThan(s.ctx, cutoff)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	remaining, err := s.repo.ListRange(s.ctx, base, recent.Date)
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal(recent.Date, remaining[0].Date)
}

func TestDailySalesIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(DailySalesIntegrationTestSuite))
}
