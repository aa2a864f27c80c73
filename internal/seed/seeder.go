// Package seed fills the statement table with synthetic rows for demos and
// local development. Rows go through the same guarded insert path as the
// HTTP API.
package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/warehouse"
)

type Inserter interface {
	Mutate(ctx context.Context, mutation warehouse.Mutation) (warehouse.MutationResult, error)
}

type Summary struct {
	Accounts []int64
	Inserted int
	Rejected int
}

type Service struct {
	cfg       Config
	log       *slog.Logger
	inserter  Inserter
	generator *Generator
}

func NewService(cfg Config, inserter Inserter, logger *slog.Logger) (*Service, error) {
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if inserter == nil {
		return nil, fmt.Errorf("inserter is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		cfg:       cfg,
		log:       logger,
		inserter:  inserter,
		generator: NewGenerator(cfg.Seed, cfg.Accounts, cfg.StartDate, cfg.OpeningBalance),
	}, nil
}

// Run inserts RowsPerAccount rows for every account and stops at the first
// error. Rejected inserts are counted, not retried.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	summary := Summary{Accounts: s.generator.Accounts()}
	for _, account := range summary.Accounts {
		for i := 0; i < s.cfg.RowsPerAccount; i++ {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			statement, err := s.generator.Next(account)
			if err != nil {
				return summary, err
			}
			result, err := s.inserter.Mutate(ctx, warehouse.Mutation{
				Table:     s.cfg.Table,
				Operation: warehouse.OperationInsert,
				Condition: statement.Pairs(),
			})
			if err != nil {
				return summary, fmt.Errorf("insert statement for account %d: %w", account, err)
			}
			if result.Rejected {
				summary.Rejected++
				continue
			}
			summary.Inserted++
		}
		s.log.Info("seeded account",
			slog.Int64("account", account),
			slog.Int("rows", s.cfg.RowsPerAccount),
		)
	}
	return summary, nil
}
