package service

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/portpilot/portal/internal/domain"
	"github.com/portpilot/portal/internal/resources"
	"github.com/portpilot/portal/internal/session"
	"github.com/portpilot/portal/internal/upstream"
)

// Fetcher reads a remote row set.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, creds upstream.Credentials) ([]map[string]string, error)
}

// OptionService loads the option lists shown in dropdowns.
type OptionService struct {
	api Fetcher
	log *slog.Logger
}

// NewOptionService constructs an OptionService.
func NewOptionService(api Fetcher, log *slog.Logger) *OptionService {
	return &OptionService{api: api, log: log}
}

// CompanyCodes fetches the drayage and warehouse code lists concurrently.
// A list that cannot be fetched is logged and comes back empty; the other
// list is unaffected.
func (s *OptionService) CompanyCodes(ctx context.Context, sc session.Context) domain.CompanyCodes {
	creds := credentials(sc)
	out := domain.CompanyCodes{Drayage: []string{}, Warehouse: []string{}}

	drayage, warehouses := resources.Drayage(), resources.Warehouses()

	// The goroutines never return an error: a failed fetch degrades to an
	// empty list, so one list must not cancel the other and Wait is only a
	// join.
	var g errgroup.Group
	g.Go(func() error {
		out.Drayage = s.codes(ctx, drayage.Endpoint, drayage.KeyField, creds)
		return nil
	})
	g.Go(func() error {
		out.Warehouse = s.codes(ctx, warehouses.Endpoint, warehouses.KeyField, creds)
		return nil
	})
	_ = g.Wait()
	return out
}

func (s *OptionService) codes(ctx context.Context, endpoint, field string, creds upstream.Credentials) []string {
	rows, err := s.api.Fetch(ctx, endpoint, creds)
	if err != nil {
		s.log.WarnContext(ctx, "option list unavailable", "endpoint", endpoint, "error", err)
		return []string{}
	}
	return resources.CodesFrom(rows, field)
}
