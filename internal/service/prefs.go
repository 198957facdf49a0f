package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/portpilot/portal/internal/domain"
	"github.com/portpilot/portal/internal/repo"
	"github.com/portpilot/portal/internal/resources"
)

// PrefService keeps per-browser UI preferences: column widths per page and
// the sidebar state.
type PrefService struct {
	prefs repo.PreferenceRepo
	log   *slog.Logger
}

// NewPrefService constructs a PrefService.
func NewPrefService(prefs repo.PreferenceRepo, log *slog.Logger) *PrefService {
	return &PrefService{prefs: prefs, log: log}
}

// Get returns the preferences of client. Values that no longer decode are
// logged and ignored.
func (s *PrefService) Get(ctx context.Context, client uuid.UUID) (domain.Preferences, error) {
	raw, err := s.prefs.List(ctx, client)
	if err != nil {
		return domain.Preferences{}, fmt.Errorf("service.PrefService.Get: %w", err)
	}

	out := domain.Preferences{ColumnWidths: map[string]map[string]int{}}
	for key, value := range raw {
		switch {
		case key == domain.PrefSidebarCollapsed:
			if err := json.Unmarshal(value, &out.SidebarCollapsed); err != nil {
				s.log.WarnContext(ctx, "ignoring malformed preference", "key", key, "error", err)
			}
		case strings.HasPrefix(key, domain.WidthsKey("")):
			var widths map[string]int
			if err := json.Unmarshal(value, &widths); err != nil {
				s.log.WarnContext(ctx, "ignoring malformed preference", "key", key, "error", err)
				continue
			}
			out.ColumnWidths[strings.TrimPrefix(key, domain.WidthsKey(""))] = domain.ClampWidths(widths)
		}
	}
	return out, nil
}

// Widths returns the stored column widths of one page, or nil.
func (s *PrefService) Widths(ctx context.Context, client uuid.UUID, resource string) (map[string]int, error) {
	p, err := s.Get(ctx, client)
	if err != nil {
		return nil, err
	}
	return p.ColumnWidths[resource], nil
}

// SetWidths stores column widths for a page. Unknown columns are rejected
// and widths below the minimum are raised to it.
func (s *PrefService) SetWidths(ctx context.Context, client uuid.UUID, resource string, widths map[string]int) (map[string]int, error) {
	def, ok := resources.Lookup(resource)
	if !ok {
		return nil, fmt.Errorf("service.PrefService.SetWidths: %w: no page named %q", domain.ErrNotFound, resource)
	}
	for key := range widths {
		if _, ok := def.Schema.Column(key); !ok {
			return nil, fmt.Errorf("service.PrefService.SetWidths: %w: unknown column %q", domain.ErrValidation, key)
		}
	}

	clamped := domain.ClampWidths(widths)
	value, err := json.Marshal(clamped)
	if err != nil {
		return nil, fmt.Errorf("service.PrefService.SetWidths: %w", err)
	}
	if err := s.prefs.Put(ctx, client, domain.WidthsKey(resource), value); err != nil {
		return nil, fmt.Errorf("service.PrefService.SetWidths: %w", err)
	}
	return clamped, nil
}

// SetSidebar stores whether the sidebar is collapsed.
func (s *PrefService) SetSidebar(ctx context.Context, client uuid.UUID, collapsed bool) error {
	value, _ := json.Marshal(collapsed)
	if err := s.prefs.Put(ctx, client, domain.PrefSidebarCollapsed, value); err != nil {
		return fmt.Errorf("service.PrefService.SetSidebar: %w", err)
	}
	return nil
}
