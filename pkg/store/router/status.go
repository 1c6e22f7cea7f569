package router

import (
	"context"
	"time"

	"github.com/quickdoodle/doodlestore/pkg/models"
	"github.com/quickdoodle/doodlestore/pkg/store"
)

// AdapterStatus describes one registered adapter at snapshot time.
type AdapterStatus struct {
	Name         string              `json:"name"`
	Kind         store.Kind          `json:"kind"`
	Priority     int                 `json:"priority"`
	Current      bool                `json:"current"`
	Health       models.HealthStatus `json:"health"`
	Capabilities []string            `json:"capabilities"`
}

// Status is a point-in-time snapshot of the router.
type Status struct {
	CurrentAdapter string             `json:"current_adapter"`
	CurrentKind    store.Kind         `json:"current_kind,omitempty"`
	AutoSwitch     bool               `json:"auto_switch"`
	Adapters       []AdapterStatus    `json:"adapters"`
	LastSync       *models.SyncResult `json:"last_sync,omitempty"`
	LastSyncAt     time.Time          `json:"last_sync_at,omitempty"`
}

// Status health-checks every registered adapter and reports the router's
// state. Checks run sequentially in priority order.
func (r *Router) Status(ctx context.Context) Status {
	current, _ := r.Current()

	s := Status{AutoSwitch: r.AutoSwitchEnabled()}
	if current != nil {
		s.CurrentAdapter = current.Name()
		s.CurrentKind = current.Kind()
	}
	s.LastSync, s.LastSyncAt = r.LastSync()

	for _, desc := range r.descriptors {
		adapter := r.adapters[desc.Name]
		s.Adapters = append(s.Adapters, AdapterStatus{
			Name:         desc.Name,
			Kind:         desc.Kind,
			Priority:     desc.Priority,
			Current:      adapter == current,
			Health:       adapter.CheckHealth(ctx),
			Capabilities: store.Capabilities(adapter),
		})
	}
	return s
}
