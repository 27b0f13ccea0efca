// Package alerts holds the canonical in-memory active-alert set, with
// dedup on (device, type, severity), lifecycle transitions, and
// threshold-driven auto-resolution, mirrored to the store. A single
// mutex covers the whole set so state transitions for any one alert id
// are totally ordered.
package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lanwatch/lanwatch/internal/core/config"
	"github.com/lanwatch/lanwatch/internal/core/model"
)

// Publisher is the minimal broadcaster dependency the alert engine
// needs: emit a typed event. It is satisfied by *broadcast.Broadcaster.
type Publisher interface {
	Publish(eventType string, data any)
}

// Persister is the minimal store dependency the alert engine needs.
type Persister interface {
	InsertAlert(model.Alert) error
	UpsertAlert(model.Alert) error
	AckAlert(id, who string) error
	ResolveAlert(id string) error
	DeleteAlert(id string) error
	ListAlerts(filter model.AlertFilter, limit, offset int) ([]model.Alert, error)
}

// CreateParams are the caller-supplied fields for Create.
type CreateParams struct {
	DeviceID string
	DeviceIP string
	Type     model.AlertType
	Severity model.AlertSeverity
	Message  string
}

// Engine owns the active-alert set and its lifecycle.
type Engine struct {
	logger *zap.SugaredLogger
	store  Persister
	bus    Publisher

	mu      sync.Mutex
	active  map[string]*model.Alert // id -> alert
	history []model.Alert
}

// New builds an Engine.
func New(logger *zap.SugaredLogger, store Persister, bus Publisher) *Engine {
	return &Engine{
		logger: logger,
		store:  store,
		bus:    bus,
		active: make(map[string]*model.Alert),
	}
}

// Load hydrates the active set from previously persisted rows at
// startup; acknowledged and resolved rows stay history-only.
func (e *Engine) Load(rows []model.Alert) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range rows {
		a := rows[i]
		if !a.Acknowledged && a.ResolvedAt == nil {
			cp := a
			e.active[a.ID] = &cp
		}
	}
}

func findActive(active map[string]*model.Alert, deviceID string, t model.AlertType, severity model.AlertSeverity) *model.Alert {
	for _, a := range active {
		if a.DeviceID == deviceID && a.Type == t && a.Severity == severity && !a.Acknowledged && a.ResolvedAt == nil {
			return a
		}
	}
	return nil
}

// Create dedups against the active set on (device_id, type, severity);
// a match increments occurrence_count instead of minting a new alert,
// so concurrent identical violations produce exactly one row.
func (e *Engine) Create(p CreateParams) (model.Alert, error) {
	e.mu.Lock()
	if existing := findActive(e.active, p.DeviceID, p.Type, p.Severity); existing != nil {
		existing.OccurrenceCount++
		existing.LastOccurrence = time.Now().UTC()
		cp := *existing
		e.mu.Unlock()

		if err := e.store.UpsertAlert(cp); err != nil {
			e.logger.Warnw("alert occurrence persist failed, next tick will reconcile", "id", cp.ID, "error", err)
		}
		return cp, nil
	}

	now := time.Now().UTC()
	a := model.Alert{
		ID:              uuid.NewString(),
		DeviceID:        p.DeviceID,
		DeviceIP:        p.DeviceIP,
		Type:            p.Type,
		Severity:        p.Severity,
		Message:         p.Message,
		CreatedAt:       now,
		OccurrenceCount: 1,
		LastOccurrence:  now,
	}
	cp := a
	e.active[a.ID] = &cp
	e.mu.Unlock()

	if err := e.store.InsertAlert(a); err != nil {
		e.logger.Warnw("alert persist failed, next tick will reconcile", "id", a.ID, "error", err)
	}
	if e.bus != nil {
		e.bus.Publish("alert_created", a)
	}
	return a, nil
}

// Ack acknowledges id.
func (e *Engine) Ack(id, who string) (model.Alert, error) {
	e.mu.Lock()
	a, ok := e.active[id]
	if !ok {
		e.mu.Unlock()
		return model.Alert{}, model.NewError(model.KindNotFound, "Ack", fmt.Errorf("alert %s", id))
	}
	if a.Acknowledged {
		e.mu.Unlock()
		return model.Alert{}, model.NewError(model.KindConflict, "Ack", fmt.Errorf("alert %s already acknowledged", id))
	}
	now := time.Now().UTC()
	a.Acknowledged = true
	a.AcknowledgedBy = who
	a.AcknowledgedAt = &now
	cp := *a
	e.mu.Unlock()

	if err := e.store.AckAlert(id, who); err != nil {
		e.logger.Warnw("ack persist failed, next tick will reconcile", "id", id, "error", err)
	}
	if e.bus != nil {
		e.bus.Publish("alert_acknowledged", cp)
	}
	return cp, nil
}

// Resolve resolves id, removing it from the active set. Resolving an id
// that an earlier Resolve call already resolved is a Conflict.
func (e *Engine) Resolve(id, who string) (model.Alert, error) {
	e.mu.Lock()
	a, ok := e.active[id]
	if !ok {
		for _, h := range e.history {
			if h.ID == id {
				e.mu.Unlock()
				return model.Alert{}, model.NewError(model.KindConflict, "Resolve", fmt.Errorf("alert %s already resolved", id))
			}
		}
		e.mu.Unlock()
		return model.Alert{}, model.NewError(model.KindNotFound, "Resolve", fmt.Errorf("alert %s", id))
	}
	if a.ResolvedAt != nil {
		e.mu.Unlock()
		return model.Alert{}, model.NewError(model.KindConflict, "Resolve", fmt.Errorf("alert %s already resolved", id))
	}
	now := time.Now().UTC()
	a.ResolvedAt = &now
	a.ResolvedBy = who
	cp := *a
	delete(e.active, id)
	e.history = append(e.history, cp)
	e.mu.Unlock()

	if err := e.store.ResolveAlert(id); err != nil {
		e.logger.Warnw("resolve persist failed, next tick will reconcile", "id", id, "error", err)
	}
	if e.bus != nil {
		e.bus.Publish("alert_resolved", cp)
	}
	return cp, nil
}

// Delete removes id from the active set and the Store.
func (e *Engine) Delete(id string) error {
	e.mu.Lock()
	delete(e.active, id)
	e.mu.Unlock()

	if err := e.store.DeleteAlert(id); err != nil {
		return err
	}
	if e.bus != nil {
		e.bus.Publish("alert_deleted", map[string]string{"id": id})
	}
	return nil
}

// AutoResolve resolves active alerts for (deviceID, t) that no longer
// meet their triggering condition. For cpu/memory/disk, that is
// current < thresholds.Warning; for offline, it is unconditional.
func (e *Engine) AutoResolve(deviceID string, t model.AlertType, current float64, thresholds config.Thresholds) {
	e.mu.Lock()
	var toResolve []*model.Alert
	for _, a := range e.active {
		if a.DeviceID != deviceID || a.Type != t {
			continue
		}
		if t == model.AlertOffline || current < thresholds.Warning {
			toResolve = append(toResolve, a)
		}
	}
	for _, a := range toResolve {
		delete(e.active, a.ID)
	}
	e.mu.Unlock()

	now := time.Now().UTC()
	for _, a := range toResolve {
		a.ResolvedAt = &now
		cp := *a
		if err := e.store.ResolveAlert(a.ID); err != nil {
			e.logger.Warnw("auto-resolve persist failed, next tick will reconcile", "id", a.ID, "error", err)
		}
		if e.bus != nil {
			e.bus.Publish("alert_resolved", cp)
		}
	}
}

// Active returns a snapshot of all currently-active alerts for deviceID
// (or every device when deviceID is empty).
func (e *Engine) Active(deviceID string) []model.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Alert, 0, len(e.active))
	for _, a := range e.active {
		if deviceID == "" || a.DeviceID == deviceID {
			out = append(out, *a)
		}
	}
	return out
}

// DeviceStatus derives a device's overall status from its active,
// unacknowledged alerts: critical wins over warning wins over online.
func (e *Engine) DeviceStatus(deviceID string) model.DeviceStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	status := model.StatusOnline
	for _, a := range e.active {
		if a.DeviceID != deviceID || a.Acknowledged {
			continue
		}
		if a.Severity == model.SeverityCritical {
			return model.StatusCritical
		}
		if a.Severity == model.SeverityWarning {
			status = model.StatusWarning
		}
	}
	return status
}

// Stats is an on-demand aggregate over the active set and history.
type Stats struct {
	Total           int                         `json:"total"`
	BySeverity      map[model.AlertSeverity]int `json:"by_severity"`
	ByType          map[model.AlertType]int     `json:"by_type"`
	ByDevice        map[string]int              `json:"by_device"`
	Acknowledged    int                         `json:"acknowledged"`
	Unacknowledged  int                         `json:"unacknowledged"`
	ResolvedLast24h int                         `json:"resolved_last_24h"`
}

// Stats computes totals, breakdowns, and 24h resolution count.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Stats{
		BySeverity: make(map[model.AlertSeverity]int),
		ByType:     make(map[model.AlertType]int),
		ByDevice:   make(map[string]int),
	}
	for _, a := range e.active {
		st.Total++
		st.BySeverity[a.Severity]++
		st.ByType[a.Type]++
		st.ByDevice[a.DeviceID]++
		if a.Acknowledged {
			st.Acknowledged++
		} else {
			st.Unacknowledged++
		}
	}
	cutoff := time.Now().Add(-24 * time.Hour)
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			st.ResolvedLast24h++
		}
	}
	return st
}
