package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/repository"
	apperrors "github.com/spec-kit/logistics-dashboard/pkg/util"
)

const (
	alertsPerSource   = 5
	activitiesPerPush = 20
)

// sections controls which parts of the dashboard a role sees.
type sections struct {
	tasks    bool
	security bool
	weather  bool
}

var roleSections = map[domain.Role]sections{
	domain.RoleWarehouseStaff:     {tasks: true},
	domain.RoleWarehouseOperator:  {tasks: true},
	domain.RoleLogisticsManager:   {tasks: true, security: true, weather: true},
	domain.RoleBusinessOwner:      {tasks: true, security: true, weather: true},
	domain.RoleDriver:             {weather: true},
	domain.RoleCourier:            {weather: true},
	domain.RoleGovernmentOfficial: {security: true},
	domain.RoleManufacturer:       {},
	domain.RoleSales:              {},
}

// DashboardService assembles per-role dashboard snapshots.
type DashboardService struct {
	tasks      repository.TaskRepository
	resources  repository.ResourceRepository
	activities *ActivityLog
	logger     *zap.Logger
	now        func() time.Time
}

// NewDashboardService constructs the service.
func NewDashboardService(tasks repository.TaskRepository, resources repository.ResourceRepository, activities *ActivityLog, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if activities == nil {
		activities = NewActivityLog(0)
	}
	return &DashboardService{
		tasks:      tasks,
		resources:  resources,
		activities: activities,
		logger:     logger,
		now:        time.Now,
	}
}

// Snapshot builds the dashboard for role.
func (s *DashboardService) Snapshot(ctx context.Context, role domain.Role) (domain.DashboardSnapshot, error) {
	sec, ok := roleSections[role]
	if !ok {
		return domain.DashboardSnapshot{}, apperrors.NewForbidden("unknown role")
	}

	snap := domain.DashboardSnapshot{
		Metrics:     map[string]float64{},
		Alerts:      []domain.Alert{},
		Activities:  s.activities.Recent(activitiesPerPush),
		LastUpdated: s.now().UTC(),
	}

	if sec.tasks {
		counts, err := s.tasks.CountByStatus(ctx)
		if err != nil {
			return domain.DashboardSnapshot{}, apperrors.MapError(err)
		}
		for _, kind := range []domain.TaskKind{domain.TaskKindPick, domain.TaskKindPacking} {
			for _, status := range []domain.TaskStatus{
				domain.TaskStatusPending,
				domain.TaskStatusInProgress,
				domain.TaskStatusCompleted,
				domain.TaskStatusCancelled,
			} {
				snap.Metrics[fmt.Sprintf("%s_tasks_%s", kind, status)] = float64(counts[kind][status])
			}
		}
	}
	if sec.security {
		alerts, err := s.alerts(ctx, domain.ResourceSecurityAlerts, "security")
		if err != nil {
			return domain.DashboardSnapshot{}, err
		}
		snap.Metrics["security_alerts_open"] = float64(len(alerts))
		snap.Alerts = append(snap.Alerts, alerts...)
	}
	if sec.weather {
		alerts, err := s.alerts(ctx, domain.ResourceWeatherAlerts, "weather")
		if err != nil {
			return domain.DashboardSnapshot{}, err
		}
		snap.Metrics["weather_alerts_active"] = float64(len(alerts))
		snap.Alerts = append(snap.Alerts, alerts...)
	}
	return snap, nil
}

// alertDocument is the subset of an alert resource the dashboard understands.
type alertDocument struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Message     string               `json:"message"`
	Description string               `json:"description"`
	Severity    domain.AlertSeverity `json:"severity"`
	Status      string               `json:"status"`
}

func (s *DashboardService) alerts(ctx context.Context, kind domain.ResourceKind, source string) ([]domain.Alert, error) {
	items, err := s.resources.List(ctx, kind, repository.ResourceFilter{Limit: alertsPerSource})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	alerts := make([]domain.Alert, 0, len(items))
	for _, item := range items {
		var doc alertDocument
		if err := json.Unmarshal(item.Payload, &doc); err != nil {
			s.logger.Debug("skipping unreadable alert", zap.String("id", item.ID), zap.Error(err))
			continue
		}
		if doc.Status == "resolved" || doc.Status == "closed" {
			continue
		}
		alerts = append(alerts, domain.Alert{
			ID:        item.ID,
			Source:    source,
			Severity:  normalizeSeverity(doc.Severity),
			Message:   firstNonEmpty(doc.Message, doc.Title, doc.Description, string(kind)),
			CreatedAt: item.UpdatedAt,
		})
	}
	return alerts, nil
}

func normalizeSeverity(s domain.AlertSeverity) domain.AlertSeverity {
	switch s {
	case domain.SeverityWarning, domain.SeverityCritical:
		return s
	case "high":
		return domain.SeverityCritical
	case "medium":
		return domain.SeverityWarning
	}
	return domain.SeverityInfo
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
