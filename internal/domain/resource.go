package domain

import (
	"encoding/json"
	"time"
)

// ResourceKind names a read-only document collection served by the API.
type ResourceKind string

const (
	ResourceRoutes               ResourceKind = "routes"
	ResourceInventory            ResourceKind = "inventory"
	ResourceShipments            ResourceKind = "shipments"
	ResourceSustainabilityMetric ResourceKind = "sustainability_metrics"
	ResourceSecurityAlerts       ResourceKind = "security_alerts"
	ResourceResilienceForecasts  ResourceKind = "resilience_forecasts"
	ResourceMultiModalRoutes     ResourceKind = "multi_modal_routes"
	ResourceWeatherAlerts        ResourceKind = "weather_alerts"
	ResourceLocations            ResourceKind = "locations"
)

// Resource is a stored JSON document of a given kind.
type Resource struct {
	ID        string          `json:"id"`
	Kind      ResourceKind    `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

var resourcePaths = map[ResourceKind]string{
	ResourceRoutes:               "/routes",
	ResourceInventory:            "/inventory",
	ResourceShipments:            "/shipments",
	ResourceSustainabilityMetric: "/sustainability/metrics",
	ResourceSecurityAlerts:       "/security/alerts",
	ResourceResilienceForecasts:  "/resilience/forecasts",
	ResourceMultiModalRoutes:     "/routes/multi-modal",
	ResourceWeatherAlerts:        "/weather/alerts",
	ResourceLocations:            "/locations",
}

// ResourceKinds lists every served collection.
var ResourceKinds = []ResourceKind{
	ResourceRoutes,
	ResourceInventory,
	ResourceShipments,
	ResourceSustainabilityMetric,
	ResourceSecurityAlerts,
	ResourceResilienceForecasts,
	ResourceMultiModalRoutes,
	ResourceWeatherAlerts,
	ResourceLocations,
}

// APIPath is the collection path below /api.
func (k ResourceKind) APIPath() string {
	return resourcePaths[k]
}

// ParseResourceKind validates a kind name.
func ParseResourceKind(raw string) (ResourceKind, bool) {
	k := ResourceKind(raw)
	_, ok := resourcePaths[k]
	return k, ok
}
