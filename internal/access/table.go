// Package access holds the role to route permission table used by the route guard.
package access

import (
	"strings"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
)

// Well-known paths.
const (
	RootPath  = "/"
	LoginPath = "/login"
)

// Entry describes what a role may see.
type Entry struct {
	DefaultRoute string
	// Prefixes are matched on whole path segments.
	Prefixes []string
	// DeniedFragments reject any path containing them, regardless of Prefixes.
	DeniedFragments []string
	// AllowAll grants every path except denied fragments.
	AllowAll bool
}

// sharedPrefixes are granted to every authenticated role.
var sharedPrefixes = []string{"/profile", "/notifications", "/settings"}

var table = map[domain.Role]Entry{
	domain.RoleWarehouseStaff: {
		DefaultRoute:    "/warehouse-dashboard",
		Prefixes:        []string{"/warehouse-dashboard", "/warehouse", "/inventory", "/pick-tasks", "/packing-tasks"},
		DeniedFragments: []string{"driver"},
	},
	domain.RoleLogisticsManager: {
		DefaultRoute: "/dashboard",
		Prefixes: []string{
			"/dashboard", "/routes", "/shipments", "/inventory", "/warehouse", "/analytics",
			"/sustainability", "/security", "/resilience", "/weather", "/locations", "/clients",
			"/driver-dashboard", "/multi-modal",
		},
	},
	domain.RoleDriver: {
		DefaultRoute: "/routes",
		Prefixes:     []string{"/routes", "/driver-dashboard", "/driver-routes", "/deliveries", "/weather"},
	},
	domain.RoleSales: {
		DefaultRoute: "/sales-dashboard",
		Prefixes:     []string{"/sales-dashboard", "/clients", "/orders", "/shipments"},
	},
	domain.RoleBusinessOwner: {
		DefaultRoute: "/dashboard",
		AllowAll:     true,
	},
	domain.RoleWarehouseOperator: {
		DefaultRoute: "/warehouse-operator-dashboard",
		Prefixes: []string{
			"/warehouse-operator-dashboard", "/warehouse", "/inventory", "/pick-tasks",
			"/packing-tasks", "/shipments", "/locations",
		},
	},
	domain.RoleManufacturer: {
		DefaultRoute: "/manufacturer-dashboard",
		Prefixes:     []string{"/manufacturer-dashboard", "/production", "/inventory", "/shipments", "/sustainability"},
	},
	domain.RoleCourier: {
		DefaultRoute: "/courier-dashboard",
		Prefixes:     []string{"/courier-dashboard", "/deliveries", "/routes", "/weather", "/locations"},
	},
	domain.RoleGovernmentOfficial: {
		DefaultRoute: "/government-dashboard",
		Prefixes:     []string{"/government-dashboard", "/compliance", "/sustainability", "/security", "/resilience"},
	},
}

// Lookup returns the table entry for a role.
func Lookup(role domain.Role) (Entry, bool) {
	entry, ok := table[role]
	return entry, ok
}

// DefaultRoute returns the landing page of a role, or LoginPath for unknown roles.
func DefaultRoute(role domain.Role) string {
	if entry, ok := table[role]; ok {
		return entry.DefaultRoute
	}
	return LoginPath
}

// Denied reports whether the path contains a fragment the role may never see.
func Denied(role domain.Role, path string) bool {
	entry, ok := table[role]
	if !ok {
		return true
	}
	lower := strings.ToLower(path)
	for _, fragment := range entry.DeniedFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// Allowed reports whether the role may render path.
func Allowed(role domain.Role, path string) bool {
	entry, ok := table[role]
	if !ok || Denied(role, path) {
		return false
	}
	if entry.AllowAll || path == entry.DefaultRoute {
		return true
	}
	for _, prefix := range sharedPrefixes {
		if HasSegmentPrefix(path, prefix) {
			return true
		}
	}
	for _, prefix := range entry.Prefixes {
		if HasSegmentPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// HasSegmentPrefix reports whether path equals prefix or continues it with a new segment.
func HasSegmentPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
