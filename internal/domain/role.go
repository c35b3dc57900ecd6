package domain

import "fmt"

// Role enumerates the dashboard personas.
type Role string

const (
	RoleWarehouseStaff     Role = "warehouse_staff"
	RoleLogisticsManager   Role = "logistics_manager"
	RoleDriver             Role = "driver"
	RoleSales              Role = "sales"
	RoleBusinessOwner      Role = "business_owner"
	RoleWarehouseOperator  Role = "warehouse_operator"
	RoleManufacturer       Role = "manufacturer"
	RoleCourier            Role = "courier"
	RoleGovernmentOfficial Role = "government_official"
)

// Roles lists every known role in a stable order.
var Roles = []Role{
	RoleWarehouseStaff,
	RoleLogisticsManager,
	RoleDriver,
	RoleSales,
	RoleBusinessOwner,
	RoleWarehouseOperator,
	RoleManufacturer,
	RoleCourier,
	RoleGovernmentOfficial,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}
