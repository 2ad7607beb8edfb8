// Package gate decides whether a resolved role may enter a route partition.
package gate

import (
	"strings"

	"github.com/leavedesk/leavedesk/internal/profiles"
)

// Resource names a role-partitioned area of the application.
type Resource string

const (
	AdminArea Resource = "admin-area"
	StaffArea Resource = "staff-area"
)

// Landing targets for redirect decisions.
const (
	AdminHome = "/dashboard/admin"
	StaffHome = "/dashboard/staff"
	LoginPage = "/auth/login"
)

// Decision is the outcome of Authorize: either Allow, or a redirect to Target.
type Decision struct {
	Allow  bool
	Target string
}

// Redirect reports whether the decision sends the caller elsewhere.
func (d Decision) Redirect() bool {
	return !d.Allow
}

// Authorize evaluates the policy table. The empty role stands for an
// unauthenticated or unresolved caller.
func Authorize(role profiles.Role, res Resource) Decision {
	switch role {
	case profiles.RoleAdmin:
		if res == AdminArea {
			return Decision{Allow: true}
		}
		return Decision{Target: AdminHome}
	case profiles.RoleStaff:
		if res == StaffArea {
			return Decision{Allow: true}
		}
		return Decision{Target: StaffHome}
	default:
		return Decision{Target: LoginPage}
	}
}

// Home returns the landing page for role.
func Home(role profiles.Role) string {
	switch role {
	case profiles.RoleAdmin:
		return AdminHome
	case profiles.RoleStaff:
		return StaffHome
	default:
		return LoginPage
	}
}

// ResourceForPath maps a request path to its partition. ok is false for
// paths outside both partitions.
func ResourceForPath(path string) (Resource, bool) {
	switch {
	case underPrefix(path, "/dashboard/admin"), underPrefix(path, "/api/admin"):
		return AdminArea, true
	case underPrefix(path, "/dashboard/staff"), underPrefix(path, "/api/staff"):
		return StaffArea, true
	default:
		return "", false
	}
}

func underPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || rest[0] == '/'
}
