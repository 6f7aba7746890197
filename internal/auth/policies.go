package auth

import (
	"fmt"

	"go-blog-app/internal/data"
	"go-blog-app/internal/logger"

	"github.com/casbin/casbin/v2"
)

// SeedDefaultPolicies ensures the baseline authorization rules exist.
// Each policy is checked before it is added, so running it on every
// start is safe.
func SeedDefaultPolicies(e casbin.IEnforcer, log logger.Logger) {
	log.Info("Seeding default authorization policies...")

	// Only the write routes are enforced; public pages never reach casbin.
	// Ownership of a particular post is checked by CanModifyPost.
	policies := [][]string{
		{RoleAuthor, "/post/new/", "GET"},
		{RoleAuthor, "/post/new/", "POST"},
		{RoleAuthor, "/post/:slug/edit/", "GET"},
		{RoleAuthor, "/post/:slug/edit/", "POST"},
		{RoleAuthor, "/post/:slug/delete/", "GET"},
		{RoleAuthor, "/post/:slug/delete/", "POST"},
		{RoleAuthor, "/auth/logout", "GET"},

		{RoleStaff, "/categories/new/", "GET"},
		{RoleStaff, "/categories/new/", "POST"},
	}
	for _, p := range policies {
		if has, _ := e.HasPolicy(p); !has {
			if _, err := e.AddPolicy(p); err != nil {
				log.Error(err, fmt.Sprintf("Failed to add policy %v", p))
			}
		}
	}

	// Staff can do everything an author can.
	if has, _ := e.HasRoleForUser(RoleStaff, RoleAuthor); !has {
		if _, err := e.AddRoleForUser(RoleStaff, RoleAuthor); err != nil {
			log.Error(err, "Failed to add role 'staff' -> 'author'")
		}
	}
	log.Info("Policy seeding complete.")
}

// AssignRoles grants a signed-in user the author role, plus staff when the
// user record says so. Roles are only ever added.
func AssignRoles(e casbin.IEnforcer, user *data.User) error {
	roles := []string{RoleAuthor}
	if user.IsStaff {
		roles = append(roles, RoleStaff)
	}
	for _, role := range roles {
		if has, _ := e.HasRoleForUser(user.Subject, role); has {
			continue
		}
		if _, err := e.AddRoleForUser(user.Subject, role); err != nil {
			return fmt.Errorf("failed to assign role %s: %w", role, err)
		}
	}
	return nil
}
