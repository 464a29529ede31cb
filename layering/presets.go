package layering

import "github.com/goliatone/go-lazyconf"

const (
	// Recommended priorities for common layering patterns. Higher numbers win.
	PrioritySystem = 100
	PriorityTenant = 200
	PriorityOrg    = 300
	PriorityTeam   = 400
	PriorityUser   = 500
)

// SystemTenantOrgTeamUser builds the canonical five-layer stack
// (system, tenant, org, team, user). Nil trees are allowed and contribute
// nothing.
func SystemTenantOrgTeamUser(system, tenant, org, team, user *lazyconf.Mapping) (*Stack, error) {
	return NewStack(
		NewLayer(NewScope("user", PriorityUser, WithScopeLabel("User")), user),
		NewLayer(NewScope("team", PriorityTeam, WithScopeLabel("Team")), team),
		NewLayer(NewScope("org", PriorityOrg, WithScopeLabel("Organization")), org),
		NewLayer(NewScope("tenant", PriorityTenant, WithScopeLabel("Tenant")), tenant),
		NewLayer(NewScope("system", PrioritySystem, WithScopeLabel("System Defaults")), system),
	)
}
