package auth

import "time"

// Scope represents an API key capability
type Scope string

const (
	ScopeRead    Scope = "read"    // Read prompts and blueprints
	ScopeResolve Scope = "resolve" // Resolve prompts with parameters
	ScopeWrite   Scope = "write"   // Create and update resources
	ScopeAdmin   Scope = "admin"   // Satisfies every scope check
)

// Valid reports whether s is one of the known scopes
func (s Scope) Valid() bool {
	switch s {
	case ScopeRead, ScopeResolve, ScopeWrite, ScopeAdmin:
		return true
	}
	return false
}

// Plan represents the billing tier of a workspace
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
	PlanTeam Plan = "team"
)

// Valid reports whether p is one of the known plans
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanTeam:
		return true
	}
	return false
}

// APIKeyCredential is a stored API key as seen by the gateway.
// The raw key is never stored, only its SHA-256 digest.
type APIKeyCredential struct {
	ID            string     `json:"id"`
	KeyHash       string     `json:"-"` // Never expose hash
	WorkspaceID   string     `json:"workspace_id"`
	WorkspacePlan Plan       `json:"workspace_plan"`
	Scopes        []Scope    `json:"scopes"`
	AppID         *string    `json:"app_id,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
}

// Expired reports whether the credential has an expiry in the past
func (c *APIKeyCredential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// AuthContext holds the identity of an authenticated request.
// It is derived from an APIKeyCredential and not modified afterwards.
type AuthContext struct {
	APIKeyID      string  `json:"api_key_id"`
	WorkspaceID   string  `json:"workspace_id"`
	WorkspacePlan Plan    `json:"plan"`
	Scopes        []Scope `json:"scopes"`
	AppID         *string `json:"app_id,omitempty"`
}

// NewAuthContext builds an AuthContext from a credential
func NewAuthContext(cred *APIKeyCredential) *AuthContext {
	scopes := make([]Scope, len(cred.Scopes))
	copy(scopes, cred.Scopes)

	var appID *string
	if cred.AppID != nil {
		id := *cred.AppID
		appID = &id
	}

	return &AuthContext{
		APIKeyID:      cred.ID,
		WorkspaceID:   cred.WorkspaceID,
		WorkspacePlan: cred.WorkspacePlan,
		Scopes:        scopes,
		AppID:         appID,
	}
}

// HasScope checks if the context has a specific scope.
// ScopeAdmin satisfies any scope; no other scope implies another.
func (ac *AuthContext) HasScope(scope Scope) bool {
	return hasScope(ac.Scopes, scope)
}

// AppRestricted reports whether the key may only operate on one app
func (ac *AuthContext) AppRestricted() bool {
	return ac.AppID != nil
}

func hasScope(scopes []Scope, scope Scope) bool {
	for _, s := range scopes {
		if s == ScopeAdmin || s == scope {
			return true
		}
	}
	return false
}
