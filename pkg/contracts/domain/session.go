package domain

// Session is the provider-issued token pair returned after a successful
// credential exchange. It is never persisted by this service.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// Role values carried in identity metadata under the user_type key.
const (
	RoleOutletOwner    = "outlet_owner"
	RoleChainOwner     = "chain_owner"
	RoleSectionManager = "section_manager"
	RoleAdmin          = "admin"
)

// Identity metadata keys. The linked tenant id lives under OutletIDKey or
// ChainIDKey depending on role; section managers additionally carry
// SectionIDKey.
const (
	UserTypeKey  = "user_type"
	OutletIDKey  = "outlet_id"
	ChainIDKey   = "chain_id"
	SectionIDKey = "section_id"
	FullNameKey  = "full_name"
)
