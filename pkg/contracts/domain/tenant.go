// Package domain holds the canonical data contracts shared between the
// transport layer, services and external store clients.
package domain

import "time"

// TenantKind discriminates the two tenant record types a license key can
// activate.
type TenantKind string

const (
	TenantOutlet TenantKind = "outlet"
	TenantChain  TenantKind = "chain"
)

// KeyKind is the administrative classification of a license key.
type KeyKind string

const (
	KeyLicense KeyKind = "license"
	KeyMaster  KeyKind = "master"
	KeyBranch  KeyKind = "branch"
)

// TenantRef is the resolver's answer: which tenant a code activates.
type TenantRef struct {
	Kind TenantKind `json:"kind"`
	ID   string     `json:"id"`
	Name string     `json:"name"`
}

// LicenseKey is a row in the secondary key ledger. Historical codes live
// directly on tenant rows instead and never appear here.
type LicenseKey struct {
	ID         string     `json:"id"`
	LicenseKey string     `json:"license_key"`
	KeyType    KeyKind    `json:"key_type"`
	OutletID   *string    `json:"outlet_id,omitempty"`
	ChainID    *string    `json:"chain_id,omitempty"`
	IsUsed     bool       `json:"is_used"`
	UsedBy     *string    `json:"used_by,omitempty"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Outlet is a single restaurant outlet tenant record.
type Outlet struct {
	ID             string     `json:"id"`
	OutletName     string     `json:"outlet_name"`
	OutletType     string     `json:"outlet_type"`
	OwnerName      string     `json:"owner_name,omitempty"`
	OwnerEmail     string     `json:"owner_email,omitempty"`
	OwnerPhone     string     `json:"owner_phone,omitempty"`
	Address        string     `json:"address,omitempty"`
	City           string     `json:"city,omitempty"`
	LicenseKey     string     `json:"license_key,omitempty"`
	LicenseKeyUsed bool       `json:"license_key_used"`
	IsActive       bool       `json:"is_active"`
	PlanID         *string    `json:"plan_id,omitempty"`
	PlanStartDate  *time.Time `json:"plan_start_date,omitempty"`
	PlanEndDate    *time.Time `json:"plan_end_date,omitempty"`
	ChainID        *string    `json:"chain_id,omitempty"`
	AuthUserID     *string    `json:"auth_user_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Chain is a restaurant chain tenant record activated by a master key.
type Chain struct {
	ID               string     `json:"id"`
	ChainName        string     `json:"chain_name"`
	MasterAdminName  string     `json:"master_admin_name,omitempty"`
	MasterAdminEmail string     `json:"master_admin_email,omitempty"`
	MasterLicenseKey string     `json:"master_license_key,omitempty"`
	MasterKeyUsed    bool       `json:"master_key_used"`
	IsActive         bool       `json:"is_active"`
	TotalOutlets     int        `json:"total_outlets"`
	PlanEndDate      *time.Time `json:"plan_end_date,omitempty"`
	AuthUserID       *string    `json:"auth_user_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// AdminUser is a row in the administrator registry. Admin status is a
// separate grant: a valid identity alone is not sufficient.
type AdminUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// SectionManager is a section-scoped sub-account under an outlet.
type SectionManager struct {
	ID         string    `json:"id"`
	OutletID   string    `json:"outlet_id"`
	SectionID  string    `json:"section_id"`
	AuthUserID string    `json:"auth_user_id"`
	FullName   string    `json:"full_name,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// OutletDailyStats is a per-outlet daily analysis row, aggregated by the
// chain dashboard. Produced by a downstream analytics collaborator.
type OutletDailyStats struct {
	OutletID          string  `json:"outlet_id"`
	AnalysisDate      string  `json:"analysis_date"`
	TotalOrders       int     `json:"total_orders"`
	TotalRevenue      float64 `json:"total_revenue"`
	DineInCount       int     `json:"dine_in_count"`
	TakeawayCount     int     `json:"takeaway_count"`
	DeliveryCount     int     `json:"delivery_count"`
	DineInRevenue     float64 `json:"dine_in_revenue"`
	TakeawayRevenue   float64 `json:"takeaway_revenue"`
	DeliveryRevenue   float64 `json:"delivery_revenue"`
	CancelledOrders   int     `json:"cancelled_orders"`
	AverageOrderValue float64 `json:"average_order_value"`
}
