package types

// AccountID identifies a beneficiary, payer or custody account.
// The engine treats it as opaque; it carries no settlement-network meaning.
type AccountID string

// Token identifies the settlement asset a balance is denominated in.
type Token string

// Zero reports whether the account is unset.
func (a AccountID) Zero() bool {
	return a == ""
}

// Role classifies a commission payee.
type Role string

const (
	RoleAgent    Role = "AGENT"
	RoleMerchant Role = "MERCHANT"
	RolePlatform Role = "PLATFORM"
)

// CommissionCategory classifies what a commission record compensates.
type CommissionCategory string

const (
	CategoryExecution CommissionCategory = "EXECUTION"
	CategoryReferral  CommissionCategory = "REFERRAL"
	CategoryPlatform  CommissionCategory = "PLATFORM"
	CategoryOffRamp   CommissionCategory = "OFFRAMP"
)
