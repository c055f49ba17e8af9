package partners

import (
	"time"
)

// Partner represents a business partner a dispatch can be addressed to.
// Active is nullable in the legacy schema; a partner with no flag set
// counts as active.
type Partner struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Active    *bool     `json:"active,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive resolves the nullable flag with the legacy default.
func (p Partner) IsActive() bool {
	return p.Active == nil || *p.Active
}
