package address

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-core/internal/identity"
)

// All shipping happens inside one metro area; city and country are fixed
// server-side and never taken from the client.
const (
	FixedCity    = "Cairo"
	FixedCountry = "Egypt"
)

var (
	ErrValidation  = errors.New("address validation failed")
	ErrNotFound    = errors.New("address not found")
	ErrPersistence = errors.New("address persistence failed")
)

type Address struct {
	ID string `json:"id"`

	// Owning actor partition: exactly one of the two is non-nil.
	UserID    *string `json:"user_id,omitempty"`
	SessionID *string `json:"session_id,omitempty"`

	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Building int    `json:"building"`
	Floor    int    `json:"floor"`
	Flat     int    `json:"flat"`
	District string `json:"district"`
	City     string `json:"city"`
	Country  string `json:"country"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Fields is the client-supplied address payload.
type Fields struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Building int    `json:"building"`
	Floor    int    `json:"floor"`
	Flat     int    `json:"flat"`
	District string `json:"district"`
}

// PartialFields updates individual columns in place. Nil fields are
// untouched.
type PartialFields struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty"`
	Building *int    `json:"building,omitempty"`
	Floor    *int    `json:"floor,omitempty"`
	Flat     *int    `json:"flat,omitempty"`
	District *string `json:"district,omitempty"`
}

func (f Fields) Validate() error {
	for name, v := range map[string]string{
		"name":     f.Name,
		"email":    f.Email,
		"phone":    f.Phone,
		"address":  f.Address,
		"district": f.District,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, name)
		}
	}
	for name, v := range map[string]int{
		"building": f.Building,
		"floor":    f.Floor,
		"flat":     f.Flat,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be greater than zero", ErrValidation, name)
		}
	}
	return nil
}

// Store keeps at most one address per actor partition. Create replaces any
// prior row for the same actor in a single transaction; Get and Update are
// strictly partition-scoped and never fall back across partitions.
type Store interface {
	Create(ctx context.Context, actor identity.ActorIdentity, f Fields) (*Address, error)
	Update(ctx context.Context, actor identity.ActorIdentity, p PartialFields) (*Address, error)
	Get(ctx context.Context, actor identity.ActorIdentity) (*Address, error)
}

func (p PartialFields) apply(a *Address) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Email != nil {
		a.Email = *p.Email
	}
	if p.Phone != nil {
		a.Phone = *p.Phone
	}
	if p.Address != nil {
		a.Address = *p.Address
	}
	if p.Building != nil {
		a.Building = *p.Building
	}
	if p.Floor != nil {
		a.Floor = *p.Floor
	}
	if p.Flat != nil {
		a.Flat = *p.Flat
	}
	if p.District != nil {
		a.District = *p.District
	}
}
