// Package principal resolves the acting identity for a request. Lookups are
// registered per role, so adding a role never grows a switch statement
// elsewhere.
package principal

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role tags the kind of caller.
type Role string

const (
	RoleCustomer        Role = "customer"
	RoleDeliveryPartner Role = "deliveryPartner"
	RoleAdmin           Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleDeliveryPartner || r == RoleAdmin
}

// Principal is the resolved caller identity trusted by ownership checks.
type Principal struct {
	ID   primitive.ObjectID
	Role Role
	Name string
}

// Lookup loads the principal entity for one role.
type Lookup func(ctx context.Context, id primitive.ObjectID) (Principal, error)

// ErrUnknownRole is returned for roles with no registered lookup.
var ErrUnknownRole = errors.New("unknown principal role")

// Resolver dispatches principal resolution by role tag.
type Resolver struct {
	lookups map[Role]Lookup
}

// NewResolver returns an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{lookups: make(map[Role]Lookup)}
}

// Register binds a lookup to a role. Registration happens at wiring time,
// before any request is served.
func (r *Resolver) Register(role Role, lookup Lookup) {
	r.lookups[role] = lookup
}

// Resolve loads the principal for (role, id).
func (r *Resolver) Resolve(ctx context.Context, role Role, id primitive.ObjectID) (Principal, error) {
	lookup, ok := r.lookups[role]
	if !ok {
		return Principal{}, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return lookup(ctx, id)
}
