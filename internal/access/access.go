// Package access decides which actor may perform which operation on which
// resource. Every core operation calls Authorize (or Require) with the acting
// identity passed explicitly.
package access

import (
	"fmt"

	"github.com/talkincode/pizzeria/internal/apperr"
)

// Actor is an authenticated identity. A nil *Actor means unauthenticated.
type Actor struct {
	UserID     int64
	Username   string
	Privileged bool
}

// Owns reports whether ownerID identifies this actor.
func (a *Actor) Owns(ownerID int64) bool {
	return a != nil && ownerID != 0 && a.UserID == ownerID
}

type Operation string

const (
	OpList     Operation = "list"
	OpRead     Operation = "read"
	OpCreate   Operation = "create"
	OpUpdate   Operation = "update"
	OpDelete   Operation = "delete"
	OpComplete Operation = "complete" // administrative bulk Pending -> Completed
	OpCapture  Operation = "capture"
	OpExport   Operation = "export"
)

type Kind string

const (
	MenuItem    Kind = "menu_item"
	Topping     Kind = "topping"
	Order       Kind = "order"
	OrderItem   Kind = "order_item"
	Transaction Kind = "transaction"
	Profile     Kind = "profile"
)

// Resource identifies what an operation targets. OwnerID is the owning user
// of a specific record, zero for collections and unowned records.
type Resource struct {
	Kind    Kind
	OwnerID int64
}

func On(kind Kind) Resource {
	return Resource{Kind: kind}
}

func Owned(kind Kind, ownerID int64) Resource {
	return Resource{Kind: kind, OwnerID: ownerID}
}

// Decision is the tagged result of Authorize.
type Decision struct {
	Allowed         bool
	Reason          string
	Unauthenticated bool
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

func denyAnonymous() Decision {
	return Decision{Reason: "authentication credentials were not provided", Unauthenticated: true}
}

// Err converts a denial into the error surfaced to clients, nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Unauthenticated {
		return apperr.Unauthenticated(d.Reason)
	}
	return apperr.Forbidden(d.Reason)
}

func (d Decision) String() string {
	if d.Allowed {
		return "allow"
	}
	return "deny(" + d.Reason + ")"
}

// Authorize evaluates the access matrix for actor performing op on res.
func Authorize(actor *Actor, op Operation, res Resource) Decision {
	if actor == nil {
		return denyAnonymous()
	}
	switch res.Kind {
	case MenuItem, Topping:
		return catalogRule(actor, op)
	case Order:
		return orderRule(actor, op, res)
	case OrderItem:
		return orderItemRule(actor, op, res)
	case Transaction:
		return transactionRule(actor, op)
	case Profile:
		if actor.Owns(res.OwnerID) && (op == OpRead || op == OpUpdate) {
			return Allow()
		}
		return Deny("you may only access your own profile")
	}
	return Deny(fmt.Sprintf("unknown resource %q", res.Kind))
}

// Authenticated fails for a nil actor.
func Authenticated(actor *Actor) error {
	if actor == nil {
		return denyAnonymous().Err()
	}
	return nil
}

// Require is Authorize returning the denial as an error.
func Require(actor *Actor, op Operation, res Resource) error {
	return Authorize(actor, op, res).Err()
}

func catalogRule(actor *Actor, op Operation) Decision {
	switch op {
	case OpList, OpRead:
		return Allow()
	case OpCreate, OpUpdate, OpDelete:
		if actor.Privileged {
			return Allow()
		}
		return Deny("administrative privilege required")
	}
	return Deny(fmt.Sprintf("operation %q not supported on catalog", op))
}

func orderRule(actor *Actor, op Operation, res Resource) Decision {
	switch op {
	case OpList, OpCreate:
		// list results are scoped by the caller
		return Allow()
	case OpRead, OpUpdate, OpDelete:
		if actor.Privileged || actor.Owns(res.OwnerID) {
			return Allow()
		}
		return Deny("you do not have permission to access this order")
	case OpComplete:
		if actor.Privileged {
			return Allow()
		}
		return Deny("administrative privilege required")
	}
	return Deny(fmt.Sprintf("operation %q not supported on orders", op))
}

// Line item writes are reserved to the order owner, privileged actors included.
func orderItemRule(actor *Actor, op Operation, res Resource) Decision {
	switch op {
	case OpList:
		return Allow()
	case OpRead:
		if actor.Privileged || actor.Owns(res.OwnerID) {
			return Allow()
		}
		return Deny("you do not have permission to access this order item")
	case OpCreate:
		if actor.Owns(res.OwnerID) {
			return Allow()
		}
		return Deny("you cannot add items to someone else's order")
	case OpUpdate, OpDelete:
		if actor.Owns(res.OwnerID) {
			return Allow()
		}
		return Deny("you cannot modify items of someone else's order")
	}
	return Deny(fmt.Sprintf("operation %q not supported on order items", op))
}

func transactionRule(actor *Actor, op Operation) Decision {
	switch op {
	case OpCapture, OpList:
		return Allow()
	case OpExport:
		if actor.Privileged {
			return Allow()
		}
		return Deny("administrative privilege required")
	}
	return Deny(fmt.Sprintf("operation %q not supported on transactions", op))
}
