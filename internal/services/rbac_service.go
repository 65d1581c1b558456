package services

import (
	"marketplace/internal/common"
	"marketplace/internal/models"
)

// Action is a guarded mutation.
type Action uint8

const (
	CreateCategory Action = iota + 1
	UpdateCategory
	DeleteCategory
	CreateProduct
	UpdateProduct
	DeleteProduct
	CreateReview
	DeleteReview
)

var actionNames = map[Action]string{
	CreateCategory: "create category",
	UpdateCategory: "update category",
	DeleteCategory: "delete category",
	CreateProduct:  "create product",
	UpdateProduct:  "update product",
	DeleteProduct:  "delete product",
	CreateReview:   "create review",
	DeleteReview:   "delete review",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown action"
}

type rule struct {
	role      models.Role
	ownerOnly bool
}

// policy is the whole authorization table. Actions missing from it are denied.
var policy = map[Action]rule{
	CreateCategory: {role: models.RoleAdmin},
	UpdateCategory: {role: models.RoleAdmin, ownerOnly: true},
	DeleteCategory: {role: models.RoleAdmin, ownerOnly: true},
	CreateProduct:  {role: models.RoleSeller},
	UpdateProduct:  {role: models.RoleSeller, ownerOnly: true},
	DeleteProduct:  {role: models.RoleSeller, ownerOnly: true},
	CreateReview:   {role: models.RoleBuyer},
	DeleteReview:   {role: models.RoleAdmin},
}

type DenyKind uint8

const (
	Allowed DenyKind = iota
	DenyInactive
	DenyRole
	DenyOwnership
)

// Decision is the outcome of one authorization check.
type Decision struct {
	Action Action
	Kind   DenyKind
}

func (d Decision) Allowed() bool {
	return d.Kind == Allowed
}

// Err converts a denial into the error surfaced to callers. Ownership denials
// look exactly like a missing entity.
func (d Decision) Err(entity string) error {
	switch d.Kind {
	case Allowed:
		return nil
	case DenyOwnership:
		return common.NotFound(entity)
	case DenyInactive:
		return common.Forbidden("inactive account")
	default:
		return common.Forbidden("not allowed to " + d.Action.String())
	}
}

// Guard decides whether a principal may perform an action on a target.
type Guard interface {
	Authorize(p models.Principal, action Action, target models.Resource) Decision
}

type guard struct{}

func NewGuard() Guard {
	return guard{}
}

// Authorize is pure. target may be nil for create actions.
func (guard) Authorize(p models.Principal, action Action, target models.Resource) Decision {
	if !p.Active {
		return Decision{Action: action, Kind: DenyInactive}
	}

	r, ok := policy[action]
	if !ok || p.Role != r.role {
		return Decision{Action: action, Kind: DenyRole}
	}

	if r.ownerOnly && (target == nil || target.OwnerID() != p.ID) {
		return Decision{Action: action, Kind: DenyOwnership}
	}
	return Decision{Action: action, Kind: Allowed}
}
