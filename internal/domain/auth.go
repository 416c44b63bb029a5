package domain

// Role user role carried in the session token
type Role string

// known roles
const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superAdmin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Principal authenticated caller
type Principal struct {
	UserID string
	Role   Role
}

// IsElevated admin or superAdmin
func (p Principal) IsElevated() bool {
	return p.Role == RoleAdmin || p.Role == RoleSuperAdmin
}

// Operation guarded action
type Operation int

// guarded operations
const (
	OpViewProgress Operation = iota
	OpViewStats
	OpDeleteProgress
	OpListAllProgress
	OpCourseOverview
	OpViewEnrollment
	OpReviewEnrollment
	OpDeleteEnrollment
	OpListAllEnrollments
)

var operationNames = map[Operation]string{
	OpViewProgress:       "view this user's progress",
	OpViewStats:          "view this user's stats",
	OpDeleteProgress:     "delete this progress record",
	OpListAllProgress:    "view all users progress",
	OpCourseOverview:     "view the course overview",
	OpViewEnrollment:     "view this enrollment request",
	OpReviewEnrollment:   "review enrollment requests",
	OpDeleteEnrollment:   "delete this request",
	OpListAllEnrollments: "view all enrollment requests",
}

func (op Operation) String() string {
	if name, ok := operationNames[op]; ok {
		return name
	}
	return "perform this operation"
}

// elevatedOnly operations never granted to resource owners
func (op Operation) elevatedOnly() bool {
	switch op {
	case OpListAllProgress, OpCourseOverview, OpReviewEnrollment, OpListAllEnrollments:
		return true
	}
	return false
}

// Authorize decides whether p may perform op on a resource owned by ownerID.
//
// ownerID is ignored for elevated-only operations.
func Authorize(p Principal, ownerID string, op Operation) error {
	if p.UserID == "" {
		return Unauthenticated("user not authenticated")
	}
	if p.IsElevated() {
		return nil
	}
	if !op.elevatedOnly() && ownerID != "" && p.UserID == ownerID {
		return nil
	}
	return Forbidden("not authorized to %s", op)
}
