package domain

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusPending is the initial state of every new order.
	StatusPending Status = "pending"
	// StatusAccepted means the shop took the job.
	StatusAccepted Status = "accepted"
	// StatusTechnicianAssigned means a technician has been dispatched.
	StatusTechnicianAssigned Status = "technician_assigned"
	// StatusInProgress means work has started.
	StatusInProgress Status = "in_progress"
	// StatusCompleted is terminal.
	StatusCompleted Status = "completed"
	// StatusCancelled is terminal.
	StatusCancelled Status = "cancelled"
	// StatusRefunded is terminal.
	StatusRefunded Status = "refunded"
)

// AllStatuses lists every state in lifecycle order.
var AllStatuses = []Status{
	StatusPending,
	StatusAccepted,
	StatusTechnicianAssigned,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
	StatusRefunded,
}

// Valid reports whether s belongs to the fixed state set.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusTechnicianAssigned, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRefunded
}

// Role selects which side of an order a user is on.
type Role string

const (
	RoleCustomer  Role = "customer"
	RoleShopOwner Role = "shop_owner"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleShopOwner
}
