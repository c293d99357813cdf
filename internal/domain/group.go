package domain

// Well-known connection groups. Any other group name is accepted verbatim.
const (
	GroupAdmin = "admin"
	GroupStaff = "staff"
	GroupUsers = "users"

	// GroupAll is the notification target meaning "every group".
	GroupAll = "all"
)
