package auth

// Known OAuth scopes accepted by the tracker.
const (
	ScopeHabitsWrite = "habits:write"
	ScopeHabitsRead  = "habits:read"
)
