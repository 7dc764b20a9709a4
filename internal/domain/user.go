package domain

// User owns every attribute, record and Jira connection in the system.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        *string
}
