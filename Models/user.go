package Models

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleGeneral Role = "general"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleGeneral
}

// AppUser is the identity-provider user merged with its profile document.
type AppUser struct {
	UID          string   `json:"uid"`
	Email        string   `json:"email"`
	DisplayName  string   `json:"display_name"`
	JobTitle     string   `json:"job_title"`
	Role         Role     `json:"role"`
	PasswordHash string   `json:"-"`
	PushTokens   []string `json:"-"`
}

func (u AppUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}
