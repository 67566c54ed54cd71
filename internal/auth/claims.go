package auth

import "github.com/golang-jwt/jwt/v5"

// Role names. Keep these stable; tokens in flight carry them.
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleViewer
}

// Claims is the only supported JWT claims shape for the operator API.
// Tokens are access tokens only; there is no refresh flow. Viewers get
// the read endpoints, admins additionally start and kill bridges.
type Claims struct {
	jwt.RegisteredClaims

	Operator string `json:"operator"`
	Role     string `json:"role"`
}
