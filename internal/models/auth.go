package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles carried in access tokens.
type UserRole string

const (
	RoleAdmin       UserRole = "ADMIN"
	RoleAuthority   UserRole = "AUTHORITY"
	RoleCoordinator UserRole = "COORDINATOR"
	RoleFormador    UserRole = "FORMADOR"
)

// JWTClaims represents the JWT payload of access tokens issued by the identity provider.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
