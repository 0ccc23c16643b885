package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity is the caller as established by AuthRequired. Handlers scope
// every query by TenantID.
type Identity interface {
	UserID() uuid.UUID
	TenantID() uuid.UUID
	IsAuthenticated() bool
}

type identity struct {
	userID   uuid.UUID
	tenantID uuid.UUID
}

func (i identity) UserID() uuid.UUID     { return i.userID }
func (i identity) TenantID() uuid.UUID   { return i.tenantID }
func (i identity) IsAuthenticated() bool { return i.userID != uuid.Nil && i.tenantID != uuid.Nil }

// GetIdentity reads the caller from the gin context. Outside AuthRequired
// the result is unauthenticated.
func GetIdentity(c *gin.Context) Identity {
	var id identity
	if v, ok := c.Get(ContextUserIDKey); ok {
		id.userID, _ = v.(uuid.UUID)
	}
	if v, ok := c.Get(ContextTenantIDKey); ok {
		id.tenantID, _ = v.(uuid.UUID)
	}
	return id
}

// MustGetIdentity aborts with 401 and returns nil when the caller has no
// user or tenant.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return nil
	}
	return id
}
