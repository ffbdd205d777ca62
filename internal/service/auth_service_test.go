package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/auth"
)

func TestAuthService_Login(t *testing.T) {
	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	svc := NewAuthService("Ops@Example.com", hash, "jwt-secret", time.Hour)

	res, err := svc.Login(" ops@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", res.Email)
	assert.Equal(t, auth.RoleOperator, res.Role)

	claims, err := auth.ValidateToken("jwt-secret", res.Token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Email)

	_, err = svc.Login("ops@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login("someone@example.com", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
