package account

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkincode/pizzeria/internal/access"
	"github.com/talkincode/pizzeria/internal/apperr"
	"github.com/talkincode/pizzeria/internal/storetest"
)

func newService(t *testing.T) *Service {
	return NewService(storetest.Open(t), NewTokenIssuer("test-secret", "pizzeria", time.Minute))
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	u, err := svc.Register(ctx, RegisterInput{Username: "testuser", Email: "testuser@example.com", Password: "testpassword"})
	require.NoError(t, err)
	assert.False(t, u.IsStaff)
	assert.NotEqual(t, "testpassword", u.Password)

	_, err = svc.Register(ctx, RegisterInput{Username: "testuser", Password: "other"})
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	_, err = svc.Register(ctx, RegisterInput{Username: "bad name!", Password: "x"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	tok, who, err := svc.Login(ctx, "testuser", "testpassword")
	require.NoError(t, err)
	assert.Equal(t, u.ID, who.ID)
	assert.NotEmpty(t, tok.Access)

	claims, err := svc.tokens.Parse(tok.Access)
	require.NoError(t, err)
	actor := claims.Actor()
	assert.Equal(t, u.ID, actor.UserID)
	assert.False(t, actor.Privileged)

	_, _, err = svc.Login(ctx, "testuser", "wrong")
	assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))
	_, _, err = svc.Login(ctx, "ghost", "testpassword")
	assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))
}

func TestEnsureUserSeedsStaffOnce(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	created, err := svc.EnsureUser(ctx, RegisterInput{Username: "admin", Password: "adminpassword"}, true)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureUser(ctx, RegisterInput{Username: "admin", Password: "changed"}, true)
	require.NoError(t, err)
	assert.False(t, created)

	tok, u, err := svc.Login(ctx, "admin", "adminpassword")
	require.NoError(t, err)
	assert.True(t, u.IsStaff)
	claims, err := svc.tokens.Parse(tok.Access)
	require.NoError(t, err)
	assert.True(t, claims.Actor().Privileged)
}

func TestTokenRejectsOtherSecret(t *testing.T) {
	svc := newService(t)
	u, err := svc.Register(context.Background(), RegisterInput{Username: "eve", Password: "pw"})
	require.NoError(t, err)
	tok, err := NewTokenIssuer("another-secret", "pizzeria", time.Minute).Issue(u)
	require.NoError(t, err)

	_, err = svc.tokens.Parse(tok.Access)
	assert.Error(t, err)
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	u, err := svc.Register(ctx, RegisterInput{Username: "carol", Password: "pw"})
	require.NoError(t, err)
	actor := &access.Actor{UserID: u.ID, Username: u.Username}

	p, err := svc.GetProfile(ctx, actor)
	require.NoError(t, err)
	assert.Empty(t, p.Phone)

	p, err = svc.UpdateProfile(ctx, actor, ProfileInput{Phone: "555-0100", Address: "1 Main St"})
	require.NoError(t, err)
	firstID := p.ID

	p, err = svc.UpdateProfile(ctx, actor, ProfileInput{Phone: "555-0199", Address: "2 Main St"})
	require.NoError(t, err)
	assert.Equal(t, firstID, p.ID)

	got, err := svc.GetProfile(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, "555-0199", got.Phone)
	assert.Equal(t, "2 Main St", got.Address)

	_, err = svc.UpdateProfile(ctx, actor, ProfileInput{Phone: "0123456789012345"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = svc.GetProfile(ctx, nil)
	assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))
}

func TestActorReflectsStoredUser(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	_, err := svc.EnsureUser(ctx, RegisterInput{Username: "boss", Password: "pw"}, true)
	require.NoError(t, err)
	tok, u, err := svc.Login(ctx, "boss", "pw")
	require.NoError(t, err)
	claims, err := svc.tokens.Parse(tok.Access)
	require.NoError(t, err)

	a, err := svc.Actor(ctx, claims)
	require.NoError(t, err)
	assert.True(t, a.Privileged)

	require.NoError(t, svc.db.Model(u).Update("is_staff", false).Error)
	a, err = svc.Actor(ctx, claims)
	require.NoError(t, err)
	assert.False(t, a.Privileged)
	assert.Equal(t, u.ID, a.UserID)

	require.NoError(t, svc.db.Delete(u).Error)
	_, err = svc.Actor(ctx, claims)
	assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))
}
