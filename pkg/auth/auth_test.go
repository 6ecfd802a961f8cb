package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/marble/pkg/db"
)

func newTestService(t *testing.T) (*Service, *db.Database) {
	t.Helper()

	database, err := db.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return NewService(database.Users), database
}

func createUser(t *testing.T, database *db.Database, username, password string) *db.User {
	t.Helper()

	hash, err := HashPassword(password)
	require.NoError(t, err)

	user := &db.User{
		UUID:         uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
	}
	require.NoError(t, database.Users.Create(context.Background(), user))

	return user
}

func TestAuthenticateSuccess(t *testing.T) {
	service, database := newTestService(t)
	ctx := context.Background()

	user := createUser(t, database, "alice", "correct horse")

	tenantUUID, err := service.Authenticate(ctx, "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.UUID, tenantUUID)
}

func TestAuthenticateUpdatesLastLogin(t *testing.T) {
	service, database := newTestService(t)
	ctx := context.Background()

	user := createUser(t, database, "alice", "pw")

	before, err := database.Users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Nil(t, before.LastLogin)

	_, err = service.Authenticate(ctx, "alice", "pw")
	require.NoError(t, err)

	after, err := database.Users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, after.LastLogin)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	service, database := newTestService(t)
	ctx := context.Background()

	createUser(t, database, "alice", "right")

	_, err := service.Authenticate(ctx, "alice", "wrong")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestAuthenticateUnknownUser(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.Authenticate(ctx, "nobody", "anything")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestAuthenticateIndistinguishableFailures(t *testing.T) {
	service, database := newTestService(t)
	ctx := context.Background()

	createUser(t, database, "alice", "right")

	_, wrongPassword := service.Authenticate(ctx, "alice", "wrong")
	_, unknownUser := service.Authenticate(ctx, "nobody", "wrong")

	assert.Equal(t, wrongPassword, unknownUser)
}

func TestAuthenticateFailureDoesNotStampLogin(t *testing.T) {
	service, database := newTestService(t)
	ctx := context.Background()

	user := createUser(t, database, "alice", "right")

	_, err := service.Authenticate(ctx, "alice", "wrong")
	require.Error(t, err)

	found, err := database.Users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, found.LastLogin)
}
