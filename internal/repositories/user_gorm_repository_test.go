package repositories

import (
	"testing"

	"vastra/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGORMUserRepository(t *testing.T) {
	repo := NewGORMUserRepository(newTestDB(t))

	user := models.User{
		Username: "asha",
		Email:    "asha@example.com",
		Password: "hashed",
	}
	require.NoError(t, repo.Create(&user))
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, models.RoleCustomer, user.Role, "role defaults to customer")

	byUsername, err := repo.GetByUsername("asha")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byUsername.ID)

	byEmail, err := repo.GetByEmail("asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byID, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "asha", byID.Username)

	_, err = repo.GetByUsername("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByEmail("nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByID("no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGORMUserRepositoryUniqueConstraints(t *testing.T) {
	repo := NewGORMUserRepository(newTestDB(t))

	first := models.User{Username: "asha", Email: "asha@example.com", Password: "hashed"}
	require.NoError(t, repo.Create(&first))

	dup := models.User{Username: "asha", Email: "other@example.com", Password: "hashed"}
	assert.Error(t, repo.Create(&dup))
}
