package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authservice/internal/apperrors"
	"github.com/nkiryanov/authservice/internal/models"
	"github.com/nkiryanov/authservice/internal/testutil"
)

func Test_UserRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("create user ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			user, err := r.CreateUser(t.Context(), "a@x.com", "hashedpassword123", models.RoleUser)

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, user.ID, "id should be generated")
			assert.Equal(t, "a@x.com", user.Email)
			assert.Equal(t, "hashedpassword123", user.HashedPassword)
			assert.Equal(t, models.RoleUser, user.Role)
			assert.WithinDuration(t, time.Now(), user.CreatedAt, time.Second, "CreatedAt should be recent")
			assert.WithinDuration(t, user.CreatedAt, user.UpdatedAt, 0, "UpdatedAt equals CreatedAt for new user")
		})
	})

	t.Run("create admin ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			user, err := r.CreateUser(t.Context(), "admin@x.com", "hashedpassword123", models.RoleAdmin)

			require.NoError(t, err)
			assert.Equal(t, models.RoleAdmin, user.Role)
		})
	})

	t.Run("create user with same email fail", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			_, err := r.CreateUser(t.Context(), "a@x.com", "hashedpassword123", models.RoleUser)
			require.NoError(t, err)

			_, err = r.CreateUser(t.Context(), "a@x.com", "other", models.RoleUser)

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
		})
	})

	t.Run("get user by id ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), "findbyid@x.com", "hashedpassword123", models.RoleUser)
			require.NoError(t, err)

			got, err := r.GetUserByID(t.Context(), created.ID)

			require.NoError(t, err)
			assert.Equal(t, created, got)
		})
	})

	t.Run("get user by id not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			_, err := r.GetUserByID(t.Context(), uuid.New())

			assert.ErrorIs(t, err, apperrors.ErrUserNotFound, "should return well known error")
		})
	})

	t.Run("get user by email ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), "findbyemail@x.com", "hashedpassword123", models.RoleUser)
			require.NoError(t, err)

			got, err := r.GetUserByEmail(t.Context(), created.Email)

			require.NoError(t, err)
			assert.Equal(t, created, got)
		})
	})

	t.Run("get user by email not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			_, err := r.GetUserByEmail(t.Context(), "nobody@x.com")

			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("update password ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), "a@x.com", "old-hash", models.RoleUser)
			require.NoError(t, err)

			err = r.UpdatePassword(t.Context(), created.ID, "new-hash")
			require.NoError(t, err)

			got, err := r.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, "new-hash", got.HashedPassword)
			assert.False(t, got.UpdatedAt.Before(created.UpdatedAt), "updatedAt must not move back")
		})
	})

	t.Run("update password of unknown user", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			err := r.UpdatePassword(t.Context(), uuid.New(), "new-hash")

			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})
}
