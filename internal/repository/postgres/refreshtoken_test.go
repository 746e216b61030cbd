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

func Test_RefreshTokenRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Every token has to reference existing user
	withUser := func(t *testing.T, fn func(tx pgx.Tx, user models.User)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			user, err := (&UserRepo{DB: tx}).CreateUser(t.Context(), "a@x.com", "hash", models.RoleUser)
			require.NoError(t, err)

			fn(tx, user)
		})
	}

	newToken := func(userID uuid.UUID, value string) models.RefreshToken {
		return models.RefreshToken{
			ID:        uuid.New(),
			UserID:    userID,
			Token:     value,
			CreatedAt: testutil.MustParseTime("2024-01-01 19:00:01Z"),
			ExpiresAt: testutil.MustParseTime("2200-01-01 03:00:02Z"),
		}
	}

	t.Run("save token ok", func(t *testing.T) {
		withUser(t, func(tx pgx.Tx, user models.User) {
			repo := RefreshTokenRepo{DB: tx}
			token := newToken(user.ID, "secret-token")

			got, err := repo.Save(t.Context(), token)

			require.NoError(t, err)
			require.Equal(t, token.ID, got.ID)
			require.Equal(t, token.UserID, got.UserID)
			require.Equal(t, token.Token, got.Token)
			require.WithinDuration(t, token.CreatedAt, got.CreatedAt, 0)
			require.WithinDuration(t, token.ExpiresAt, got.ExpiresAt, 0)
			require.False(t, got.Revoked, "new token must not be revoked")
			require.Nil(t, got.RevokedAt)
		})
	})

	t.Run("save same token twice fail", func(t *testing.T) {
		withUser(t, func(tx pgx.Tx, user models.User) {
			repo := RefreshTokenRepo{DB: tx}
			_, err := repo.Save(t.Context(), newToken(user.ID, "secret-token"))
			require.NoError(t, err)

			_, err = repo.Save(t.Context(), newToken(user.ID, "secret-token"))

			require.Error(t, err, "token string must be unique")
		})
	})

	t.Run("get token ok", func(t *testing.T) {
		withUser(t, func(tx pgx.Tx, user models.User) {
			repo := RefreshTokenRepo{DB: tx}
			saved, err := repo.Save(t.Context(), newToken(user.ID, "secret-token"))
			require.NoError(t, err)

			got, err := repo.Get(t.Context(), "secret-token")

			require.NoError(t, err)
			require.Equal(t, saved, got)
		})
	})

	t.Run("get not existed token", func(t *testing.T) {
		withUser(t, func(tx pgx.Tx, user models.User) {
			repo := RefreshTokenRepo{DB: tx}

			_, err := repo.Get(t.Context(), "not-existed")

			require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
		})
	})

	t.Run("revoke token", func(t *testing.T) {
		withUser(t, func(tx pgx.Tx, user models.User) {
			repo := RefreshTokenRepo{DB: tx}
			_, err := repo.Save(t.Context(), newToken(user.ID, "secret-token"))
			require.NoError(t, err)
			at := testutil.MustParseTime("2025-01-01 10:00:00Z")

			revoked, err := repo.Revoke(t.Context(), "secret-token", at)
			require.NoError(t, err)
			require.True(t, revoked)

			got, err := repo.Get(t.Context(), "secret-token")
			require.NoError(t, err)
			require.True(t, got.Revoked)
			require.NotNil(t, got.RevokedAt)
			require.WithinDuration(t, at, *got.RevokedAt, 0)
		})
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		withUser(t, func(tx pgx.Tx, user models.User) {
			repo := RefreshTokenRepo{DB: tx}
			_, err := repo.Save(t.Context(), newToken(user.ID, "secret-token"))
			require.NoError(t, err)
			first := testutil.MustParseTime("2025-01-01 10:00:00Z")

			_, err = repo.Revoke(t.Context(), "secret-token", first)
			require.NoError(t, err)

			revoked, err := repo.Revoke(t.Context(), "secret-token", first.Add(time.Hour))
			require.NoError(t, err, "revoking twice is not an error")
			require.False(t, revoked, "second revoke changes nothing")

			got, err := repo.Get(t.Context(), "secret-token")
			require.NoError(t, err)
			require.WithinDuration(t, first, *got.RevokedAt, 0, "revokedAt must not be overwritten")
		})
	})

	t.Run("revoke not existed token", func(t *testing.T) {
		withUser(t, func(tx pgx.Tx, user models.User) {
			repo := RefreshTokenRepo{DB: tx}

			revoked, err := repo.Revoke(t.Context(), "garbage", time.Now())

			require.NoError(t, err, "unknown token must not be reported")
			require.False(t, revoked)
		})
	})

	t.Run("revoke all for user", func(t *testing.T) {
		withUser(t, func(tx pgx.Tx, user models.User) {
			repo := RefreshTokenRepo{DB: tx}
			other, err := (&UserRepo{DB: tx}).CreateUser(t.Context(), "b@x.com", "hash", models.RoleUser)
			require.NoError(t, err)

			for _, value := range []string{"t1", "t2", "t3"} {
				_, err := repo.Save(t.Context(), newToken(user.ID, value))
				require.NoError(t, err)
			}
			_, err = repo.Save(t.Context(), newToken(other.ID, "other-token"))
			require.NoError(t, err)
			_, err = repo.Revoke(t.Context(), "t3", time.Now())
			require.NoError(t, err)

			n, err := repo.RevokeAllForUser(t.Context(), user.ID, time.Now())

			require.NoError(t, err)
			assert.EqualValues(t, 2, n, "already revoked token is not counted")
			for _, value := range []string{"t1", "t2", "t3"} {
				got, err := repo.Get(t.Context(), value)
				require.NoError(t, err)
				assert.True(t, got.Revoked, "token %s must be revoked", value)
			}
			got, err := repo.Get(t.Context(), "other-token")
			require.NoError(t, err)
			assert.False(t, got.Revoked, "other user tokens must stay untouched")
		})
	})
}
