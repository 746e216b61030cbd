package codec

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authservice/internal/apperrors"
	"github.com/nkiryanov/authservice/internal/models"
	"github.com/nkiryanov/authservice/internal/testutil"
)

func Test_Codec(t *testing.T) {
	t.Parallel()

	claims := models.Claims{UserID: uuid.New(), Role: models.RoleAdmin}

	newCodec := func(t *testing.T, secret string, clock *testutil.Clock) *Codec {
		c, err := New(Config{SecretKey: secret, Now: clock.Now})
		require.NoError(t, err, "codec should be created without errors")
		return c
	}

	t.Run("new defaults", func(t *testing.T) {
		c, err := New(Config{SecretKey: "secret"})
		require.NoError(t, err)

		require.Equal(t, []byte("secret"), c.key)
		require.Equal(t, defaultSigningMethod, c.alg.Alg(), "default signing method should be set")
		require.NotNil(t, c.now, "default clock should be set")
	})

	t.Run("new without secret fail", func(t *testing.T) {
		_, err := New(Config{})

		require.Error(t, err)
	})

	t.Run("new with not HMAC alg fail", func(t *testing.T) {
		for _, alg := range []string{"RS256", "none", "unknown"} {
			_, err := New(Config{SecretKey: "secret", Alg: alg})

			require.Error(t, err, "alg %s must not be accepted", alg)
		}
	})

	t.Run("issue and verify", func(t *testing.T) {
		clock := testutil.NewClock(time.Now())
		c := newCodec(t, "secret", clock)

		token, err := c.Issue(models.TokenAccess, claims, 15*time.Minute)
		require.NoError(t, err)

		assert.NotEmpty(t, token.Value)
		assert.WithinDuration(t, clock.Now().Add(15*time.Minute), token.ExpiresAt, time.Second)

		got, err := c.Verify(models.TokenAccess, token.Value)
		require.NoError(t, err)
		assert.Equal(t, claims, got)
	})

	t.Run("token payload", func(t *testing.T) {
		clock := testutil.NewClock(time.Now())
		c := newCodec(t, "secret", clock)

		token, err := c.Issue(models.TokenAccess, claims, 15*time.Minute)
		require.NoError(t, err)

		parsed := &tokenClaims{}
		_, err = jwt.ParseWithClaims(token.Value, parsed, func(*jwt.Token) (any, error) {
			return []byte("secret"), nil
		})
		require.NoError(t, err)
		assert.Equal(t, claims.UserID, parsed.UserID)
		assert.Equal(t, claims.Role, parsed.Role)
		assert.Equal(t, models.TokenAccess, parsed.Kind)
		assert.NotEmpty(t, parsed.ID, "token has to has jti")
		assert.WithinDuration(t, token.ExpiresAt, parsed.ExpiresAt.Time, 0, "expiration should match issued token")
	})

	t.Run("tokens issued in same second differ", func(t *testing.T) {
		clock := testutil.NewClock(time.Now())
		c := newCodec(t, "secret", clock)

		first, err := c.Issue(models.TokenAccess, claims, time.Hour)
		require.NoError(t, err)
		second, err := c.Issue(models.TokenAccess, claims, time.Hour)
		require.NoError(t, err)

		require.NotEqual(t, first.Value, second.Value)
	})

	t.Run("expired token", func(t *testing.T) {
		clock := testutil.NewClock(time.Now())
		c := newCodec(t, "secret", clock)
		token, err := c.Issue(models.TokenAccess, claims, time.Minute)
		require.NoError(t, err)

		clock.Advance(time.Minute + time.Second)
		_, err = c.Verify(models.TokenAccess, token.Value)

		require.ErrorIs(t, err, apperrors.ErrTokenExpired)
	})

	t.Run("signed with other key", func(t *testing.T) {
		clock := testutil.NewClock(time.Now())
		token, err := newCodec(t, "other-secret", clock).Issue(models.TokenAccess, claims, time.Minute)
		require.NoError(t, err)

		_, err = newCodec(t, "secret", clock).Verify(models.TokenAccess, token.Value)

		require.ErrorIs(t, err, apperrors.ErrTokenInvalidSignature)
	})

	t.Run("not signed token", func(t *testing.T) {
		c := newCodec(t, "secret", testutil.NewClock(time.Now()))
		token := jwt.NewWithClaims(jwt.SigningMethodNone, tokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			UserID: claims.UserID,
			Role:   claims.Role,
			Kind:   models.TokenAccess,
		})
		value, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = c.Verify(models.TokenAccess, value)

		require.ErrorIs(t, err, apperrors.ErrTokenInvalidSignature, "token with empty alg must fail")
	})

	t.Run("malformed input", func(t *testing.T) {
		c := newCodec(t, "secret", testutil.NewClock(time.Now()))

		for _, value := range []string{"", "invalid token", "a.b.c", "....."} {
			require.NotPanics(t, func() {
				_, err := c.Verify(models.TokenAccess, value)
				require.ErrorIs(t, err, apperrors.ErrTokenMalformed, "value %q", value)
			})
		}
	})

	t.Run("token without expiration", func(t *testing.T) {
		c := newCodec(t, "secret", testutil.NewClock(time.Now()))
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{UserID: claims.UserID, Role: claims.Role, Kind: models.TokenAccess})
		value, err := token.SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = c.Verify(models.TokenAccess, value)

		require.ErrorIs(t, err, apperrors.ErrTokenMalformed)
	})

	t.Run("token with unknown role", func(t *testing.T) {
		c := newCodec(t, "secret", testutil.NewClock(time.Now()))

		token, err := c.Issue(models.TokenAccess, models.Claims{UserID: claims.UserID, Role: "root"}, time.Minute)
		require.NoError(t, err)

		_, err = c.Verify(models.TokenAccess, token.Value)

		require.ErrorIs(t, err, apperrors.ErrTokenMalformed)
	})

	t.Run("token of other kind", func(t *testing.T) {
		c := newCodec(t, "secret", testutil.NewClock(time.Now()))

		refresh, err := c.Issue(models.TokenRefresh, claims, time.Hour)
		require.NoError(t, err)
		access, err := c.Issue(models.TokenAccess, claims, time.Hour)
		require.NoError(t, err)

		_, err = c.Verify(models.TokenAccess, refresh.Value)
		require.ErrorIs(t, err, apperrors.ErrTokenWrongKind, "refresh token must not pass as access one")

		_, err = c.Verify(models.TokenRefresh, access.Value)
		require.ErrorIs(t, err, apperrors.ErrTokenWrongKind, "access token must not pass as refresh one")

		got, err := c.Verify(models.TokenRefresh, refresh.Value)
		require.NoError(t, err)
		require.Equal(t, claims, got)
	})

	t.Run("token without kind", func(t *testing.T) {
		c := newCodec(t, "secret", testutil.NewClock(time.Now()))
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			UserID: claims.UserID,
			Role:   claims.Role,
		})
		value, err := token.SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = c.Verify(models.TokenAccess, value)

		require.ErrorIs(t, err, apperrors.ErrTokenWrongKind)
	})
}
