package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_JWT_RoundTrip(t *testing.T) {
	token, err := GenerateJWT(42, "ADMIN", "secret")
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "ADMIN", claims.Role)

	_, err = ParseJWT(token, "other-secret")
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	_, err = ParseJWT("not-a-token", "secret")
	assert.Error(t, err)
}

func Test_JWT_RejectsExpired(t *testing.T) {
	claims := Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ParseJWT(token, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func Test_Password(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
	assert.False(t, CheckPassword("plain", "plain"))
}

type book struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func Test_Cache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	c := NewCache(rdb, time.Minute, nil)
	require.True(t, c.Enabled())

	var got []book
	assert.False(t, c.Get(ctx, "books:all", &got))

	c.Set(ctx, "books:all", []book{{ID: 1, Title: "Dune"}})
	assert.Equal(t, time.Minute, mr.TTL("books:all"))
	require.True(t, c.Get(ctx, "books:all", &got))
	assert.Equal(t, []book{{ID: 1, Title: "Dune"}}, got)

	c.Delete(ctx, "books:all", "books:available")
	assert.False(t, mr.Exists("books:all"))
}

func Test_Cache_CorruptEntryIsAMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	logger, hook := test.NewNullLogger()

	require.NoError(t, mr.Set("books:all", "{not json"))
	c := NewCache(rdb, time.Minute, logger)

	var got []book
	assert.False(t, c.Get(context.Background(), "books:all", &got))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Cache read failed", hook.LastEntry().Message)
}

func Test_Cache_DisabledIsNoop(t *testing.T) {
	var nilCache *Cache
	c := NewCache(nil, time.Minute, nil)
	ctx := context.Background()

	for _, cache := range []*Cache{nilCache, c} {
		assert.False(t, cache.Enabled())
		cache.Set(ctx, "k", 1)
		var v int
		assert.False(t, cache.Get(ctx, "k", &v))
		cache.Delete(ctx, "k")
	}
}
