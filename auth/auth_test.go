package auth

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealed-ballot/models"
)

func TestOwnerAuthority(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	operator := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	stranger := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	election := models.Election{Admin: owner}

	authority := NewOwnerAuthority(operator)
	assert.True(t, authority.IsAdmin(election, owner))
	assert.True(t, authority.IsAdmin(election, operator))
	assert.False(t, authority.IsAdmin(election, stranger))
	assert.False(t, authority.IsAdmin(models.Election{}, common.Address{}))
}

func TestRecoverAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	wallet := crypto.PubkeyToAddress(key.PublicKey)
	message := []byte("hello")

	sig, err := SignMessage(message, key)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sig[64], byte(27))

	recovered, err := RecoverAddress(message, sig)
	require.NoError(t, err)
	assert.Equal(t, wallet, recovered)

	// Raw 0/1 recovery ids are accepted too.
	sig[64] -= 27
	recovered, err = RecoverAddress(message, sig)
	require.NoError(t, err)
	assert.Equal(t, wallet, recovered)

	other, err := RecoverAddress([]byte("other"), sig)
	if err == nil {
		assert.NotEqual(t, wallet, other)
	}

	_, err = RecoverAddress(message, sig[:10])
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestChallengeFlow(t *testing.T) {
	ctx := context.Background()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	wallet := crypto.PubkeyToAddress(key.PublicKey)

	challenger := NewChallenger(NewMemoryChallengeStore(nil), "sealed-ballot", time.Minute)

	message, err := challenger.Issue(ctx, wallet)
	require.NoError(t, err)
	assert.Contains(t, message, wallet.Hex())

	sig, err := SignMessage([]byte(message), key)
	require.NoError(t, err)
	require.NoError(t, challenger.Verify(ctx, wallet, sig))

	// The nonce is single use.
	assert.ErrorIs(t, challenger.Verify(ctx, wallet, sig), ErrNoChallenge)
}

func TestChallengeRejectsWrongSigner(t *testing.T) {
	ctx := context.Background()
	victimKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	attackerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	victim := crypto.PubkeyToAddress(victimKey.PublicKey)

	challenger := NewChallenger(NewMemoryChallengeStore(nil), "sealed-ballot", time.Minute)
	message, err := challenger.Issue(ctx, victim)
	require.NoError(t, err)

	sig, err := SignMessage([]byte(message), attackerKey)
	require.NoError(t, err)
	assert.ErrorIs(t, challenger.Verify(ctx, victim, sig), ErrInvalidSignature)
}

func TestMemoryChallengeStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_000, 0)
	store := NewMemoryChallengeStore(func() time.Time { return now })
	wallet := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	require.NoError(t, store.Put(ctx, wallet, "n1", time.Minute))
	now = now.Add(2 * time.Minute)

	_, err := store.Take(ctx, wallet)
	assert.ErrorIs(t, err, ErrNoChallenge)
}

func TestRedisChallengeStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	store := NewRedisChallengeStore(client, "sealed-ballot-test:")
	wallet := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	require.NoError(t, store.Put(ctx, wallet, "nonce-1", time.Minute))
	nonce, err := store.Take(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, "nonce-1", nonce)

	_, err = store.Take(ctx, wallet)
	assert.ErrorIs(t, err, ErrNoChallenge)
}

func TestTokenIssuer(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	issuer := NewTokenIssuer("0123456789abcdef0123", "sealed-ballot", time.Hour, func() time.Time { return now })
	wallet := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	token, expires, err := issuer.Issue(wallet)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expires)

	parsed, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, wallet, parsed)

	other := NewTokenIssuer("another-secret-value", "sealed-ballot", time.Hour, func() time.Time { return now })
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	now = now.Add(2 * time.Hour)
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
