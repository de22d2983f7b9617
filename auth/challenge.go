package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNoChallenge = errors.New("no pending login challenge")

// ChallengeStore holds one outstanding login nonce per wallet. Take consumes
// the nonce so a signature can be used once.
type ChallengeStore interface {
	Put(ctx context.Context, wallet common.Address, nonce string, ttl time.Duration) error
	Take(ctx context.Context, wallet common.Address) (string, error)
}

// Challenger runs wallet sign-in: issue a message, then check its signature.
type Challenger struct {
	store  ChallengeStore
	ttl    time.Duration
	domain string
}

func NewChallenger(store ChallengeStore, domain string, ttl time.Duration) *Challenger {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Challenger{store: store, ttl: ttl, domain: domain}
}

// Issue creates a fresh nonce for wallet and returns the message to sign.
func (c *Challenger) Issue(ctx context.Context, wallet common.Address) (string, error) {
	nonce := uuid.NewString()
	if err := c.store.Put(ctx, wallet, nonce, c.ttl); err != nil {
		return "", fmt.Errorf("store challenge: %w", err)
	}
	return c.Message(wallet, nonce), nil
}

// Verify consumes the wallet's pending nonce and checks that signature over
// the challenge message was made by wallet.
func (c *Challenger) Verify(ctx context.Context, wallet common.Address, signature []byte) error {
	nonce, err := c.store.Take(ctx, wallet)
	if err != nil {
		return err
	}

	signer, err := RecoverAddress([]byte(c.Message(wallet, nonce)), signature)
	if err != nil {
		return err
	}
	if signer != wallet {
		return fmt.Errorf("%w: signed by %s", ErrInvalidSignature, signer.Hex())
	}
	return nil
}

func (c *Challenger) Message(wallet common.Address, nonce string) string {
	return fmt.Sprintf("%s wants you to sign in with your wallet:\n%s\n\nNonce: %s", c.domain, wallet.Hex(), nonce)
}

// MemoryChallengeStore keeps challenges in process memory.
type MemoryChallengeStore struct {
	mu      sync.Mutex
	entries map[common.Address]challenge
	now     func() time.Time
}

type challenge struct {
	nonce   string
	expires time.Time
}

func NewMemoryChallengeStore(now func() time.Time) *MemoryChallengeStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryChallengeStore{entries: make(map[common.Address]challenge), now: now}
}

func (s *MemoryChallengeStore) Put(ctx context.Context, wallet common.Address, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for addr, entry := range s.entries {
		if !now.Before(entry.expires) {
			delete(s.entries, addr)
		}
	}
	s.entries[wallet] = challenge{nonce: nonce, expires: now.Add(ttl)}
	return nil
}

func (s *MemoryChallengeStore) Take(ctx context.Context, wallet common.Address) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[wallet]
	delete(s.entries, wallet)
	if !ok || !s.now().Before(entry.expires) {
		return "", ErrNoChallenge
	}
	return entry.nonce, nil
}

// RedisChallengeStore shares challenges between API replicas.
type RedisChallengeStore struct {
	client *redis.Client
	prefix string
}

func NewRedisChallengeStore(client *redis.Client, prefix string) *RedisChallengeStore {
	if prefix == "" {
		prefix = "sealed-ballot:challenge:"
	}
	return &RedisChallengeStore{client: client, prefix: prefix}
}

func (s *RedisChallengeStore) Put(ctx context.Context, wallet common.Address, nonce string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(wallet), nonce, ttl).Err()
}

func (s *RedisChallengeStore) Take(ctx context.Context, wallet common.Address) (string, error) {
	nonce, err := s.client.GetDel(ctx, s.key(wallet)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoChallenge
	}
	if err != nil {
		return "", fmt.Errorf("take challenge: %w", err)
	}
	return nonce, nil
}

func (s *RedisChallengeStore) key(wallet common.Address) string {
	return s.prefix + wallet.Hex()
}

var (
	_ ChallengeStore = (*MemoryChallengeStore)(nil)
	_ ChallengeStore = (*RedisChallengeStore)(nil)
)
