package redis_test

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/account"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/store"
	redisstore "github.com/xraph/parkledger/store/redis"
	"github.com/xraph/parkledger/store/storetest"
)

func newStore(t *testing.T, opts ...redisstore.Option) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := redisstore.New(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, _ := newStore(t)
		return s
	})
}

func TestKeyPrefix(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t, redisstore.WithPrefix("garage-a"))

	a := account.New(parkledger.ProgramID("wallet"), account.KindWallet, parkledger.Address{})
	a.Lamports = 5
	var cs store.ChangeSet
	cs.Create(a)
	require.NoError(t, s.Apply(ctx, &cs))

	for _, k := range mr.Keys() {
		assert.Regexp(t, `^garage-a:`, k)
	}

	got, err := s.GetAccount(ctx, a.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got.Lamports)
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := redisstore.Open(context.Background(), "not-a-url")
	require.Error(t, err)
}

func TestLedgerOnRedis(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	l := parkledger.New(s)
	require.NoError(t, l.Start(ctx))
	defer l.Stop()

	admin, user := key(t), key(t)
	tn, err := l.CreateTenant(ctx, admin, "Harbour Lot")
	require.NoError(t, err)
	_, err = l.OpenEntry(ctx, tn.Address, user, "AB-123")
	require.NoError(t, err)
	_, err = l.Credit(ctx, user, 1000)
	require.NoError(t, err)

	e, err := l.Deposit(ctx, tn.Address, user, 600)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), e.Balance)

	vault, err := l.Balance(ctx, e.Vault)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), vault)

	entries, err := l.ListEntries(ctx, tn.Address, parkledger.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, user, entries[0].Owner)
}

func key(t *testing.T) parkledger.Address {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	a, err := address.FromPublicKey(pub)
	require.NoError(t, err)
	return a
}
