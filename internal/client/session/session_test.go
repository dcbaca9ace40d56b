package session

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/client/store"
	"github.com/radieske/betref-client/pkg/contracts/betref"
)

func TestLoginLogout(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	m := NewManager(s, nil)

	acc := betref.Account{ID: 1, Username: "ana", Balance: decimal.NewFromInt(100)}
	require.NoError(t, m.Login(ctx, "tok", acc))

	tok, err := m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)

	got, ok, err := m.Account(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ana", got.Username)

	refs := NewListCache[betref.ReferralNode](s, KeyReferrals)
	require.NoError(t, refs.Save(ctx, []betref.ReferralNode{{Username: "bob"}}))
	require.NoError(t, NewMarkerStore(s).Set(ctx))

	require.NoError(t, m.Logout(ctx))

	tok, err = m.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
	_, ok, _ = m.Account(ctx)
	assert.False(t, ok)
	_, ok, _ = refs.Load(ctx)
	assert.False(t, ok)
	mk, err := NewMarkerStore(s).Get(ctx)
	require.NoError(t, err)
	assert.False(t, mk.Sent)
}

func TestLogin_OtherAccountDropsCaches(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	m := NewManager(s, nil)
	deps := NewListCache[betref.DepositRequest](s, KeyDeposits)

	require.NoError(t, m.Login(ctx, "t1", betref.Account{ID: 1}))
	require.NoError(t, deps.Save(ctx, []betref.DepositRequest{{ID: 9}}))

	// mesmo usuário: cache fica
	require.NoError(t, m.Login(ctx, "t2", betref.Account{ID: 1}))
	_, ok, _ := deps.Load(ctx)
	assert.True(t, ok)

	require.NoError(t, m.Login(ctx, "t3", betref.Account{ID: 2}))
	_, ok, _ = deps.Load(ctx)
	assert.False(t, ok)
}

func TestExpire_KeepsCachesAndRedirects(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	m := NewManager(s, nil)
	redirected := 0
	m.OnExpired = func() { redirected++ }

	require.NoError(t, m.Login(ctx, "tok", betref.Account{ID: 1}))
	refs := NewListCache[betref.ReferralNode](s, KeyReferrals)
	require.NoError(t, refs.Save(ctx, nil))

	assert.True(t, HandleAuthError(ctx, m, api.ErrAuthExpired))
	assert.False(t, HandleAuthError(ctx, m, errors.New("other")))
	assert.Equal(t, 1, redirected)

	tok, _ := m.Token(ctx)
	assert.Empty(t, tok)
	list, ok, err := refs.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, list)
}
