package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/client/session"
	"github.com/radieske/betref-client/internal/client/store"
	"github.com/radieske/betref-client/internal/shared/validation"
	"github.com/radieske/betref-client/pkg/contracts/betref"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Login(ctx context.Context, req betref.LoginRequest) (*betref.LoginResponse, error) {
	args := m.Called(ctx, req)
	v, _ := args.Get(0).(*betref.LoginResponse)
	return v, args.Error(1)
}

func (m *MockBackend) Register(ctx context.Context, req betref.RegisterRequest) (*betref.Account, error) {
	args := m.Called(ctx, req)
	v, _ := args.Get(0).(*betref.Account)
	return v, args.Error(1)
}

func (m *MockBackend) Me(ctx context.Context) (*betref.Account, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).(*betref.Account)
	return v, args.Error(1)
}

func setup() (*Service, *MockBackend, *session.Manager) {
	m := new(MockBackend)
	mgr := session.NewManager(store.NewMemory(), nil)
	return NewService(m, mgr, nil, nil), m, mgr
}

func TestLogin_StoresSession(t *testing.T) {
	ctx := context.Background()
	svc, m, mgr := setup()
	m.On("Login", mock.Anything, betref.LoginRequest{Username: "ana", Password: "secret1"}).
		Return(&betref.LoginResponse{AccessToken: "tok", TokenType: "bearer", Account: betref.Account{ID: 1, Username: "ana"}}, nil)

	acc, err := svc.Login(ctx, " ana ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), acc.ID)

	tok, _ := mgr.Token(ctx)
	assert.Equal(t, "tok", tok)
	m.AssertExpectations(t)
}

func TestLogin_Validation(t *testing.T) {
	svc, m, _ := setup()
	_, err := svc.Login(context.Background(), "", "")
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "username")
	assert.Contains(t, verr.Fields, "password")
	m.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestLogin_BadCredentials(t *testing.T) {
	ctx := context.Background()
	svc, m, mgr := setup()
	m.On("Login", mock.Anything, mock.Anything).Return(nil, &api.ServerError{Status: 401, Detail: "Credenciales inválidas"})

	_, err := svc.Login(ctx, "ana", "wrong!!")
	require.Error(t, err)
	assert.Equal(t, "Credenciales inválidas", api.Message(err))
	_, ok, _ := mgr.Account(ctx)
	assert.False(t, ok)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc, m, _ := setup()
	ref := int64(7)
	m.On("Register", mock.Anything, betref.RegisterRequest{Username: "bob", Email: "bob@bet.ref", Password: "123456", ReferrerID: &ref}).
		Return(&betref.Account{ID: 2, Username: "bob"}, nil)

	acc, err := svc.Register(ctx, "bob", "bob@bet.ref", "123456", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), acc.ID)

	for name, tc := range map[string][3]string{
		"short username": {"bo", "bob@bet.ref", "123456"},
		"bad email":      {"bob", "bob", "123456"},
		"short password": {"bob", "bob@bet.ref", "12345"},
	} {
		_, err := svc.Register(ctx, tc[0], tc[1], tc[2], 0)
		var verr *validation.Error
		assert.ErrorAs(t, err, &verr, name)
	}

	_, err = svc.Register(ctx, "bob", "bob@bet.ref", "123456", -1)
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "referido_por")
	m.AssertNumberOfCalls(t, "Register", 1)
}

func TestReload_ServerWins(t *testing.T) {
	ctx := context.Background()
	svc, m, mgr := setup()
	require.NoError(t, mgr.Login(ctx, "tok", betref.Account{ID: 1, Balance: decimal.NewFromInt(10)}))
	m.On("Me", mock.Anything).Return(&betref.Account{ID: 1, Balance: decimal.NewFromInt(99), Verified: true}, nil).Once()

	acc, err := svc.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, acc.Verified)
	cached, _, _ := mgr.Account(ctx)
	assert.Equal(t, "99", cached.Balance.String())

	m.On("Me", mock.Anything).Return(nil, &api.NetworkError{Op: "me", Err: errors.New("down")}).Once()
	acc, err = svc.Reload(ctx)
	require.Error(t, err)
	assert.Equal(t, "99", acc.Balance.String())
}

func TestReload_AuthExpired(t *testing.T) {
	ctx := context.Background()
	svc, m, mgr := setup()
	require.NoError(t, mgr.Login(ctx, "tok", betref.Account{ID: 1}))
	m.On("Me", mock.Anything).Return(nil, api.ErrAuthExpired)

	_, err := svc.Reload(ctx)
	assert.ErrorIs(t, err, api.ErrAuthExpired)
	_, ok, _ := mgr.Account(ctx)
	assert.False(t, ok)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	svc, _, mgr := setup()
	require.NoError(t, mgr.Login(ctx, "tok", betref.Account{ID: 1}))
	require.NoError(t, svc.Logout(ctx))
	tok, _ := mgr.Token(ctx)
	assert.Empty(t, tok)
}
