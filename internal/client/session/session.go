package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/client/store"
	"github.com/radieske/betref-client/internal/shared/logger"
	"github.com/radieske/betref-client/pkg/contracts/betref"
)

// Chaves do store persistente
const (
	KeyToken              = "token"
	KeyAccount            = "usuario"
	KeyVerificationMarker = "verificacion_enviada"
	KeyReferrals          = "cache:referidos"
	KeyDeposits           = "cache:depositos"
	KeyWithdrawals        = "cache:retiros"
	KeyDrawResults        = "cache:sorteos"
)

var cacheKeys = []string{KeyVerificationMarker, KeyReferrals, KeyDeposits, KeyWithdrawals, KeyDrawResults}

// Reader é o acesso somente leitura das telas
type Reader interface {
	Token(ctx context.Context) (string, error)
	Account(ctx context.Context) (*betref.Account, bool, error)
}

// View é o que cada tela recebe: leitura mais o teardown de sessão expirada
type View interface {
	Reader
	Expire(ctx context.Context) error
}

// Manager é o único escritor de login/logout sobre o store
type Manager struct {
	store store.Store
	log   *zap.Logger
	mu    sync.Mutex

	// OnExpired é chamado depois do teardown (redireciona para o login)
	OnExpired func()
}

func NewManager(s store.Store, log *zap.Logger) *Manager {
	log = logger.OrNop(log)
	return &Manager{store: s, log: log}
}

// Store expõe o store para os caches de cada tela
func (m *Manager) Store() store.Store { return m.store }

// Login grava token e conta. Se a conta mudou, os caches do usuário anterior são descartados.
func (m *Manager) Login(ctx context.Context, token string, acc betref.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var prev betref.Account
	if ok, err := m.store.Get(ctx, KeyAccount, &prev); err == nil && ok && prev.ID != acc.ID {
		if err := m.store.Delete(ctx, cacheKeys...); err != nil {
			return fmt.Errorf("clear caches: %w", err)
		}
	}
	if err := m.store.Set(ctx, KeyToken, token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if err := m.store.Set(ctx, KeyAccount, acc); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	m.log.Info("session started", zap.Int64("accountId", acc.ID), zap.String("username", acc.Username))
	return nil
}

// Logout limpa tudo: token, conta, caches e marcador de verificação
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := append([]string{KeyToken, KeyAccount}, cacheKeys...)
	if err := m.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	m.log.Info("session closed")
	return nil
}

// Expire é o teardown de AuthExpired: token e conta saem, caches ficam
func (m *Manager) Expire(ctx context.Context) error {
	m.mu.Lock()
	err := m.store.Delete(ctx, KeyToken, KeyAccount)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("expire session: %w", err)
	}
	m.log.Warn("session expired")
	if m.OnExpired != nil {
		m.OnExpired()
	}
	return nil
}

// SaveAccount substitui a conta em cache pelo snapshot do servidor
func (m *Manager) SaveAccount(ctx context.Context, acc betref.Account) error {
	return m.store.Set(ctx, KeyAccount, acc)
}

func (m *Manager) Token(ctx context.Context) (string, error) {
	var tok string
	if _, err := m.store.Get(ctx, KeyToken, &tok); err != nil {
		return "", err
	}
	return tok, nil
}

func (m *Manager) Account(ctx context.Context) (*betref.Account, bool, error) {
	var acc betref.Account
	ok, err := m.store.Get(ctx, KeyAccount, &acc)
	if err != nil || !ok {
		return nil, false, err
	}
	return &acc, true, nil
}

// HandleAuthError aplica Expire quando err é AuthExpired; devolve true nesse caso
func HandleAuthError(ctx context.Context, v View, err error) bool {
	if !errors.Is(err, api.ErrAuthExpired) {
		return false
	}
	_ = v.Expire(ctx)
	return true
}

// Marker registra que um envio de verificação aconteceu
type Marker struct {
	Sent bool      `json:"enviada"`
	At   time.Time `json:"fecha"`
}
