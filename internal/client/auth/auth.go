// Package auth cuida de login, cadastro, logout e recarga da conta.
package auth

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/client/notify"
	"github.com/radieske/betref-client/internal/client/session"
	"github.com/radieske/betref-client/internal/shared/logger"
	"github.com/radieske/betref-client/internal/shared/validation"
	"github.com/radieske/betref-client/pkg/contracts/betref"
)

type Backend interface {
	Login(ctx context.Context, req betref.LoginRequest) (*betref.LoginResponse, error)
	Register(ctx context.Context, req betref.RegisterRequest) (*betref.Account, error)
	Me(ctx context.Context) (*betref.Account, error)
}

type Service struct {
	backend Backend
	mgr     *session.Manager
	notify  notify.Notifier
	log     *zap.Logger
}

func NewService(b Backend, mgr *session.Manager, n notify.Notifier, log *zap.Logger) *Service {
	if n == nil {
		n = notify.Discard{}
	}
	log = logger.OrNop(log)
	return &Service{backend: b, mgr: mgr, notify: n, log: log}
}

// Login troca credenciais por token e grava a sessão
func (s *Service) Login(ctx context.Context, username, password string) (*betref.Account, error) {
	req := betref.LoginRequest{Username: strings.TrimSpace(username), Password: password}
	if err := validation.Struct(req).OrNil(); err != nil {
		s.notify.Notify(notify.Error, api.Message(err))
		return nil, err
	}

	res, err := s.backend.Login(ctx, req)
	if err != nil {
		s.log.Warn("login failed", zap.String("username", req.Username), zap.Error(err))
		s.notify.Notify(notify.Error, api.Message(err))
		return nil, err
	}
	if err := s.mgr.Login(ctx, res.AccessToken, res.Account); err != nil {
		return nil, err
	}
	s.notify.Notify(notify.Success, "Bienvenido, "+res.Account.Username)
	return &res.Account, nil
}

// Register cria a conta; referrerID 0 significa sem referido
func (s *Service) Register(ctx context.Context, username, email, password string, referrerID int64) (*betref.Account, error) {
	req := betref.RegisterRequest{
		Username: strings.TrimSpace(username),
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	if referrerID != 0 {
		req.ReferrerID = &referrerID
	}
	if err := validation.Struct(req).OrNil(); err != nil {
		s.notify.Notify(notify.Error, api.Message(err))
		return nil, err
	}

	acc, err := s.backend.Register(ctx, req)
	if err != nil {
		s.log.Warn("register failed", zap.String("username", req.Username), zap.Error(err))
		s.notify.Notify(notify.Error, api.Message(err))
		return nil, err
	}
	s.log.Info("account registered", zap.Int64("accountId", acc.ID))
	s.notify.Notify(notify.Success, "Cuenta creada, ya puedes iniciar sesión")
	return acc, nil
}

func (s *Service) Logout(ctx context.Context) error {
	if err := s.mgr.Logout(ctx); err != nil {
		return err
	}
	s.notify.Notify(notify.Info, "Sesión cerrada")
	return nil
}

// Reload busca /me e substitui a conta em cache; o servidor sempre vence
func (s *Service) Reload(ctx context.Context) (*betref.Account, error) {
	acc, err := s.backend.Me(ctx)
	if err != nil {
		if session.HandleAuthError(ctx, s.mgr, err) {
			s.notify.Notify(notify.Error, api.MsgAuthExpired)
			return nil, api.ErrAuthExpired
		}
		s.notify.Notify(notify.Error, api.Message(err))
		if cached, ok, cerr := s.mgr.Account(ctx); cerr == nil && ok {
			return cached, err
		}
		return nil, err
	}
	if err := s.mgr.SaveAccount(ctx, *acc); err != nil {
		s.log.Warn("save account", zap.Error(err))
	}
	return acc, nil
}
