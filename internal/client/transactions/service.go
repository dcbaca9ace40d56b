// Package transactions cobre os formulários de depósito e retiro e os históricos do usuário.
package transactions

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/client/notify"
	"github.com/radieske/betref-client/internal/client/session"
	"github.com/radieske/betref-client/internal/shared/logger"
	"github.com/radieske/betref-client/pkg/contracts/betref"
)

var ErrNoAccount = errors.New("no cached account")

type Backend interface {
	MyDeposits(ctx context.Context) ([]betref.DepositRequest, error)
	SubmitDeposit(ctx context.Context, d api.DepositSubmit) (*betref.DepositRequest, error)
	MyWithdrawals(ctx context.Context) ([]betref.WithdrawalRequest, error)
	SubmitWithdrawal(ctx context.Context, w betref.WithdrawalSubmit) (*betref.WithdrawalRequest, error)
}

// History é uma lista do usuário; FromCache quando a busca falhou e o cache respondeu
type History[T any] struct {
	Items     []T
	FromCache bool
}

type Service struct {
	backend     Backend
	sess        session.View
	deposits    *session.ListCache[betref.DepositRequest]
	withdrawals *session.ListCache[betref.WithdrawalRequest]
	policy      ProofPolicy
	notify      notify.Notifier
	log         *zap.Logger
}

type Options struct {
	Deposits    *session.ListCache[betref.DepositRequest]
	Withdrawals *session.ListCache[betref.WithdrawalRequest]
	Policy      ProofPolicy
	Notifier    notify.Notifier
	Logger      *zap.Logger
}

func NewService(b Backend, sess session.View, o Options) *Service {
	s := &Service{
		backend:     b,
		sess:        sess,
		deposits:    o.Deposits,
		withdrawals: o.Withdrawals,
		policy:      o.Policy,
		notify:      o.Notifier,
		log:         o.Logger,
	}
	if s.policy == "" {
		s.policy = ProofUnverifiedOnly
	}
	if s.notify == nil {
		s.notify = notify.Discard{}
	}
	s.log = logger.OrNop(s.log)
	return s
}

func (s *Service) account(ctx context.Context) (betref.Account, error) {
	acc, ok, err := s.sess.Account(ctx)
	if err != nil {
		return betref.Account{}, err
	}
	if !ok {
		return betref.Account{}, api.ErrAuthExpired
	}
	return *acc, nil
}

// SubmitDeposit valida com a conta em cache e só então chama o backend
func (s *Service) SubmitDeposit(ctx context.Context, f DepositForm) (*betref.DepositRequest, error) {
	acc, err := s.account(ctx)
	if err != nil {
		return nil, s.fail(ctx, "deposit", err)
	}
	if err := f.Validate(acc, s.policy); err != nil {
		s.notify.Notify(notify.Error, api.Message(err))
		return nil, err
	}

	out, err := s.backend.SubmitDeposit(ctx, f.submit())
	if err != nil {
		return nil, s.fail(ctx, "deposit", err)
	}
	s.log.Info("deposit submitted", zap.Int64("depositId", out.ID), zap.String("amount", f.Amount.String()))
	s.notify.Notify(notify.Success, "Solicitud de depósito enviada")
	return out, nil
}

func (s *Service) SubmitWithdrawal(ctx context.Context, f WithdrawalForm) (*betref.WithdrawalRequest, error) {
	acc, err := s.account(ctx)
	if err != nil {
		return nil, s.fail(ctx, "withdrawal", err)
	}
	if err := f.Validate(acc); err != nil {
		s.notify.Notify(notify.Error, api.Message(err))
		return nil, err
	}

	out, err := s.backend.SubmitWithdrawal(ctx, f.submit())
	if err != nil {
		return nil, s.fail(ctx, "withdrawal", err)
	}
	if !out.Commission.Equal(f.EstimatedCommission()) {
		s.log.Debug("server commission differs from estimate",
			zap.String("server", out.Commission.String()), zap.String("estimate", f.EstimatedCommission().String()))
	}
	s.log.Info("withdrawal submitted", zap.Int64("withdrawalId", out.ID), zap.String("amount", f.Amount.String()))
	s.notify.Notify(notify.Success, "Solicitud de retiro enviada")
	return out, nil
}

func (s *Service) Deposits(ctx context.Context) (History[betref.DepositRequest], error) {
	return loadHistory(ctx, s, "deposits", s.backend.MyDeposits, s.deposits)
}

func (s *Service) Withdrawals(ctx context.Context) (History[betref.WithdrawalRequest], error) {
	return loadHistory(ctx, s, "withdrawals", s.backend.MyWithdrawals, s.withdrawals)
}

// loadHistory grava o cache em sucesso e lê dele em falha (exceto 401)
func loadHistory[T any](ctx context.Context, s *Service, name string, fetch func(context.Context) ([]T, error), cache *session.ListCache[T]) (History[T], error) {
	items, err := fetch(ctx)
	if err == nil {
		if cache != nil {
			if cerr := cache.Save(ctx, items); cerr != nil {
				s.log.Warn("cache history", zap.String("list", name), zap.Error(cerr))
			}
		}
		return History[T]{Items: items}, nil
	}

	err = s.fail(ctx, name, err)
	if errors.Is(err, api.ErrAuthExpired) || cache == nil {
		return History[T]{}, err
	}
	cached, ok, cerr := cache.Load(ctx)
	if cerr != nil || !ok {
		return History[T]{}, err
	}
	return History[T]{Items: cached, FromCache: true}, err
}

func (s *Service) fail(ctx context.Context, op string, err error) error {
	if session.HandleAuthError(ctx, s.sess, err) {
		s.notify.Notify(notify.Error, api.MsgAuthExpired)
		return api.ErrAuthExpired
	}
	s.log.Warn(op+" failed", zap.Error(err))
	s.notify.Notify(notify.Error, api.Message(err))
	return err
}
