package admin

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/client/notify"
	"github.com/radieske/betref-client/internal/client/optimistic"
	"github.com/radieske/betref-client/internal/client/session"
	"github.com/radieske/betref-client/pkg/contracts/betref"
	"github.com/radieske/betref-client/pkg/contracts/events"
)

// decision descreve uma mutação do painel. apply e onError rodam com q.mu travado.
type decision struct {
	key       rowKey
	action    string
	accountID int64
	amount    *decimal.Decimal
	prompt    string
	success   string
	call      func(ctx context.Context) (*betref.DecisionResponse, error)
	apply     func(resp *betref.DecisionResponse)
	onError   func(err error)
}

func (q *Queue) decide(ctx context.Context, d decision) error {
	if !q.begin(d.key) {
		return ErrInFlight
	}
	defer q.end(d.key)

	if !q.confirm.Confirm(ctx, d.prompt) {
		return ErrDeclined
	}

	resp, err := d.call(ctx)
	q.record(ctx, d, resp, err)
	if err != nil {
		if q.sess != nil && session.HandleAuthError(ctx, q.sess, err) {
			q.notify.Notify(notify.Error, api.MsgAuthExpired)
			return api.ErrAuthExpired
		}
		if d.onError != nil {
			q.mu.Lock()
			d.onError(err)
			q.mu.Unlock()
		}
		q.log.Warn("admin decision failed",
			zap.String("kind", d.key.kind), zap.String("action", d.action),
			zap.Int64("id", d.key.id), zap.Error(err))
		q.notify.Notify(notify.Error, api.Message(err))
		return err
	}

	q.mu.Lock()
	d.apply(resp)
	q.mu.Unlock()

	q.log.Info("admin decision applied",
		zap.String("kind", d.key.kind), zap.String("action", d.action), zap.Int64("id", d.key.id))
	q.notify.Notify(notify.Success, d.success)
	return nil
}

func (q *Queue) record(ctx context.Context, d decision, resp *betref.DecisionResponse, err error) {
	if q.OnDecision != nil {
		q.OnDecision(d.key.kind, err)
	}
	ev := events.AdminDecision{
		Kind:      d.key.kind,
		Decision:  d.action,
		ItemID:    d.key.id,
		AccountID: d.accountID,
		Amount:    d.amount,
		Operator:  q.operator,
		Ts:        q.now().UTC(),
	}
	if resp != nil {
		ev.Status = string(resp.Status)
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if perr := q.audit.Publish(ctx, ev); perr != nil {
		q.log.Warn("publish admin decision", zap.Error(perr))
	}
}

// ---- verificações ----

// ApproveVerification aprova pela conta; a rota do backend recebe o id da conta
func (q *Queue) ApproveVerification(ctx context.Context, accountID int64) error {
	q.mu.Lock()
	row, ok := q.pendingVerificationForLocked(accountID)
	q.mu.Unlock()
	if !ok {
		return ErrNotPending
	}

	return q.decide(ctx, decision{
		key:       rowKey{events.KindVerification, row.ID},
		action:    events.DecisionApprove,
		accountID: accountID,
		prompt:    fmt.Sprintf("¿Aprobar la verificación de %s?", row.Label()),
		success:   "Verificación aprobada",
		call: func(ctx context.Context) (*betref.DecisionResponse, error) {
			return q.backend.ApproveVerification(ctx, accountID)
		},
		apply: func(*betref.DecisionResponse) {
			if !q.removeVerificationsOfLocked(accountID) {
				return
			}
			if a, ok := q.index[accountID]; ok {
				a.Verified = optimistic.Guess(true)
				a.VerificationPending = false
			}
		},
	})
}

func (q *Queue) RejectVerification(ctx context.Context, verificationID int64) error {
	q.mu.Lock()
	row, ok := q.visibleVerificationLocked(verificationID)
	q.mu.Unlock()
	if !ok {
		return ErrNotPending
	}

	return q.decide(ctx, decision{
		key:       rowKey{events.KindVerification, verificationID},
		action:    events.DecisionReject,
		accountID: row.AccountID,
		prompt:    fmt.Sprintf("¿Rechazar la verificación de %s?", row.Label()),
		success:   "Verificación rechazada",
		call: func(ctx context.Context) (*betref.DecisionResponse, error) {
			return q.backend.RejectVerification(ctx, verificationID)
		},
		apply: func(*betref.DecisionResponse) {
			q.verifications, _ = removeByID(q.verifications, verificationID, func(v betref.VerificationRequest) int64 { return v.ID })
		},
	})
}

// ---- depósitos ----

func (q *Queue) ApproveDeposit(ctx context.Context, id int64) error {
	q.mu.Lock()
	row, ok := q.depositLocked(id)
	q.mu.Unlock()
	if !ok {
		return ErrNotPending
	}
	amount := row.Amount

	return q.decide(ctx, decision{
		key:       rowKey{events.KindDeposit, id},
		action:    events.DecisionApprove,
		accountID: row.AccountID,
		amount:    &amount,
		prompt:    fmt.Sprintf("¿Aprobar el depósito #%d de %s por %s?", id, row.Label(), amount.StringFixed(2)),
		success:   "Depósito aprobado",
		call: func(ctx context.Context) (*betref.DecisionResponse, error) {
			return q.backend.ApproveDeposit(ctx, id)
		},
		apply: func(resp *betref.DecisionResponse) {
			var removed bool
			q.deposits, removed = removeByID(q.deposits, id, func(d betref.DepositRequest) int64 { return d.ID })
			if !removed {
				return
			}
			q.adjustBalanceLocked(row.AccountID, resp, func(b decimal.Decimal) decimal.Decimal { return b.Add(amount) })
		},
	})
}

func (q *Queue) RejectDeposit(ctx context.Context, id int64) error {
	q.mu.Lock()
	row, ok := q.depositLocked(id)
	q.mu.Unlock()
	if !ok {
		return ErrNotPending
	}
	amount := row.Amount

	return q.decide(ctx, decision{
		key:       rowKey{events.KindDeposit, id},
		action:    events.DecisionReject,
		accountID: row.AccountID,
		amount:    &amount,
		prompt:    fmt.Sprintf("¿Rechazar el depósito #%d de %s?", id, row.Label()),
		success:   "Depósito rechazado",
		call: func(ctx context.Context) (*betref.DecisionResponse, error) {
			return q.backend.RejectDeposit(ctx, id)
		},
		apply: func(*betref.DecisionResponse) {
			q.deposits, _ = removeByID(q.deposits, id, func(d betref.DepositRequest) int64 { return d.ID })
		},
	})
}

// ---- retiros ----

// ApproveWithdrawal recusa localmente quando o saldo em cache não cobre o valor.
// Se o backend recusar por saldo, a linha sai da fila mesmo assim.
func (q *Queue) ApproveWithdrawal(ctx context.Context, id int64) error {
	q.mu.Lock()
	row, ok := q.withdrawalLocked(id)
	q.mu.Unlock()
	if !ok {
		return ErrNotPending
	}
	if !row.CanApprove() {
		q.notify.Notify(notify.Error, "Saldo insuficiente para aprobar este retiro")
		return ErrInsufficientBalance
	}
	amount := row.Amount

	return q.decide(ctx, decision{
		key:       rowKey{events.KindWithdrawal, id},
		action:    events.DecisionApprove,
		accountID: row.AccountID,
		amount:    &amount,
		prompt:    fmt.Sprintf("¿Aprobar el retiro #%d de %s por %s?", id, row.Label(), amount.StringFixed(2)),
		success:   "Retiro aprobado",
		call: func(ctx context.Context) (*betref.DecisionResponse, error) {
			return q.backend.ApproveWithdrawal(ctx, id)
		},
		apply: func(resp *betref.DecisionResponse) {
			var removed bool
			q.withdrawals, removed = removeByID(q.withdrawals, id, func(w betref.WithdrawalRequest) int64 { return w.ID })
			if !removed {
				return
			}
			q.adjustBalanceLocked(row.AccountID, resp, func(b decimal.Decimal) decimal.Decimal {
				return decimal.Max(decimal.Zero, b.Sub(amount))
			})
		},
		onError: func(err error) {
			if api.IsInsufficientFunds(err) {
				q.withdrawals, _ = removeByID(q.withdrawals, id, func(w betref.WithdrawalRequest) int64 { return w.ID })
			}
		},
	})
}

func (q *Queue) RejectWithdrawal(ctx context.Context, id int64) error {
	q.mu.Lock()
	row, ok := q.withdrawalLocked(id)
	q.mu.Unlock()
	if !ok {
		return ErrNotPending
	}
	amount := row.Amount

	return q.decide(ctx, decision{
		key:       rowKey{events.KindWithdrawal, id},
		action:    events.DecisionReject,
		accountID: row.AccountID,
		amount:    &amount,
		prompt:    fmt.Sprintf("¿Rechazar el retiro #%d de %s?", id, row.Label()),
		success:   "Retiro rechazado",
		call: func(ctx context.Context) (*betref.DecisionResponse, error) {
			return q.backend.RejectWithdrawal(ctx, id)
		},
		apply: func(*betref.DecisionResponse) {
			q.withdrawals, _ = removeByID(q.withdrawals, id, func(w betref.WithdrawalRequest) int64 { return w.ID })
		},
	})
}

// ---- helpers (q.mu travado) ----

// adjustBalanceLocked usa nuevo_saldo quando vier; senão aplica o palpite local
func (q *Queue) adjustBalanceLocked(accountID int64, resp *betref.DecisionResponse, guess func(decimal.Decimal) decimal.Decimal) {
	a, ok := q.index[accountID]
	if !ok {
		return
	}
	if resp != nil && resp.NewBalance != nil {
		a.Balance = optimistic.Reconcile(a.Balance, *resp.NewBalance)
		return
	}
	a.Balance = optimistic.Guess(guess(a.Balance.V))
}

func (q *Queue) pendingVerificationForLocked(accountID int64) (VerificationRow, bool) {
	for _, r := range q.verificationRowsLocked() {
		if r.AccountID == accountID {
			return r, true
		}
	}
	return VerificationRow{}, false
}

func (q *Queue) visibleVerificationLocked(id int64) (VerificationRow, bool) {
	for _, r := range q.verificationRowsLocked() {
		if r.ID == id {
			return r, true
		}
	}
	return VerificationRow{}, false
}

// removeVerificationsOfLocked tira todas as pendentes da conta aprovada
func (q *Queue) removeVerificationsOfLocked(accountID int64) bool {
	kept := q.verifications[:0]
	removed := false
	for _, v := range q.verifications {
		if v.AccountID == accountID && v.Status == betref.StatusPending {
			removed = true
			continue
		}
		kept = append(kept, v)
	}
	q.verifications = kept
	return removed
}

func (q *Queue) depositLocked(id int64) (DepositRow, bool) {
	for _, d := range q.deposits {
		if d.ID == id && !d.Status.Terminal() {
			return DepositRow{DepositRequest: d, Joined: q.joinLocked(d.AccountID)}, true
		}
	}
	return DepositRow{}, false
}

func (q *Queue) withdrawalLocked(id int64) (WithdrawalRow, bool) {
	for _, w := range q.withdrawals {
		if w.ID == id && !w.Status.Terminal() {
			return WithdrawalRow{WithdrawalRequest: w, Joined: q.joinLocked(w.AccountID)}, true
		}
	}
	return WithdrawalRow{}, false
}

// removeByID é idempotente: remover um id ausente não muda nada
func removeByID[T any](items []T, id int64, idOf func(T) int64) ([]T, bool) {
	for i, it := range items {
		if idOf(it) == id {
			out := make([]T, 0, len(items)-1)
			out = append(out, items[:i]...)
			return append(out, items[i+1:]...), true
		}
	}
	return items, false
}
