package admin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/client/notify"
	"github.com/radieske/betref-client/internal/client/optimistic"
	"github.com/radieske/betref-client/internal/client/session"
	"github.com/radieske/betref-client/internal/shared/logger"
	"github.com/radieske/betref-client/pkg/contracts/betref"
)

var (
	ErrNotPending          = errors.New("item is not pending")
	ErrInFlight            = errors.New("item already being processed")
	ErrDeclined            = errors.New("cancelled by operator")
	ErrInsufficientBalance = errors.New("cached balance below withdrawal amount")
)

// Backend são as rotas de admin usadas pelo painel
type Backend interface {
	AdminUsers(ctx context.Context) ([]betref.Account, error)
	AdminVerifications(ctx context.Context) ([]betref.VerificationRequest, error)
	ApproveVerification(ctx context.Context, accountID int64) (*betref.DecisionResponse, error)
	RejectVerification(ctx context.Context, verificationID int64) (*betref.DecisionResponse, error)
	PendingDeposits(ctx context.Context) ([]betref.DepositRequest, error)
	ApproveDeposit(ctx context.Context, id int64) (*betref.DecisionResponse, error)
	RejectDeposit(ctx context.Context, id int64) (*betref.DecisionResponse, error)
	PendingWithdrawals(ctx context.Context) ([]betref.WithdrawalRequest, error)
	ApproveWithdrawal(ctx context.Context, id int64) (*betref.DecisionResponse, error)
	RejectWithdrawal(ctx context.Context, id int64) (*betref.DecisionResponse, error)
}

// Confirmer é o prompt bloqueante sim/não antes de cada mutação
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// AccountView é a conta como o painel a exibe. Saldo e verificado podem ser palpites locais.
type AccountView struct {
	ID                  int64
	Username            string
	Email               string
	Balance             optimistic.Value[decimal.Decimal]
	Verified            optimistic.Value[bool]
	VerificationPending bool
}

func viewOf(a betref.Account) *AccountView {
	return &AccountView{
		ID:                  a.ID,
		Username:            a.Username,
		Email:               a.Email,
		Balance:             optimistic.Server(a.Balance),
		Verified:            optimistic.Server(a.Verified),
		VerificationPending: a.VerificationPending,
	}
}

// Joined é o lado conta de uma linha; Found=false quando o id não está na lista de usuários
type Joined struct {
	RawID   int64
	Account AccountView
	Found   bool
}

// Label devolve o username ou o id cru
func (j Joined) Label() string {
	if j.Found {
		return j.Account.Username
	}
	return "#" + strconv.FormatInt(j.RawID, 10)
}

type VerificationRow struct {
	betref.VerificationRequest
	Joined
}

type DepositRow struct {
	betref.DepositRequest
	Joined
}

type WithdrawalRow struct {
	betref.WithdrawalRequest
	Joined
}

// CanApprove é a trava local do botão: saldo em cache >= valor pedido
func (r WithdrawalRow) CanApprove() bool {
	return r.Found && r.Account.Balance.V.GreaterThanOrEqual(r.Amount)
}

type rowKey struct {
	kind string
	id   int64
}

// Queue mantém as três filas pendentes cruzadas com a lista de contas
type Queue struct {
	backend  Backend
	confirm  Confirmer
	sess     session.View
	notify   notify.Notifier
	audit    Publisher
	log      *zap.Logger
	operator string

	// OnDecision alimenta as métricas (tipo, erro)
	OnDecision func(kind string, err error)

	mu            sync.Mutex
	accounts      []*AccountView
	index         map[int64]*AccountView
	verifications []betref.VerificationRequest
	deposits      []betref.DepositRequest
	withdrawals   []betref.WithdrawalRequest
	inFlight      map[rowKey]struct{}
	now           func() time.Time
}

type Options struct {
	Confirm  Confirmer
	Session  session.View
	Notifier notify.Notifier
	Audit    Publisher
	Logger   *zap.Logger
	Operator string
}

func NewQueue(b Backend, o Options) *Queue {
	q := &Queue{
		backend:  b,
		confirm:  o.Confirm,
		sess:     o.Session,
		notify:   o.Notifier,
		audit:    o.Audit,
		log:      o.Logger,
		operator: o.Operator,
		index:    map[int64]*AccountView{},
		inFlight: map[rowKey]struct{}{},
		now:      time.Now,
	}
	if q.confirm == nil {
		q.confirm = ConfirmFunc(func(context.Context, string) bool { return true })
	}
	if q.notify == nil {
		q.notify = notify.Discard{}
	}
	if q.audit == nil {
		q.audit = NopPublisher{}
	}
	q.log = logger.OrNop(q.log)
	return q
}

// Load busca as quatro listas em paralelo. Cada lista só é trocada se a própria busca deu certo.
func (q *Queue) Load(ctx context.Context) error {
	var (
		users  []betref.Account
		verifs []betref.VerificationRequest
		deps   []betref.DepositRequest
		wds    []betref.WithdrawalRequest
	)
	var usersErr, verifErr, depErr, wdErr error

	var wg conc.WaitGroup
	wg.Go(func() { users, usersErr = q.backend.AdminUsers(ctx) })
	wg.Go(func() { verifs, verifErr = q.backend.AdminVerifications(ctx) })
	wg.Go(func() { deps, depErr = q.backend.PendingDeposits(ctx) })
	wg.Go(func() { wds, wdErr = q.backend.PendingWithdrawals(ctx) })
	wg.Wait()

	q.mu.Lock()
	if usersErr == nil {
		q.rebuildIndexLocked(users)
	}
	if verifErr == nil {
		q.verifications = verifs
	}
	if depErr == nil {
		q.deposits = deps
	}
	if wdErr == nil {
		q.withdrawals = wds
	}
	q.mu.Unlock()

	err := errors.Join(
		wrapLoad("usuarios", usersErr),
		wrapLoad("verificaciones", verifErr),
		wrapLoad("depositos", depErr),
		wrapLoad("retiros", wdErr),
	)
	if err != nil {
		if q.sess != nil && session.HandleAuthError(ctx, q.sess, err) {
			return api.ErrAuthExpired
		}
		q.log.Warn("admin queue load incomplete", zap.Error(err))
	}
	return err
}

func wrapLoad(list string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("load %s: %w", list, err)
}

// rebuildIndexLocked troca o índice inteiro; valores do servidor substituem os palpites
func (q *Queue) rebuildIndexLocked(users []betref.Account) {
	q.accounts = make([]*AccountView, 0, len(users))
	q.index = make(map[int64]*AccountView, len(users))
	for _, u := range users {
		v := viewOf(u)
		q.accounts = append(q.accounts, v)
		q.index[u.ID] = v
	}
}

func (q *Queue) joinLocked(accountID int64) Joined {
	if a, ok := q.index[accountID]; ok {
		return Joined{RawID: accountID, Account: *a, Found: true}
	}
	return Joined{RawID: accountID}
}

// Verifications devolve só PENDIENTE de contas ainda não verificadas, a mais recente por conta
func (q *Queue) Verifications() []VerificationRow {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.verificationRowsLocked()
}

func (q *Queue) verificationRowsLocked() []VerificationRow {
	newest := map[int64]betref.VerificationRequest{}
	for _, v := range q.verifications {
		if v.Status != betref.StatusPending {
			continue
		}
		if a, ok := q.index[v.AccountID]; ok && a.Verified.V {
			continue
		}
		cur, seen := newest[v.AccountID]
		if !seen || v.CreatedAt.After(cur.CreatedAt) || (v.CreatedAt.Equal(cur.CreatedAt) && v.ID > cur.ID) {
			newest[v.AccountID] = v
		}
	}

	rows := make([]VerificationRow, 0, len(newest))
	for _, v := range q.verifications {
		if n, ok := newest[v.AccountID]; ok && n.ID == v.ID {
			rows = append(rows, VerificationRow{VerificationRequest: v, Joined: q.joinLocked(v.AccountID)})
		}
	}
	return rows
}

func (q *Queue) Deposits() []DepositRow {
	q.mu.Lock()
	defer q.mu.Unlock()
	rows := make([]DepositRow, 0, len(q.deposits))
	for _, d := range q.deposits {
		if d.Status.Terminal() {
			continue
		}
		rows = append(rows, DepositRow{DepositRequest: d, Joined: q.joinLocked(d.AccountID)})
	}
	return rows
}

func (q *Queue) Withdrawals() []WithdrawalRow {
	q.mu.Lock()
	defer q.mu.Unlock()
	rows := make([]WithdrawalRow, 0, len(q.withdrawals))
	for _, w := range q.withdrawals {
		if w.Status.Terminal() {
			continue
		}
		rows = append(rows, WithdrawalRow{WithdrawalRequest: w, Joined: q.joinLocked(w.AccountID)})
	}
	return rows
}

func (q *Queue) Account(id int64) (AccountView, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if a, ok := q.index[id]; ok {
		return *a, true
	}
	return AccountView{}, false
}

// Filter é o filtro de três vias da tabela de contas
type Filter string

const (
	FilterAll        Filter = "all"
	FilterVerified   Filter = "verified"
	FilterUnverified Filter = "unverified"
)

// Accounts aplica busca (username/email, sem caixa) e filtro sobre a lista já carregada
func (q *Queue) Accounts(query string, f Filter) []AccountView {
	query = strings.ToLower(strings.TrimSpace(query))

	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]AccountView, 0, len(q.accounts))
	for _, a := range q.accounts {
		if query != "" &&
			!strings.Contains(strings.ToLower(a.Username), query) &&
			!strings.Contains(strings.ToLower(a.Email), query) {
			continue
		}
		switch f {
		case FilterVerified:
			if !a.Verified.V {
				continue
			}
		case FilterUnverified:
			if a.Verified.V {
				continue
			}
		}
		out = append(out, *a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InFlight indica que a linha tem uma decisão em andamento
func (q *Queue) InFlight(kind string, id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.inFlight[rowKey{kind, id}]
	return ok
}

func (q *Queue) begin(k rowKey) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, busy := q.inFlight[k]; busy {
		return false
	}
	q.inFlight[k] = struct{}{}
	return true
}

func (q *Queue) end(k rowKey) {
	q.mu.Lock()
	delete(q.inFlight, k)
	q.mu.Unlock()
}
