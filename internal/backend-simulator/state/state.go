// Package state guarda em memória tudo o que o simulador do backend BETREF expõe.
package state

import (
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/radieske/betref-client/pkg/contracts/betref"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyProcessed  = errors.New("request already processed")
	ErrDuplicate         = errors.New("username or email already registered")
	ErrBadCredentials    = errors.New("invalid credentials")
	ErrInvalidReferrer   = errors.New("referrer does not exist")
	ErrAlreadyVerified   = errors.New("account already verified")
	ErrOutOfRange        = errors.New("amount out of range")
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrNotVerified       = errors.New("account not verified")
	ErrAlreadyJoined     = errors.New("already joined the next draw")
)

var (
	depositMin    = decimal.NewFromInt(10_000)
	depositMax    = decimal.NewFromInt(1_000_000)
	withdrawalMin = decimal.NewFromInt(50_000)
	withdrawalMax = decimal.NewFromInt(1_000_000)
	commission    = decimal.RequireFromString("0.05")
)

type Config struct {
	AdminUser     string
	AdminPassword string
	DrawInterval  time.Duration
	DrawPrize     decimal.Decimal
	Now           func() time.Time
	Rand          *rand.Rand
}

type account struct {
	betref.Account
	hash       []byte
	referrerID int64
}

// State é seguro para uso concorrente; cada método trava o estado inteiro
type State struct {
	mu  sync.Mutex
	cfg Config

	seq           int64
	accounts      map[int64]*account
	verifications []*betref.VerificationRequest
	deposits      []*betref.DepositRequest
	withdrawals   []*betref.WithdrawalRequest
	draws         []betref.DrawResult
	participants  map[int64]struct{}
	nextDraw      time.Time
	files         map[string][]byte
}

func New(cfg Config) (*State, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DrawInterval <= 0 {
		cfg.DrawInterval = time.Hour
	}
	if cfg.DrawPrize.IsZero() {
		cfg.DrawPrize = decimal.NewFromInt(100_000)
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(cfg.Now().UnixNano()))
	}
	s := &State{
		cfg:          cfg,
		accounts:     map[int64]*account{},
		participants: map[int64]struct{}{},
		files:        map[string][]byte{},
		nextDraw:     cfg.Now().Add(cfg.DrawInterval).UTC(),
	}
	if cfg.AdminUser != "" {
		acc, err := s.Register(betref.RegisterRequest{
			Username: cfg.AdminUser,
			Email:    cfg.AdminUser + "@betref.local",
			Password: cfg.AdminPassword,
		})
		if err != nil {
			return nil, err
		}
		s.accounts[acc.ID].IsAdmin = true
		s.accounts[acc.ID].Verified = true
	}
	return s, nil
}

func (s *State) nextIDLocked() int64 {
	s.seq++
	return s.seq
}

func (s *State) now() time.Time { return s.cfg.Now().UTC() }

// ---- contas ----

func (s *State) Register(req betref.RegisterRequest) (betref.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		return betref.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Username, req.Username) || strings.EqualFold(a.Email, req.Email) {
			return betref.Account{}, ErrDuplicate
		}
	}
	var ref int64
	if req.ReferrerID != nil {
		if _, ok := s.accounts[*req.ReferrerID]; !ok {
			return betref.Account{}, ErrInvalidReferrer
		}
		ref = *req.ReferrerID
	}
	a := &account{
		Account: betref.Account{
			ID:       s.nextIDLocked(),
			Username: req.Username,
			Email:    req.Email,
			Balance:  decimal.Zero,
			Tier:     "bronce",
		},
		hash:       hash,
		referrerID: ref,
	}
	s.accounts[a.ID] = a
	return a.Account, nil
}

func (s *State) Authenticate(username, password string) (betref.Account, error) {
	s.mu.Lock()
	var found *account
	for _, a := range s.accounts {
		if a.Username == username {
			found = a
			break
		}
	}
	s.mu.Unlock()
	if found == nil {
		return betref.Account{}, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(found.hash, []byte(password)); err != nil {
		return betref.Account{}, ErrBadCredentials
	}
	return s.Account(found.ID)
}

func (s *State) Account(id int64) (betref.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return betref.Account{}, ErrNotFound
	}
	return a.Account, nil
}

func (s *State) Accounts() []betref.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]betref.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.Account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Referrals monta a árvore de referidos diretos com um nível de sub-referidos
func (s *State) Referrals(accountID int64) []betref.ReferralNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	direct := s.referredByLocked(accountID)
	out := make([]betref.ReferralNode, 0, len(direct))
	for _, d := range direct {
		subs := s.referredByLocked(d.ID)
		node := betref.ReferralNode{Username: d.Username, Verified: d.Verified, SubReferrals: make([]betref.ReferralNode, 0, len(subs))}
		for _, sub := range subs {
			node.SubReferrals = append(node.SubReferrals, betref.ReferralNode{Username: sub.Username, Verified: sub.Verified, SubReferrals: []betref.ReferralNode{}})
		}
		out = append(out, node)
	}
	return out
}

func (s *State) referredByLocked(id int64) []*account {
	var out []*account
	for _, a := range s.accounts {
		if a.referrerID == id {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---- arquivos ----

// StoreFile guarda o upload e devolve a referência
func (s *State) StoreFile(name string, data []byte) {
	s.mu.Lock()
	s.files[name] = append([]byte(nil), data...)
	s.mu.Unlock()
}

func (s *State) File(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[name]
	return b, ok
}

// ---- verificações ----

func (s *State) SubmitVerification(accountID int64, fileURL string) (betref.VerificationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return betref.VerificationRequest{}, ErrNotFound
	}
	if a.Verified {
		return betref.VerificationRequest{}, ErrAlreadyVerified
	}
	v := &betref.VerificationRequest{
		ID:        s.nextIDLocked(),
		AccountID: accountID,
		FileURL:   fileURL,
		Status:    betref.StatusPending,
		CreatedAt: s.now(),
	}
	s.verifications = append(s.verifications, v)
	a.VerificationPending = true
	return *v, nil
}

func (s *State) Verifications() []betref.VerificationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]betref.VerificationRequest, 0, len(s.verifications))
	for _, v := range s.verifications {
		out = append(out, *v)
	}
	return out
}

// ApproveVerification aprova todas as pendentes da conta; verificado e pendente nunca ficam true juntos
func (s *State) ApproveVerification(accountID int64) (betref.DecisionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return betref.DecisionResponse{}, ErrNotFound
	}
	var last *betref.VerificationRequest
	for _, v := range s.verifications {
		if v.AccountID == accountID && v.Status == betref.StatusPending {
			v.Status = betref.StatusApproved
			last = v
		}
	}
	if last == nil {
		return betref.DecisionResponse{}, ErrAlreadyProcessed
	}
	a.Verified = true
	a.VerificationPending = false
	return betref.DecisionResponse{ID: last.ID, Status: betref.StatusApproved, Message: "Usuario verificado", AccountID: accountID}, nil
}

// RejectVerification apaga a solicitação pendente e limpa o flag da conta
func (s *State) RejectVerification(id int64) (betref.DecisionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, v := range s.verifications {
		if v.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return betref.DecisionResponse{}, ErrNotFound
	}
	v := s.verifications[idx]
	if v.Status != betref.StatusPending {
		return betref.DecisionResponse{}, ErrAlreadyProcessed
	}
	s.verifications = append(s.verifications[:idx], s.verifications[idx+1:]...)

	if a, ok := s.accounts[v.AccountID]; ok {
		a.VerificationPending = false
		for _, other := range s.verifications {
			if other.AccountID == v.AccountID && other.Status == betref.StatusPending {
				a.VerificationPending = true
			}
		}
	}
	return betref.DecisionResponse{ID: id, Status: betref.StatusRejected, Message: "Verificación rechazada", AccountID: v.AccountID}, nil
}

// ---- depósitos ----

type DepositInput struct {
	Amount    decimal.Decimal
	Method    string
	Reference string
	ProofURL  string
}

func (s *State) SubmitDeposit(accountID int64, in DepositInput) (betref.DepositRequest, error) {
	if in.Amount.LessThan(depositMin) || in.Amount.GreaterThan(depositMax) {
		return betref.DepositRequest{}, ErrOutOfRange
	}
	if in.Method == "" {
		return betref.DepositRequest{}, ErrInvalidPayload
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID]; !ok {
		return betref.DepositRequest{}, ErrNotFound
	}
	d := &betref.DepositRequest{
		ID:          s.nextIDLocked(),
		AccountID:   accountID,
		Amount:      in.Amount,
		Method:      in.Method,
		Reference:   in.Reference,
		ProofURL:    in.ProofURL,
		Status:      betref.StatusPending,
		RequestedAt: s.now(),
	}
	s.deposits = append(s.deposits, d)
	return *d, nil
}

func (s *State) Deposits(accountID int64) []betref.DepositRequest {
	return s.filterDeposits(func(d *betref.DepositRequest) bool { return d.AccountID == accountID })
}

func (s *State) PendingDeposits() []betref.DepositRequest {
	return s.filterDeposits(func(d *betref.DepositRequest) bool { return d.Status == betref.StatusPending })
}

func (s *State) filterDeposits(keep func(*betref.DepositRequest) bool) []betref.DepositRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []betref.DepositRequest{}
	for _, d := range s.deposits {
		if keep(d) {
			out = append(out, *d)
		}
	}
	return out
}

func (s *State) ApproveDeposit(id int64) (betref.DecisionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.pendingDepositLocked(id)
	if err != nil {
		return betref.DecisionResponse{}, err
	}
	a, ok := s.accounts[d.AccountID]
	if !ok {
		return betref.DecisionResponse{}, ErrNotFound
	}
	a.Balance = a.Balance.Add(d.Amount)
	s.resolveDepositLocked(d, betref.StatusApproved)
	bal := a.Balance
	return betref.DecisionResponse{ID: id, Status: d.Status, Message: "Depósito aprobado", NewBalance: &bal, AccountID: a.ID}, nil
}

func (s *State) RejectDeposit(id int64) (betref.DecisionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.pendingDepositLocked(id)
	if err != nil {
		return betref.DecisionResponse{}, err
	}
	s.resolveDepositLocked(d, betref.StatusRejected)
	return betref.DecisionResponse{ID: id, Status: d.Status, Message: "Depósito rechazado", AccountID: d.AccountID}, nil
}

func (s *State) pendingDepositLocked(id int64) (*betref.DepositRequest, error) {
	for _, d := range s.deposits {
		if d.ID != id {
			continue
		}
		if d.Status.Terminal() {
			return nil, ErrAlreadyProcessed
		}
		return d, nil
	}
	return nil, ErrNotFound
}

func (s *State) resolveDepositLocked(d *betref.DepositRequest, st betref.Status) {
	now := s.now()
	d.Status = st
	d.ProcessedAt = &now
}

// ---- retiros ----

func (s *State) SubmitWithdrawal(accountID int64, in betref.WithdrawalSubmit) (betref.WithdrawalRequest, error) {
	if in.Amount.LessThan(withdrawalMin) || in.Amount.GreaterThan(withdrawalMax) {
		return betref.WithdrawalRequest{}, ErrOutOfRange
	}
	if in.Method == "" || len(in.DestinationAccount) < 8 {
		return betref.WithdrawalRequest{}, ErrInvalidPayload
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return betref.WithdrawalRequest{}, ErrNotFound
	}
	if a.Balance.LessThan(in.Amount) {
		return betref.WithdrawalRequest{}, ErrInsufficientFunds
	}
	w := &betref.WithdrawalRequest{
		ID:                 s.nextIDLocked(),
		AccountID:          accountID,
		Amount:             in.Amount,
		Method:             in.Method,
		DestinationAccount: in.DestinationAccount,
		Reference:          in.Reference,
		Status:             betref.StatusPending,
		Commission:         in.Amount.Mul(commission).Round(2),
		RequestedAt:        s.now(),
	}
	s.withdrawals = append(s.withdrawals, w)
	return *w, nil
}

func (s *State) Withdrawals(accountID int64) []betref.WithdrawalRequest {
	return s.filterWithdrawals(func(w *betref.WithdrawalRequest) bool { return w.AccountID == accountID })
}

func (s *State) PendingWithdrawals() []betref.WithdrawalRequest {
	return s.filterWithdrawals(func(w *betref.WithdrawalRequest) bool { return w.Status == betref.StatusPending })
}

func (s *State) filterWithdrawals(keep func(*betref.WithdrawalRequest) bool) []betref.WithdrawalRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []betref.WithdrawalRequest{}
	for _, w := range s.withdrawals {
		if keep(w) {
			out = append(out, *w)
		}
	}
	return out
}

// ApproveWithdrawal debita o saldo; sem saldo o retiro vira RECHAZADO e o erro é ErrInsufficientFunds
func (s *State) ApproveWithdrawal(id int64) (betref.DecisionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.pendingWithdrawalLocked(id)
	if err != nil {
		return betref.DecisionResponse{}, err
	}
	a, ok := s.accounts[w.AccountID]
	if !ok {
		return betref.DecisionResponse{}, ErrNotFound
	}
	if a.Balance.LessThan(w.Amount) {
		s.resolveWithdrawalLocked(w, betref.StatusRejected)
		return betref.DecisionResponse{}, ErrInsufficientFunds
	}
	a.Balance = a.Balance.Sub(w.Amount)
	s.resolveWithdrawalLocked(w, betref.StatusApproved)
	bal := a.Balance
	return betref.DecisionResponse{ID: id, Status: w.Status, Message: "Retiro aprobado", NewBalance: &bal, AccountID: a.ID}, nil
}

func (s *State) RejectWithdrawal(id int64) (betref.DecisionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.pendingWithdrawalLocked(id)
	if err != nil {
		return betref.DecisionResponse{}, err
	}
	s.resolveWithdrawalLocked(w, betref.StatusRejected)
	return betref.DecisionResponse{ID: id, Status: w.Status, Message: "Retiro rechazado", AccountID: w.AccountID}, nil
}

func (s *State) pendingWithdrawalLocked(id int64) (*betref.WithdrawalRequest, error) {
	for _, w := range s.withdrawals {
		if w.ID != id {
			continue
		}
		if w.Status.Terminal() {
			return nil, ErrAlreadyProcessed
		}
		return w, nil
	}
	return nil, ErrNotFound
}

func (s *State) resolveWithdrawalLocked(w *betref.WithdrawalRequest, st betref.Status) {
	now := s.now()
	w.Status = st
	w.ProcessedAt = &now
}

// ---- sorteio VIP ----

func (s *State) NextDraw() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextDraw
}

// Join inscreve a conta no próximo sorteio; só contas verificadas participam
func (s *State) Join(accountID int64) (betref.ParticipationResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return betref.ParticipationResponse{}, ErrNotFound
	}
	if !a.Verified {
		return betref.ParticipationResponse{}, ErrNotVerified
	}
	if _, in := s.participants[accountID]; in {
		return betref.ParticipationResponse{}, ErrAlreadyJoined
	}
	s.participants[accountID] = struct{}{}
	return betref.ParticipationResponse{Message: "Participación registrada", Draw: s.nextDraw}, nil
}

// Draw sorteia entre os inscritos, credita o prêmio e agenda o próximo.
// Sem inscritos só reagenda e devolve ok=false.
func (s *State) Draw() (betref.DrawResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextDraw = s.now().Add(s.cfg.DrawInterval)
	if len(s.participants) == 0 {
		return betref.DrawResult{}, false
	}

	ids := make([]int64, 0, len(s.participants))
	for id := range s.participants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	winner := s.accounts[ids[s.cfg.Rand.Intn(len(ids))]]
	winner.Balance = winner.Balance.Add(s.cfg.DrawPrize)

	r := betref.DrawResult{
		ID:           s.nextIDLocked(),
		DrawnAt:      s.now(),
		Winner:       winner.Username,
		Prize:        s.cfg.DrawPrize,
		Participants: len(ids),
	}
	s.draws = append(s.draws, r)
	s.participants = map[int64]struct{}{}
	return r, true
}

// Results devolve os sorteios do mais novo para o mais antigo
func (s *State) Results() []betref.DrawResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]betref.DrawResult, len(s.draws))
	for i, r := range s.draws {
		out[len(s.draws)-1-i] = r
	}
	return out
}
