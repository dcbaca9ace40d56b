package transactions

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/client/session"
	"github.com/radieske/betref-client/internal/client/store"
	"github.com/radieske/betref-client/internal/shared/validation"
	"github.com/radieske/betref-client/pkg/contracts/betref"
)

var pngProof = &api.Upload{Filename: "c.png", Data: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	return verr.Fields
}

func TestDepositForm_Amount(t *testing.T) {
	acc := betref.Account{Verified: true}
	for _, tc := range []struct {
		amount string
		ok     bool
	}{
		{"9999.99", false},
		{"10000", true},
		{"1000000", true},
		{"1000000.01", false},
	} {
		f := DepositForm{Amount: dec(tc.amount), Method: "nequi"}
		err := f.Validate(acc, ProofUnverifiedOnly)
		if tc.ok {
			assert.NoError(t, err, tc.amount)
		} else {
			assert.Contains(t, fieldErrors(t, err), "monto", tc.amount)
		}
	}
}

func TestDepositForm_ProofPolicy(t *testing.T) {
	verified := betref.Account{Verified: true}
	unverified := betref.Account{}
	noProof := DepositForm{Amount: dec("20000"), Method: "pse"}

	// regra de produto: verificada não precisa de comprovante
	assert.NoError(t, noProof.Validate(verified, ProofUnverifiedOnly))
	assert.Contains(t, fieldErrors(t, noProof.Validate(unverified, ProofUnverifiedOnly)), "comprobante")

	// condição antiga, invertida
	assert.Contains(t, fieldErrors(t, noProof.Validate(verified, ProofVerifiedOnly)), "comprobante")
	assert.NoError(t, noProof.Validate(unverified, ProofVerifiedOnly))

	withProof := noProof
	withProof.Proof = pngProof
	assert.NoError(t, withProof.Validate(unverified, ProofUnverifiedOnly))
}

func TestDepositForm_ProofFile(t *testing.T) {
	f := DepositForm{Amount: dec("20000"), Method: "nequi", Proof: &api.Upload{Filename: "c.pdf", Data: []byte("%PDF-1.4\n")}}
	assert.Equal(t, "El comprobante debe ser una imagen", fieldErrors(t, f.Validate(betref.Account{}, ProofUnverifiedOnly))["comprobante"])

	big := append(append([]byte{}, pngProof.Data...), bytes.Repeat([]byte{0}, MaxProofSize)...)
	f.Proof = &api.Upload{Filename: "big.png", Data: big}
	assert.Contains(t, fieldErrors(t, f.Validate(betref.Account{}, ProofUnverifiedOnly))["comprobante"], "5 MB")
}

func TestDepositForm_Method(t *testing.T) {
	f := DepositForm{Amount: dec("20000"), Method: "bitcoin"}
	assert.Contains(t, fieldErrors(t, f.Validate(betref.Account{Verified: true}, ProofUnverifiedOnly)), "metodo_pago")
}

func TestWithdrawalForm_Validate(t *testing.T) {
	acc := betref.Account{Balance: dec("200000")}
	ok := WithdrawalForm{Amount: dec("50000"), Method: "nequi", DestinationAccount: "12345678"}
	assert.NoError(t, ok.Validate(acc))

	for name, f := range map[string]WithdrawalForm{
		"below min":     {Amount: dec("49999"), Method: "nequi", DestinationAccount: "12345678"},
		"above max":     {Amount: dec("1000001"), Method: "nequi", DestinationAccount: "12345678"},
		"above balance": {Amount: dec("200001"), Method: "nequi", DestinationAccount: "12345678"},
	} {
		assert.Contains(t, fieldErrors(t, f.Validate(acc)), "monto", name)
	}

	short := ok
	short.DestinationAccount = "1234567"
	assert.Contains(t, fieldErrors(t, short.Validate(acc)), "cuenta_destino")
}

func TestEstimatedCommission(t *testing.T) {
	assert.Equal(t, "2500", EstimatedCommission(dec("50000")).String())
	assert.Equal(t, "0.05", EstimatedCommission(dec("1")).String())
}

func TestParseProofPolicy(t *testing.T) {
	p, err := ParseProofPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ProofUnverifiedOnly, p)
	_, err = ParseProofPolicy("always")
	assert.Error(t, err)
}

type fakeBackend struct {
	deposits    []betref.DepositRequest
	withdrawals []betref.WithdrawalRequest
	err         error
	submitted   []any
}

func (f *fakeBackend) MyDeposits(context.Context) ([]betref.DepositRequest, error) {
	return f.deposits, f.err
}

func (f *fakeBackend) MyWithdrawals(context.Context) ([]betref.WithdrawalRequest, error) {
	return f.withdrawals, f.err
}

func (f *fakeBackend) SubmitDeposit(_ context.Context, d api.DepositSubmit) (*betref.DepositRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.submitted = append(f.submitted, d)
	return &betref.DepositRequest{ID: 1, Amount: d.Amount, Status: betref.StatusPending}, nil
}

func (f *fakeBackend) SubmitWithdrawal(_ context.Context, w betref.WithdrawalSubmit) (*betref.WithdrawalRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.submitted = append(f.submitted, w)
	return &betref.WithdrawalRequest{ID: 2, Amount: w.Amount, Commission: EstimatedCommission(w.Amount), Status: betref.StatusPending}, nil
}

func newService(t *testing.T, b *fakeBackend, acc betref.Account) (*Service, *session.Manager) {
	t.Helper()
	s := store.NewMemory()
	mgr := session.NewManager(s, nil)
	require.NoError(t, mgr.Login(context.Background(), "tok", acc))
	svc := NewService(b, mgr, Options{
		Deposits:    session.NewListCache[betref.DepositRequest](s, session.KeyDeposits),
		Withdrawals: session.NewListCache[betref.WithdrawalRequest](s, session.KeyWithdrawals),
	})
	return svc, mgr
}

func TestSubmitWithdrawal_ValidationBlocksNetwork(t *testing.T) {
	b := &fakeBackend{}
	svc, _ := newService(t, b, betref.Account{ID: 1, Balance: dec("60000")})

	_, err := svc.SubmitWithdrawal(context.Background(), WithdrawalForm{Amount: dec("70000"), Method: "nequi", DestinationAccount: "12345678"})
	require.Error(t, err)
	assert.Empty(t, b.submitted)

	out, err := svc.SubmitWithdrawal(context.Background(), WithdrawalForm{Amount: dec("60000"), Method: "nequi", DestinationAccount: "12345678"})
	require.NoError(t, err)
	assert.Equal(t, "3000", out.Commission.String())
	require.Len(t, b.submitted, 1)
}

func TestSubmitDeposit_VerifiedWithoutProof(t *testing.T) {
	b := &fakeBackend{}
	svc, _ := newService(t, b, betref.Account{ID: 1, Verified: true})

	_, err := svc.SubmitDeposit(context.Background(), DepositForm{Amount: dec("10000"), Method: "nequi", Reference: "ref-1"})
	require.NoError(t, err)
	require.Len(t, b.submitted, 1)
	assert.Nil(t, b.submitted[0].(api.DepositSubmit).Proof)
}

func TestHistory_CacheFallback(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{
		deposits:    []betref.DepositRequest{{ID: 7, Amount: dec("10000")}},
		withdrawals: []betref.WithdrawalRequest{{ID: 8, Amount: dec("50000")}},
	}
	svc, _ := newService(t, b, betref.Account{ID: 1})

	deps, err := svc.Deposits(ctx)
	require.NoError(t, err)
	assert.False(t, deps.FromCache)
	_, err = svc.Withdrawals(ctx)
	require.NoError(t, err)

	b.err = &api.NetworkError{Op: "mis-depositos", Err: errors.New("offline")}
	deps, err = svc.Deposits(ctx)
	require.Error(t, err)
	assert.True(t, deps.FromCache)
	require.Len(t, deps.Items, 1)
	assert.Equal(t, int64(7), deps.Items[0].ID)

	wds, err := svc.Withdrawals(ctx)
	require.Error(t, err)
	assert.True(t, wds.FromCache)
	assert.Equal(t, int64(8), wds.Items[0].ID)
}

func TestHistory_AuthExpiredSkipsCache(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{deposits: []betref.DepositRequest{{ID: 7}}}
	svc, mgr := newService(t, b, betref.Account{ID: 1})
	_, err := svc.Deposits(ctx)
	require.NoError(t, err)

	b.err = api.ErrAuthExpired
	h, err := svc.Deposits(ctx)
	assert.ErrorIs(t, err, api.ErrAuthExpired)
	assert.Empty(t, h.Items)
	tok, _ := mgr.Token(ctx)
	assert.Empty(t, tok)
}
