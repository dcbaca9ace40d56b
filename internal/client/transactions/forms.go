package transactions

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/shared/validation"
	"github.com/radieske/betref-client/pkg/contracts/betref"
)

// Limites em unidades monetárias
var (
	DepositMin    = decimal.NewFromInt(10_000)
	DepositMax    = decimal.NewFromInt(1_000_000)
	WithdrawalMin = decimal.NewFromInt(50_000)
	WithdrawalMax = decimal.NewFromInt(1_000_000)

	commissionRate = decimal.RequireFromString("0.05")
)

// MaxProofSize é o teto do comprovante de depósito
const MaxProofSize = 5 << 20

// ProofPolicy decide quem precisa anexar comprovante
type ProofPolicy string

const (
	// conta verificada fica isenta (regra de produto)
	ProofUnverifiedOnly ProofPolicy = "unverified"
	// exige comprovante só de contas verificadas, como o formulário antigo fazia
	ProofVerifiedOnly ProofPolicy = "verified"
)

func ParseProofPolicy(s string) (ProofPolicy, error) {
	switch ProofPolicy(s) {
	case ProofUnverifiedOnly, "":
		return ProofUnverifiedOnly, nil
	case ProofVerifiedOnly:
		return ProofVerifiedOnly, nil
	}
	return "", fmt.Errorf("unknown deposit proof policy %q", s)
}

// ProofRequired aplica a política à conta em cache
func (p ProofPolicy) ProofRequired(acc betref.Account) bool {
	if p == ProofVerifiedOnly {
		return acc.Verified
	}
	return !acc.Verified
}

type DepositForm struct {
	Amount    decimal.Decimal `json:"monto"`
	Method    string          `json:"metodo_pago" validate:"required,oneof=transferencia nequi daviplata pse"`
	Reference string          `json:"referencia" validate:"max=100"`
	Proof     *api.Upload     `json:"-"`
}

// Validate roda antes de qualquer chamada; devolve *validation.Error
func (f DepositForm) Validate(acc betref.Account, policy ProofPolicy) error {
	verr := validation.Struct(f)
	checkRange(verr, "monto", f.Amount, DepositMin, DepositMax)

	switch {
	case f.Proof == nil || f.Proof.Size() == 0:
		if policy.ProofRequired(acc) {
			verr.Add("comprobante", "Adjunta el comprobante de pago")
		}
	case !f.Proof.IsImage():
		verr.Add("comprobante", "El comprobante debe ser una imagen")
	case f.Proof.Size() > MaxProofSize:
		verr.Add("comprobante", "El comprobante no puede superar 5 MB")
	}
	return verr.OrNil()
}

func (f DepositForm) submit() api.DepositSubmit {
	proof := f.Proof
	if proof != nil && proof.Size() == 0 {
		proof = nil
	}
	return api.DepositSubmit{Amount: f.Amount, Method: f.Method, Reference: f.Reference, Proof: proof}
}

type WithdrawalForm struct {
	Amount             decimal.Decimal `json:"monto"`
	Method             string          `json:"metodo" validate:"required,oneof=transferencia nequi daviplata"`
	DestinationAccount string          `json:"cuenta_destino" validate:"required,min=8"`
	Reference          string          `json:"referencia" validate:"max=100"`
}

// Validate confere limites e o saldo em cache; o backend continua sendo o árbitro
func (f WithdrawalForm) Validate(acc betref.Account) error {
	verr := validation.Struct(f)
	checkRange(verr, "monto", f.Amount, WithdrawalMin, WithdrawalMax)
	if f.Amount.GreaterThan(acc.Balance) {
		verr.Add("monto", "Saldo insuficiente")
	}
	return verr.OrNil()
}

// EstimatedCommission é só exibição; a comissão do servidor vale
func (f WithdrawalForm) EstimatedCommission() decimal.Decimal {
	return EstimatedCommission(f.Amount)
}

func EstimatedCommission(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(commissionRate).Round(2)
}

func (f WithdrawalForm) submit() betref.WithdrawalSubmit {
	return betref.WithdrawalSubmit{
		Amount:             f.Amount,
		Method:             f.Method,
		DestinationAccount: f.DestinationAccount,
		Reference:          f.Reference,
	}
}

func checkRange(verr *validation.Error, field string, v, lo, hi decimal.Decimal) {
	if v.LessThan(lo) || v.GreaterThan(hi) {
		verr.Add(field, fmt.Sprintf("El monto debe estar entre %s y %s", lo.String(), hi.String()))
	}
}
