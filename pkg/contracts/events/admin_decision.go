package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de item resolvidos no painel
const (
	KindVerification = "verification"
	KindDeposit      = "deposit"
	KindWithdrawal   = "withdrawal"
)

const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// AdminDecision é publicado no tópico "betref_admin_decisions" após cada
// aprovação/rejeição, com sucesso ou não.
type AdminDecision struct {
	Kind      string           `json:"kind"`
	Decision  string           `json:"decision"`
	ItemID    int64            `json:"item_id"`
	AccountID int64            `json:"account_id,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Operator  string           `json:"operator,omitempty"`
	Status    string           `json:"status,omitempty"` // estado devolvido pelo backend
	Error     string           `json:"error,omitempty"`
	Ts        time.Time        `json:"ts"`
}
