package betref

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status compartilhado por verificações, depósitos e retiros.
// Transições válidas: PENDIENTE -> APROBADO | RECHAZADO.
type Status string

const (
	StatusPending  Status = "PENDIENTE"
	StatusApproved Status = "APROBADO"
	StatusRejected Status = "RECHAZADO"
)

// Terminal indica que a solicitação não muda mais
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// VerificationRequest representa um envio de documento de identidade
type VerificationRequest struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"usuario_id"`
	FileURL   string    `json:"archivo_url"`
	Status    Status    `json:"estado"`
	CreatedAt time.Time `json:"fecha_creacion"`
}

// DepositRequest representa uma solicitação de depósito
type DepositRequest struct {
	ID          int64           `json:"id"`
	AccountID   int64           `json:"usuario_id"`
	Amount      decimal.Decimal `json:"monto"`
	Method      string          `json:"metodo_pago"`
	Reference   string          `json:"referencia"`
	ProofURL    string          `json:"comprobante_url,omitempty"`
	Status      Status          `json:"estado"`
	RequestedAt time.Time       `json:"fecha_solicitud"`
	ProcessedAt *time.Time      `json:"fecha_procesado,omitempty"`
}

// WithdrawalRequest representa uma solicitação de retiro.
// Commission é a comissão do servidor; a estimativa local é só exibição.
type WithdrawalRequest struct {
	ID                 int64           `json:"id"`
	AccountID          int64           `json:"usuario_id"`
	Amount             decimal.Decimal `json:"monto"`
	Method             string          `json:"metodo"`
	DestinationAccount string          `json:"cuenta_destino"`
	Reference          string          `json:"referencia"`
	Status             Status          `json:"estado"`
	Commission         decimal.Decimal `json:"comision"`
	RequestedAt        time.Time       `json:"fecha_solicitud"`
	ProcessedAt        *time.Time      `json:"fecha_procesado,omitempty"`
}

// WithdrawalSubmit é o corpo JSON de POST /transacciones/retiro
type WithdrawalSubmit struct {
	Amount             decimal.Decimal `json:"monto"`
	Method             string          `json:"metodo"`
	DestinationAccount string          `json:"cuenta_destino"`
	Reference          string          `json:"referencia"`
}

// DecisionResponse é devolvido pelas rotas de aprovar/rechazar do admin
type DecisionResponse struct {
	ID         int64            `json:"id"`
	Status     Status           `json:"estado"`
	Message    string           `json:"mensaje,omitempty"`
	NewBalance *decimal.Decimal `json:"nuevo_saldo,omitempty"`
	AccountID  int64            `json:"usuario_id,omitempty"`
}

// ReferralNode é um referido direto com seus sub-referidos (um nível só)
type ReferralNode struct {
	Username     string         `json:"username"`
	Verified     bool           `json:"verificado"`
	SubReferrals []ReferralNode `json:"subreferidos"`
}
