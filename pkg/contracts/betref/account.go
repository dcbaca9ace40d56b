package betref

import "github.com/shopspring/decimal"

// Account é o snapshot de conta devolvido por /me e /admin/admin/usuarios
type Account struct {
	ID                  int64           `json:"id"`
	Username            string          `json:"username"`
	Email               string          `json:"email"`
	Balance             decimal.Decimal `json:"saldo"`
	Verified            bool            `json:"verificado"`
	VerificationPending bool            `json:"verificacion_pendiente"`
	Tier                string          `json:"nivel,omitempty"`
	IsAdmin             bool            `json:"es_admin,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	Account     Account `json:"usuario"`
}

type RegisterRequest struct {
	Username   string `json:"username" validate:"required,min=3,max=32"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	ReferrerID *int64 `json:"referido_por,omitempty" validate:"omitempty,gt=0"`
}

// ErrorResponse é o corpo padrão de erro do backend
type ErrorResponse struct {
	Detail string `json:"detail"`
}

type MessageResponse struct {
	Message string `json:"mensaje"`
}
