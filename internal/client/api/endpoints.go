package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/radieske/betref-client/pkg/contracts/betref"
)

// ---- sessão ----

func (c *Client) Login(ctx context.Context, req betref.LoginRequest) (*betref.LoginResponse, error) {
	cl, err := jsonCall("login", http.MethodPost, "/login", false, req)
	if err != nil {
		return nil, err
	}
	var out betref.LoginResponse
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, req betref.RegisterRequest) (*betref.Account, error) {
	cl, err := jsonCall("register", http.MethodPost, "/register", false, req)
	if err != nil {
		return nil, err
	}
	var out betref.Account
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me busca o snapshot autoritativo da conta logada
func (c *Client) Me(ctx context.Context) (*betref.Account, error) {
	var out betref.Account
	if err := c.do(ctx, call{route: "me", method: http.MethodGet, path: "/me", auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- verificação ----

func (c *Client) SubmitVerification(ctx context.Context, file Upload) (*betref.VerificationRequest, error) {
	body, ct, err := multipartBody(nil, map[string]*Upload{"archivo": &file})
	if err != nil {
		return nil, err
	}
	var out betref.VerificationRequest
	cl := call{route: "verificate", method: http.MethodPost, path: "/verificate/verificate", auth: true, body: body, contentType: ct}
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- referidos ----

func (c *Client) Referrals(ctx context.Context) ([]betref.ReferralNode, error) {
	var out []betref.ReferralNode
	if err := c.do(ctx, call{route: "referidos", method: http.MethodGet, path: "/referidos", auth: true}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---- depósitos e retiros ----

// DepositSubmit são os campos do formulário de depósito; Proof é opcional
type DepositSubmit struct {
	Amount    decimal.Decimal
	Method    string
	Reference string
	Proof     *Upload
}

func (c *Client) MyDeposits(ctx context.Context) ([]betref.DepositRequest, error) {
	var out []betref.DepositRequest
	cl := call{route: "mis-depositos", method: http.MethodGet, path: "/transacciones/mis-depositos", auth: true}
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SubmitDeposit(ctx context.Context, d DepositSubmit) (*betref.DepositRequest, error) {
	fields := map[string]string{
		"monto":       d.Amount.String(),
		"metodo_pago": d.Method,
		"referencia":  d.Reference,
	}
	body, ct, err := multipartBody(fields, map[string]*Upload{"comprobante": d.Proof})
	if err != nil {
		return nil, err
	}
	var out betref.DepositRequest
	cl := call{route: "deposito", method: http.MethodPost, path: "/transacciones/deposito", auth: true, body: body, contentType: ct}
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MyWithdrawals(ctx context.Context) ([]betref.WithdrawalRequest, error) {
	var out []betref.WithdrawalRequest
	cl := call{route: "mis-retiros", method: http.MethodGet, path: "/transacciones/mis-retiros", auth: true}
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SubmitWithdrawal(ctx context.Context, w betref.WithdrawalSubmit) (*betref.WithdrawalRequest, error) {
	cl, err := jsonCall("retiro", http.MethodPost, "/transacciones/retiro", true, w)
	if err != nil {
		return nil, err
	}
	var out betref.WithdrawalRequest
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- sorteio VIP ----

func (c *Client) NextDraw(ctx context.Context) (*betref.NextDraw, error) {
	var out betref.NextDraw
	if err := c.do(ctx, call{route: "vip-next-draw", method: http.MethodGet, path: "/vip/vip/next_draw", auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DrawResults(ctx context.Context) ([]betref.DrawResult, error) {
	var out []betref.DrawResult
	if err := c.do(ctx, call{route: "vip-results", method: http.MethodGet, path: "/vip/vip/results", auth: true}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) JoinDraw(ctx context.Context) (*betref.ParticipationResponse, error) {
	var out betref.ParticipationResponse
	if err := c.do(ctx, call{route: "vip-participar", method: http.MethodPost, path: "/vip/vip/participar", auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- admin ----

func (c *Client) AdminUsers(ctx context.Context) ([]betref.Account, error) {
	var out []betref.Account
	if err := c.do(ctx, call{route: "admin-usuarios", method: http.MethodGet, path: "/admin/admin/usuarios", auth: true}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminVerifications(ctx context.Context) ([]betref.VerificationRequest, error) {
	var out []betref.VerificationRequest
	if err := c.do(ctx, call{route: "admin-verificaciones", method: http.MethodGet, path: "/admin/admin/verificaciones", auth: true}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ApproveVerification recebe o id da conta, não o da solicitação
func (c *Client) ApproveVerification(ctx context.Context, accountID int64) (*betref.DecisionResponse, error) {
	return c.decide(ctx, "admin-verificar", "/admin/admin/verificar/"+itoa(accountID))
}

func (c *Client) RejectVerification(ctx context.Context, verificationID int64) (*betref.DecisionResponse, error) {
	return c.decide(ctx, "admin-rechazar", "/admin/admin/rechazar/"+itoa(verificationID))
}

func (c *Client) PendingDeposits(ctx context.Context) ([]betref.DepositRequest, error) {
	var out []betref.DepositRequest
	cl := call{route: "admin-depositos-pendientes", method: http.MethodGet, path: "/transacciones/admin/depositos/pendientes", auth: true}
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ApproveDeposit(ctx context.Context, id int64) (*betref.DecisionResponse, error) {
	return c.decide(ctx, "admin-deposito-aprobar", "/transacciones/admin/depositos/"+itoa(id)+"/aprobar")
}

func (c *Client) RejectDeposit(ctx context.Context, id int64) (*betref.DecisionResponse, error) {
	return c.decide(ctx, "admin-deposito-rechazar", "/transacciones/admin/depositos/"+itoa(id)+"/rechazar")
}

func (c *Client) PendingWithdrawals(ctx context.Context) ([]betref.WithdrawalRequest, error) {
	var out []betref.WithdrawalRequest
	cl := call{route: "admin-retiros-pendientes", method: http.MethodGet, path: "/transacciones/admin/retiros/pendientes", auth: true}
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ApproveWithdrawal(ctx context.Context, id int64) (*betref.DecisionResponse, error) {
	return c.decide(ctx, "admin-retiro-aprobar", "/transacciones/admin/retiros/"+itoa(id)+"/aprobar")
}

func (c *Client) RejectWithdrawal(ctx context.Context, id int64) (*betref.DecisionResponse, error) {
	return c.decide(ctx, "admin-retiro-rechazar", "/transacciones/admin/retiros/"+itoa(id)+"/rechazar")
}

func (c *Client) decide(ctx context.Context, route, path string) (*betref.DecisionResponse, error) {
	var out betref.DecisionResponse
	if err := c.do(ctx, call{route: route, method: http.MethodPost, path: path, auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
