package cli

import (
	"context"
	"errors"
	"strconv"

	"github.com/radieske/betref-client/internal/client/admin"
	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/client/notify"
)

// acciones do painel que recebem um id
var decisions = map[string]func(q *admin.Queue, ctx context.Context, id int64) error{
	"approve-verification": (*admin.Queue).ApproveVerification,
	"reject-verification":  (*admin.Queue).RejectVerification,
	"approve-deposit":      (*admin.Queue).ApproveDeposit,
	"reject-deposit":       (*admin.Queue).RejectDeposit,
	"approve-withdrawal":   (*admin.Queue).ApproveWithdrawal,
	"reject-withdrawal":    (*admin.Queue).RejectWithdrawal,
}

func (a *App) admin(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	acc, err := a.requireSession(ctx)
	if err != nil {
		return err
	}
	q := a.queue(acc.Username)

	// carga parcial ainda mostra o que veio
	if err := q.Load(ctx); err != nil {
		if errors.Is(err, api.ErrAuthExpired) {
			a.notes.Notify(notify.Error, api.MsgAuthExpired)
			return err
		}
		a.notes.Notify(notify.Error, api.Message(err))
	}

	switch args[0] {
	case "queue":
		a.printQueue(q)
		return nil
	case "users":
		return a.adminUsers(q, args[1:])
	}

	fn, ok := decisions[args[0]]
	if !ok || len(args) != 2 {
		return errUsage
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id <= 0 {
		return errUsage
	}
	err = fn(q, ctx, id)
	switch {
	case errors.Is(err, admin.ErrDeclined):
		a.ui.Println("Cancelado.")
		return nil
	case errors.Is(err, admin.ErrNotPending):
		a.notes.Notify(notify.Error, "La solicitud ya no está pendiente")
	case errors.Is(err, admin.ErrInFlight):
		a.notes.Notify(notify.Info, "La solicitud ya se está procesando")
	}
	return err
}

func (a *App) adminUsers(q *admin.Queue, args []string) error {
	fs := newFlags("admin users")
	search := fs.String("search", "", "usuario o correo")
	filter := fs.String("filter", string(admin.FilterAll), "all|verified|unverified")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	f := admin.Filter(*filter)
	switch f {
	case admin.FilterAll, admin.FilterVerified, admin.FilterUnverified:
	default:
		return errUsage
	}

	list := q.Accounts(*search, f)
	if len(list) == 0 {
		a.ui.Println("Sin resultados.")
		return nil
	}
	for _, u := range list {
		a.ui.Printf("#%-5d %-20s %-28s saldo: %-14s verificado: %s\n", u.ID, u.Username, u.Email, money(u.Balance.V), yesNo(u.Verified.V))
	}
	return nil
}

func (a *App) printQueue(q *admin.Queue) {
	a.ui.Println("== Verificaciones ==")
	vs := q.Verifications()
	if len(vs) == 0 {
		a.ui.Println("  (vacío)")
	}
	for _, v := range vs {
		a.ui.Printf("  #%-5d cuenta %-6d %-20s %s  %s\n", v.ID, v.RawID, v.Label(), v.CreatedAt.Local().Format("2006-01-02 15:04"), v.FileURL)
	}

	a.ui.Println("== Depósitos ==")
	ds := q.Deposits()
	if len(ds) == 0 {
		a.ui.Println("  (vacío)")
	}
	for _, d := range ds {
		a.ui.Printf("  #%-5d %-20s %-14s %-12s ref: %s  comprobante: %s\n", d.ID, d.Label(), money(d.Amount), d.Method, empty(d.Reference), empty(d.ProofURL))
	}

	a.ui.Println("== Retiros ==")
	ws := q.Withdrawals()
	if len(ws) == 0 {
		a.ui.Println("  (vacío)")
	}
	for _, w := range ws {
		mark := ""
		if !w.CanApprove() {
			mark = "  [saldo insuficiente]"
		}
		bal := "-"
		if w.Found {
			bal = money(w.Account.Balance.V)
		}
		a.ui.Printf("  #%-5d %-20s %-14s saldo: %-14s %s -> %s%s\n", w.ID, w.Label(), money(w.Amount), bal, w.Method, w.DestinationAccount, mark)
	}
}
