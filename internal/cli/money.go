package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/client/transactions"
	"github.com/radieske/betref-client/pkg/contracts/betref"
)

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, errUsage
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("monto %q: %w", raw, errUsage)
	}
	return d, nil
}

func (a *App) deposit(ctx context.Context, args []string) error {
	fs := newFlags("deposit")
	amount := fs.String("amount", "", "monto")
	method := fs.String("method", "", "transferencia|nequi|daviplata|pse")
	ref := fs.String("reference", "", "referencia del pago")
	proof := fs.String("proof", "", "imagen del comprobante")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	amt, err := parseAmount(*amount)
	if err != nil {
		return err
	}
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	svc, err := a.transactionService()
	if err != nil {
		return err
	}

	form := transactions.DepositForm{Amount: amt, Method: *method, Reference: *ref}
	if *proof != "" {
		data, err := os.ReadFile(*proof)
		if err != nil {
			return fmt.Errorf("read proof: %w", err)
		}
		form.Proof = &api.Upload{Filename: filepath.Base(*proof), Data: data}
	}
	d, err := svc.SubmitDeposit(ctx, form)
	if err != nil {
		return err
	}
	a.ui.Printf("Depósito #%d por %s (%s)\n", d.ID, money(d.Amount), d.Status)
	return nil
}

func (a *App) withdraw(ctx context.Context, args []string) error {
	fs := newFlags("withdraw")
	amount := fs.String("amount", "", "monto")
	method := fs.String("method", "", "transferencia|nequi|daviplata")
	dest := fs.String("account", "", "cuenta destino")
	ref := fs.String("reference", "", "referencia")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	amt, err := parseAmount(*amount)
	if err != nil {
		return err
	}
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	// o saldo em cache decide a validação local; atualiza antes
	if _, err := a.authService().Reload(ctx); errors.Is(err, api.ErrAuthExpired) {
		return err
	}
	svc, err := a.transactionService()
	if err != nil {
		return err
	}

	form := transactions.WithdrawalForm{Amount: amt, Method: *method, DestinationAccount: *dest, Reference: *ref}
	a.ui.Printf("Comisión estimada: %s\n", money(form.EstimatedCommission()))
	w, err := svc.SubmitWithdrawal(ctx, form)
	if err != nil {
		return err
	}
	a.ui.Printf("Retiro #%d por %s, comisión %s (%s)\n", w.ID, money(w.Amount), money(w.Commission), w.Status)
	return nil
}

func (a *App) deposits(ctx context.Context, _ []string) error {
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	svc, err := a.transactionService()
	if err != nil {
		return err
	}
	h, err := svc.Deposits(ctx)
	if err != nil && !h.FromCache {
		return err
	}
	a.printDeposits(h)
	return err
}

func (a *App) withdrawals(ctx context.Context, _ []string) error {
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	svc, err := a.transactionService()
	if err != nil {
		return err
	}
	h, err := svc.Withdrawals(ctx)
	if err != nil && !h.FromCache {
		return err
	}
	a.printWithdrawals(h)
	return err
}

func (a *App) printDeposits(h transactions.History[betref.DepositRequest]) {
	if h.FromCache {
		a.ui.Println("(datos guardados)")
	}
	if len(h.Items) == 0 {
		a.ui.Println("Sin depósitos.")
		return
	}
	for _, d := range h.Items {
		a.ui.Printf("#%-5d %s  %-14s %-10s %s  ref: %s\n",
			d.ID, d.RequestedAt.Local().Format("2006-01-02 15:04"), money(d.Amount), d.Status, d.Method, empty(d.Reference))
	}
}

func (a *App) printWithdrawals(h transactions.History[betref.WithdrawalRequest]) {
	if h.FromCache {
		a.ui.Println("(datos guardados)")
	}
	if len(h.Items) == 0 {
		a.ui.Println("Sin retiros.")
		return
	}
	for _, w := range h.Items {
		a.ui.Printf("#%-5d %s  %-14s %-10s %s -> %s  comisión: %s\n",
			w.ID, w.RequestedAt.Local().Format("2006-01-02 15:04"), money(w.Amount), w.Status, w.Method, w.DestinationAccount, money(w.Commission))
	}
}
