package cli

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/pflag"

	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/client/notify"
	"github.com/radieske/betref-client/internal/client/referral"
	"github.com/radieske/betref-client/pkg/contracts/betref"
)

func newFlags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (a *App) login(ctx context.Context, args []string) error {
	fs := newFlags("login")
	user := fs.StringP("username", "u", "", "usuario")
	pass := fs.StringP("password", "p", "", "contraseña")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *user == "" {
		*user = a.ui.ask("Usuario")
	}
	if *pass == "" {
		*pass = a.ui.ask("Contraseña")
	}
	acc, err := a.authService().Login(ctx, *user, *pass)
	if err != nil {
		return err
	}
	a.printAccount(acc)
	return nil
}

func (a *App) register(ctx context.Context, args []string) error {
	fs := newFlags("register")
	user := fs.StringP("username", "u", "", "usuario")
	email := fs.StringP("email", "e", "", "correo")
	pass := fs.StringP("password", "p", "", "contraseña")
	ref := fs.Int64("referrer", 0, "id de quien te refirió")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *user == "" {
		*user = a.ui.ask("Usuario")
	}
	if *email == "" {
		*email = a.ui.ask("Correo")
	}
	if *pass == "" {
		*pass = a.ui.ask("Contraseña")
	}
	acc, err := a.authService().Register(ctx, *user, *email, *pass, *ref)
	if err != nil {
		return err
	}
	a.ui.Printf("Cuenta #%d creada para %s\n", acc.ID, acc.Username)
	return nil
}

func (a *App) logout(ctx context.Context, _ []string) error {
	return a.authService().Logout(ctx)
}

// me recarrega /me; em falha de rede mostra a conta em cache
func (a *App) me(ctx context.Context, _ []string) error {
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	acc, err := a.authService().Reload(ctx)
	if acc != nil {
		if err != nil {
			a.ui.Println("(datos guardados)")
		}
		a.printAccount(acc)
	}
	return err
}

func (a *App) printAccount(acc *betref.Account) {
	a.ui.Printf("#%d %s <%s>\n", acc.ID, acc.Username, acc.Email)
	a.ui.Printf("  saldo:       %s\n", money(acc.Balance))
	a.ui.Printf("  verificado:  %s\n", yesNo(acc.Verified))
	if acc.VerificationPending {
		a.ui.Println("  verificación en revisión")
	}
	if acc.Tier != "" {
		a.ui.Printf("  nivel:       %s\n", acc.Tier)
	}
	if acc.IsAdmin {
		a.ui.Println("  administrador")
	}
}

func (a *App) referrals(ctx context.Context, _ []string) error {
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	l, err := a.referralView().Load(ctx)
	if errors.Is(err, api.ErrAuthExpired) {
		a.notes.Notify(notify.Error, api.MsgAuthExpired)
		return err
	}
	if err != nil {
		a.notes.Notify(notify.Error, api.Message(err))
		if !l.FromCache {
			return err
		}
	}
	a.printLedger(l)
	return err
}

func (a *App) printLedger(l referral.Ledger) {
	if l.FromCache {
		a.ui.Println("(datos guardados)")
	}
	a.ui.Printf("Referidos: %d  verificados: %d  sub-referidos: %d  ganancias: %s\n",
		l.Stats.Total, l.Stats.Verified, l.Stats.SubReferrals, money(l.Stats.TotalEarnings))
	if len(l.Nodes) == 0 {
		a.ui.Println("Aún no tienes referidos. Comparte tu id al registrarse.")
		return
	}
	for _, n := range l.Nodes {
		a.ui.Printf("- %-20s verificado: %-3s sub: %-3d ganancia: %s\n", n.Username, yesNo(n.Verified), len(n.SubReferrals), money(n.Earnings))
		for _, s := range n.SubReferrals {
			a.ui.Printf("    · %s (verificado: %s)\n", s.Username, yesNo(s.Verified))
		}
	}
}
