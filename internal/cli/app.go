package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/radieske/betref-client/internal/client/admin"
	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/client/auth"
	"github.com/radieske/betref-client/internal/client/lottery"
	"github.com/radieske/betref-client/internal/client/notify"
	"github.com/radieske/betref-client/internal/client/referral"
	"github.com/radieske/betref-client/internal/client/session"
	"github.com/radieske/betref-client/internal/client/store"
	"github.com/radieske/betref-client/internal/client/transactions"
	"github.com/radieske/betref-client/internal/client/verification"
	"github.com/radieske/betref-client/internal/shared/config"
	"github.com/radieske/betref-client/internal/shared/logger"
	"github.com/radieske/betref-client/internal/shared/metrics"
	"github.com/radieske/betref-client/pkg/contracts/betref"
)

// Códigos de saída
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
	ExitAuth  = 3
)

var errUsage = errors.New("usage")

type Options struct {
	Config  config.Config
	Logger  *zap.Logger
	Store   store.Store
	In      io.Reader
	Out     io.Writer
	Color   bool
	HTTP    *http.Client
	Metrics *metrics.ClientMetrics
	Audit   admin.Publisher
	Sleep   func(time.Duration)
}

// App monta os componentes sobre um store e um api.Client e despacha os subcomandos
type App struct {
	cfg     config.Config
	log     *zap.Logger
	ui      *UI
	notes   *notify.Center
	mgr     *session.Manager
	client  *api.Client
	metrics *metrics.ClientMetrics
	audit   admin.Publisher
	sleep   func(time.Duration)
	expired atomic.Bool
}

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, args []string) error
}

func New(o Options) *App {
	log := o.Logger
	log = logger.OrNop(log)
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	if o.Audit == nil {
		o.Audit = admin.NopPublisher{}
	}
	in := o.In
	if in == nil {
		in = strings.NewReader("")
	}

	a := &App{
		cfg:     o.Config,
		log:     log,
		ui:      NewUI(bufio.NewReader(in), o.Out, o.Color),
		metrics: o.Metrics,
		audit:   o.Audit,
		sleep:   o.Sleep,
	}
	a.notes = notify.NewCenter(o.Config.NotificationTTL, a.ui.Sink, log)
	a.mgr = session.NewManager(o.Store, log)
	a.mgr.OnExpired = a.redirect

	opts := []api.Option{api.WithLogger(log)}
	if o.HTTP != nil {
		opts = append(opts, api.WithHTTPClient(o.HTTP))
	} else if o.Config.HTTPTimeout > 0 {
		opts = append(opts, api.WithHTTPClient(&http.Client{Timeout: o.Config.HTTPTimeout}))
	}
	if o.Config.RateLimitRPS > 0 {
		opts = append(opts, api.WithLimiter(rate.NewLimiter(rate.Limit(o.Config.RateLimitRPS), max(o.Config.RateLimitBurst, 1))))
	}
	if a.metrics != nil {
		opts = append(opts, api.WithRequestHook(a.metrics.ObserveRequest))
	}
	a.client = api.New(o.Config.BackendURL, a.mgr, opts...)
	return a
}

// redirect é o OnExpired; o aviso e a espera acontecem no fim do Run
func (a *App) redirect() {
	a.expired.Store(true)
}

func (a *App) commands() map[string]command {
	return map[string]command{
		"login":       {"login [--username u] [--password p]", "iniciar sesión", a.login},
		"register":    {"register --username u --email e [--password p] [--referrer id]", "crear cuenta", a.register},
		"logout":      {"logout", "cerrar sesión", a.logout},
		"me":          {"me", "ver la cuenta", a.me},
		"verify":      {"verify status|ready|submit <archivo>|watch", "verificación de identidad", a.verify},
		"referrals":   {"referrals", "referidos y ganancias", a.referrals},
		"deposit":     {"deposit --amount n --method m [--reference r] [--proof archivo]", "solicitar depósito", a.deposit},
		"deposits":    {"deposits", "historial de depósitos", a.deposits},
		"withdraw":    {"withdraw --amount n --method m --account cuenta [--reference r]", "solicitar retiro", a.withdraw},
		"withdrawals": {"withdrawals", "historial de retiros", a.withdrawals},
		"lottery":     {"lottery next|results|join|watch", "sorteo VIP", a.lottery},
		"admin":       {"admin queue|users|approve-*|reject-* <id>", "panel de administración", a.admin},
	}
}

// Run executa um subcomando e devolve o código de saída
func (a *App) Run(ctx context.Context, args []string) int {
	cmds := a.commands()
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		a.usage(cmds)
		return ExitUsage
	}
	c, ok := cmds[args[0]]
	if !ok {
		a.ui.Printf("comando desconocido: %s\n", args[0])
		a.usage(cmds)
		return ExitUsage
	}

	err := c.run(ctx, args[1:])
	if a.expired.Load() {
		// sessão expirada: a notificação já saiu, espera e manda ao login
		a.sleep(a.cfg.AuthRedirectDelay)
		a.ui.Println("Ejecuta `betref login` para continuar.")
		return ExitAuth
	}
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errUsage):
		a.ui.Println("uso: betref " + c.usage)
		return ExitUsage
	case errors.Is(err, api.ErrAuthExpired):
		return ExitAuth
	default:
		a.log.Debug("command failed", zap.String("command", args[0]), zap.Error(err))
		return ExitError
	}
}

func (a *App) usage(cmds map[string]command) {
	names := make([]string, 0, len(cmds))
	for n := range cmds {
		names = append(names, n)
	}
	sort.Strings(names)
	a.ui.Println("uso: betref <comando> [opciones]")
	for _, n := range names {
		a.ui.Printf("  %-12s %s\n", n, cmds[n].help)
	}
}

// requireSession falha cedo quando não há token, sem tocar a rede
func (a *App) requireSession(ctx context.Context) (*betref.Account, error) {
	tok, err := a.mgr.Token(ctx)
	if err != nil {
		return nil, err
	}
	acc, ok, err := a.mgr.Account(ctx)
	if err != nil {
		return nil, err
	}
	if tok == "" || !ok {
		a.notes.Notify(notify.Info, "Inicia sesión primero")
		a.ui.Println("Ejecuta `betref login` para continuar.")
		return nil, api.ErrAuthExpired
	}
	return acc, nil
}

// ---- construção dos componentes ----

func (a *App) authService() *auth.Service {
	return auth.NewService(a.client, a.mgr, a.notes, a.log)
}

func (a *App) wizard() *verification.Wizard {
	w := verification.NewWizard(a.client, a.mgr, session.NewMarkerStore(a.mgr.Store()), a.notes, a.log, verification.Config{
		PollInterval: a.cfg.VerificationPollInterval,
		ConfirmDelay: a.cfg.VerificationConfirmDelay,
	})
	if a.metrics != nil {
		w.OnTick = func(err error) { a.metrics.PollTick("verification", err) }
	}
	return w
}

func (a *App) referralView() *referral.View {
	return referral.NewView(a.client, a.mgr, session.NewListCache[betref.ReferralNode](a.mgr.Store(), session.KeyReferrals), a.log)
}

func (a *App) transactionService() (*transactions.Service, error) {
	policy, err := transactions.ParseProofPolicy(a.cfg.DepositProofPolicy)
	if err != nil {
		return nil, err
	}
	return transactions.NewService(a.client, a.mgr, transactions.Options{
		Deposits:    session.NewListCache[betref.DepositRequest](a.mgr.Store(), session.KeyDeposits),
		Withdrawals: session.NewListCache[betref.WithdrawalRequest](a.mgr.Store(), session.KeyWithdrawals),
		Policy:      policy,
		Notifier:    a.notes,
		Logger:      a.log,
	}), nil
}

func (a *App) lotteryView() *lottery.View {
	v := lottery.NewView(a.client, a.mgr, session.NewListCache[betref.DrawResult](a.mgr.Store(), session.KeyDrawResults), a.notes, a.log)
	if a.metrics != nil {
		v.OnTick = func(err error) { a.metrics.PollTick("lottery", err) }
	}
	return v
}

func (a *App) queue(operator string) *admin.Queue {
	q := admin.NewQueue(a.client, admin.Options{
		Confirm:  a.ui,
		Session:  a.mgr,
		Notifier: a.notes,
		Audit:    a.audit,
		Logger:   a.log,
		Operator: operator,
	})
	if a.metrics != nil {
		q.OnDecision = a.metrics.Decision
	}
	return q
}
