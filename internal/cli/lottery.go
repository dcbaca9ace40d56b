package cli

import (
	"context"
	"errors"
	"time"

	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/client/lottery"
	"github.com/radieske/betref-client/internal/client/notify"
	"github.com/radieske/betref-client/pkg/contracts/betref"
)

func (a *App) lottery(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	v := a.lotteryView()

	switch args[0] {
	case "next":
		next, err := v.NextDraw(ctx)
		if err != nil {
			return err
		}
		left := lottery.Countdown(next, time.Now())
		a.ui.Printf("Próximo sorteo: %s (faltan %s)\n", next.Local().Format("2006-01-02 15:04"), left.Round(time.Second))
		return nil
	case "results":
		r, err := v.Results(ctx)
		if err != nil && !r.FromCache {
			return err
		}
		if r.FromCache {
			a.ui.Println("(datos guardados)")
		}
		if len(r.Items) == 0 {
			a.ui.Println("Aún no hay sorteos.")
		}
		for _, d := range r.Items {
			a.printDraw(d)
		}
		return err
	case "join":
		_, err := v.Join(ctx)
		return err
	case "watch":
		return a.watchLottery(ctx, args[1:])
	}
	return errUsage
}

func (a *App) watchLottery(ctx context.Context, args []string) error {
	fs := newFlags("lottery watch")
	interval := fs.Duration("interval", a.cfg.LotteryPollInterval, "intervalo de consulta")
	if err := fs.Parse(args); err != nil || *interval <= 0 {
		return errUsage
	}
	v := a.lotteryView()
	// semeia o cache para só anunciar sorteios novos
	if _, err := v.Results(ctx); errors.Is(err, api.ErrAuthExpired) {
		return err
	}

	a.ui.Println("Esperando resultados (Ctrl+C para salir)...")
	task := v.Watch(ctx, *interval, func(d betref.DrawResult) {
		a.notes.Notify(notify.Info, "Nuevo sorteo: ganó "+d.Winner)
		a.printDraw(d)
	})
	defer task.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-task.Done():
		if a.expired.Load() {
			a.notes.Notify(notify.Error, api.MsgAuthExpired)
			return api.ErrAuthExpired
		}
		return nil
	}
}

func (a *App) printDraw(d betref.DrawResult) {
	a.ui.Printf("#%-4d %s  ganador: %-16s premio: %s  participantes: %d\n",
		d.ID, d.DrawnAt.Local().Format("2006-01-02 15:04"), d.Winner, money(d.Prize), d.Participants)
}
