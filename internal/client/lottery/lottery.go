// Package lottery é a visão do sorteio VIP: próximo sorteio, histórico e participação.
package lottery

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/client/notify"
	"github.com/radieske/betref-client/internal/client/poll"
	"github.com/radieske/betref-client/internal/client/session"
	"github.com/radieske/betref-client/internal/shared/logger"
	"github.com/radieske/betref-client/pkg/contracts/betref"
)

type Backend interface {
	NextDraw(ctx context.Context) (*betref.NextDraw, error)
	DrawResults(ctx context.Context) ([]betref.DrawResult, error)
	JoinDraw(ctx context.Context) (*betref.ParticipationResponse, error)
}

type Results struct {
	Items     []betref.DrawResult
	FromCache bool
}

type View struct {
	backend Backend
	sess    session.View
	cache   *session.ListCache[betref.DrawResult]
	notify  notify.Notifier
	log     *zap.Logger

	// OnTick alimenta as métricas do polling
	OnTick func(err error)
}

func NewView(b Backend, sess session.View, cache *session.ListCache[betref.DrawResult], n notify.Notifier, log *zap.Logger) *View {
	if n == nil {
		n = notify.Discard{}
	}
	log = logger.OrNop(log)
	return &View{backend: b, sess: sess, cache: cache, notify: n, log: log}
}

func (v *View) NextDraw(ctx context.Context) (time.Time, error) {
	nd, err := v.backend.NextDraw(ctx)
	if err != nil {
		return time.Time{}, v.fail(ctx, "next draw", err)
	}
	return nd.NextDraw, nil
}

// Results busca o histórico; em falha responde com o cache quando houver
func (v *View) Results(ctx context.Context) (Results, error) {
	items, err := v.backend.DrawResults(ctx)
	if err == nil {
		v.save(ctx, items)
		return Results{Items: items}, nil
	}
	err = v.fail(ctx, "draw results", err)
	if errors.Is(err, api.ErrAuthExpired) {
		return Results{}, err
	}
	cached, ok := v.load(ctx)
	if !ok {
		return Results{}, err
	}
	return Results{Items: cached, FromCache: true}, err
}

func (v *View) Join(ctx context.Context) (*betref.ParticipationResponse, error) {
	out, err := v.backend.JoinDraw(ctx)
	if err != nil {
		return nil, v.fail(ctx, "join draw", err)
	}
	msg := out.Message
	if msg == "" {
		msg = "Participación registrada"
	}
	v.notify.Notify(notify.Success, msg)
	return out, nil
}

// Countdown é o tempo até o sorteio, nunca negativo
func Countdown(next, now time.Time) time.Duration {
	if d := next.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Watch consulta o histórico a cada interval e chama fn quando chega resultado novo.
// O dono da tarefa deve chamar Stop no teardown.
func (v *View) Watch(ctx context.Context, interval time.Duration, fn func(betref.DrawResult)) *poll.Task {
	var lastID int64
	if cached, ok := v.load(ctx); ok {
		lastID = newestID(cached)
	}

	return poll.Every(ctx, interval, func(ctx context.Context) bool {
		items, err := v.backend.DrawResults(ctx)
		if v.OnTick != nil {
			v.OnTick(err)
		}
		if err != nil {
			if session.HandleAuthError(ctx, v.sess, err) {
				return false
			}
			v.log.Debug("lottery poll failed", zap.Error(err))
			return true
		}
		v.save(ctx, items)
		for _, r := range items {
			if r.ID > lastID {
				fn(r)
			}
		}
		if id := newestID(items); id > lastID {
			lastID = id
		}
		return true
	})
}

func (v *View) save(ctx context.Context, items []betref.DrawResult) {
	if v.cache == nil {
		return
	}
	if err := v.cache.Save(ctx, items); err != nil {
		v.log.Warn("cache draw results", zap.Error(err))
	}
}

func (v *View) load(ctx context.Context) ([]betref.DrawResult, bool) {
	if v.cache == nil {
		return nil, false
	}
	items, ok, err := v.cache.Load(ctx)
	return items, ok && err == nil
}

func newestID(items []betref.DrawResult) int64 {
	var id int64
	for _, r := range items {
		if r.ID > id {
			id = r.ID
		}
	}
	return id
}

func (v *View) fail(ctx context.Context, op string, err error) error {
	if session.HandleAuthError(ctx, v.sess, err) {
		v.notify.Notify(notify.Error, api.MsgAuthExpired)
		return api.ErrAuthExpired
	}
	v.log.Warn(op+" failed", zap.Error(err))
	v.notify.Notify(notify.Error, api.Message(err))
	return err
}
