package verification

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/client/notify"
	"github.com/radieske/betref-client/internal/client/poll"
	"github.com/radieske/betref-client/internal/client/session"
	"github.com/radieske/betref-client/internal/shared/logger"
	"github.com/radieske/betref-client/pkg/contracts/betref"
)

// State é a etapa do assistente de verificação
type State string

const (
	New             State = "NEW"
	PhotoReady      State = "PHOTO_READY"
	UploadedPending State = "UPLOADED_PENDING"
	Verified        State = "VERIFIED" // terminal
)

var ErrInvalidTransition = errors.New("invalid verification transition")

// Backend são as chamadas que o assistente usa
type Backend interface {
	Me(ctx context.Context) (*betref.Account, error)
	SubmitVerification(ctx context.Context, file api.Upload) (*betref.VerificationRequest, error)
}

type Config struct {
	PollInterval time.Duration // 30s
	ConfirmDelay time.Duration // refetch único depois do envio, ~1s
	// MarkerTTL limita a ponte do marcador local; vencida sem o servidor
	// mostrar o pedido pendente, a conta volta a NEW
	MarkerTTL time.Duration
}

// DefaultMarkerTTL cobre a janela entre o upload e o backend expor o pedido
const DefaultMarkerTTL = 2 * time.Minute

// Wizard concilia a etapa local com o status autoritativo da conta.
// Dono do poller e do timer de confirmação; Close libera os dois.
type Wizard struct {
	backend Backend
	sess    session.View
	marker  *session.MarkerStore
	notify  notify.Notifier
	log     *zap.Logger
	cfg     Config

	OnTick func(err error) // métricas do polling

	mu          sync.Mutex
	state       State
	poller      *poll.Task
	confirm     *time.Timer
	confirmDone chan struct{} // fecha quando o refetch de confirmação roda ou é cancelado
	closed      bool
	now         func() time.Time

	bg     context.Context
	cancel context.CancelFunc
}

func NewWizard(b Backend, sess session.View, marker *session.MarkerStore, n notify.Notifier, log *zap.Logger, cfg Config) *Wizard {
	if n == nil {
		n = notify.Discard{}
	}
	log = logger.OrNop(log)
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.ConfirmDelay <= 0 {
		cfg.ConfirmDelay = time.Second
	}
	if cfg.MarkerTTL <= 0 {
		cfg.MarkerTTL = DefaultMarkerTTL
	}
	bg, cancel := context.WithCancel(context.Background())
	return &Wizard{
		backend: b,
		sess:    sess,
		marker:  marker,
		notify:  n,
		log:     log,
		cfg:     cfg,
		state:   New,
		now:     time.Now,
		bg:      bg,
		cancel:  cancel,
	}
}

func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Mount busca o status autoritativo e define a etapa inicial.
// 401 encerra a sessão; outras falhas deixam a melhor etapa conhecida localmente.
func (w *Wizard) Mount(ctx context.Context) (State, error) {
	acc, err := w.backend.Me(ctx)
	if err != nil {
		if session.HandleAuthError(ctx, w.sess, err) {
			return w.State(), api.ErrAuthExpired
		}
		w.log.Warn("verification status fetch failed", zap.Error(err))
		cached, ok, cerr := w.sess.Account(ctx)
		if cerr != nil || !ok {
			cached = &betref.Account{}
		}
		w.apply(ctx, cached, false)
		return w.State(), err
	}
	w.apply(ctx, acc, false)
	return w.State(), nil
}

// AcknowledgePhoto é a transição local NEW -> PHOTO_READY, sem rede e sem persistência
func (w *Wizard) AcknowledgePhoto() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case New:
		w.state = PhotoReady
		return nil
	case PhotoReady:
		return nil
	default:
		return ErrInvalidTransition
	}
}

// Submit envia o documento (PHOTO_READY -> UPLOADED_PENDING).
// Em falha a etapa continua PHOTO_READY.
func (w *Wizard) Submit(ctx context.Context, file *api.Upload) error {
	if st := w.State(); st != PhotoReady {
		return ErrInvalidTransition
	}
	if err := ValidateDocument(file); err != nil {
		w.notify.Notify(notify.Error, api.Message(err))
		return err
	}

	if _, err := w.backend.SubmitVerification(ctx, *file); err != nil {
		session.HandleAuthError(ctx, w.sess, err)
		w.log.Warn("verification submit failed", zap.Error(err))
		w.notify.Notify(notify.Error, api.Message(err))
		return err
	}

	if err := w.marker.Set(ctx); err != nil {
		w.log.Warn("save verification marker", zap.Error(err))
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	if w.state == PhotoReady {
		w.state = UploadedPending
		w.ensurePollingLocked()
	}
	w.stopConfirmLocked()
	done := make(chan struct{})
	w.confirmDone = done
	w.confirm = time.AfterFunc(w.cfg.ConfirmDelay, func() {
		defer close(done)
		if _, err := w.Refresh(w.bg); err != nil {
			w.log.Debug("verification confirm fetch failed", zap.Error(err))
		}
	})
	w.mu.Unlock()

	w.notify.Notify(notify.Success, "Documento enviado, en revisión")
	return nil
}

// stopConfirmLocked cancela o refetch agendado; se ele ainda não rodou, libera quem espera
func (w *Wizard) stopConfirmLocked() {
	if w.confirm != nil && w.confirm.Stop() {
		close(w.confirmDone)
	}
	w.confirm = nil
}

// WaitConfirmed bloqueia até o refetch de confirmação do último Submit terminar
func (w *Wizard) WaitConfirmed(ctx context.Context) {
	w.mu.Lock()
	done := w.confirmDone
	w.mu.Unlock()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Refresh busca o status uma vez e concilia
func (w *Wizard) Refresh(ctx context.Context) (State, error) {
	acc, err := w.backend.Me(ctx)
	if err != nil {
		if session.HandleAuthError(ctx, w.sess, err) {
			w.stopPolling()
		}
		return w.State(), err
	}
	w.apply(ctx, acc, true)
	return w.State(), nil
}

// Close cancela o polling e o refetch pendente. Respostas que chegarem depois são ignoradas.
func (w *Wizard) Close() {
	w.mu.Lock()
	w.closed = true
	w.cancel()
	w.stopConfirmLocked()
	p := w.poller
	w.poller = nil
	w.mu.Unlock()

	p.Stop()
}

// apply concilia a etapa com o snapshot. VERIFIED nunca é abandonado.
func (w *Wizard) apply(ctx context.Context, acc *betref.Account, announce bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.state == Verified {
		return
	}

	switch {
	case acc.Verified:
		w.state = Verified
		if err := w.marker.Clear(ctx); err != nil {
			w.log.Warn("clear verification marker", zap.Error(err))
		}
		if announce {
			w.notify.Notify(notify.Success, "¡Tu cuenta fue verificada!")
		}
	case acc.VerificationPending:
		w.state = UploadedPending
		// o servidor já enxerga o pedido; o marcador local cumpriu o papel
		if err := w.marker.Clear(ctx); err != nil {
			w.log.Warn("clear verification marker", zap.Error(err))
		}
	default:
		mk, err := w.marker.Get(ctx)
		if err != nil {
			w.log.Warn("read verification marker", zap.Error(err))
		}
		switch {
		case mk.Sent && w.now().Sub(mk.At) < w.cfg.MarkerTTL:
			w.state = UploadedPending
		default:
			if mk.Sent {
				// ponte vencida e o servidor nunca mostrou o pedido: rejeitado ou perdido
				if err := w.marker.Clear(ctx); err != nil {
					w.log.Warn("clear verification marker", zap.Error(err))
				}
			}
			if w.state == UploadedPending {
				// pedido removido pelo admin: volta ao início
				w.state = New
			}
		}
	}

	if w.state == UploadedPending {
		w.ensurePollingLocked()
	} else if w.poller != nil {
		w.poller.Cancel()
		w.poller = nil
	}
}

func (w *Wizard) ensurePollingLocked() {
	if w.closed || w.poller.Running() {
		return
	}
	w.poller = poll.Every(w.bg, w.cfg.PollInterval, w.tick)
}

func (w *Wizard) stopPolling() {
	w.mu.Lock()
	p := w.poller
	w.poller = nil
	w.mu.Unlock()
	p.Cancel()
}

func (w *Wizard) tick(ctx context.Context) bool {
	acc, err := w.backend.Me(ctx)
	if w.OnTick != nil {
		w.OnTick(err)
	}
	if err != nil {
		if session.HandleAuthError(ctx, w.sess, err) {
			return false
		}
		w.log.Debug("verification poll failed", zap.Error(err))
		return true
	}
	w.apply(ctx, acc, true)
	return w.State() == UploadedPending
}
