package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/betref-client/internal/shared/logger"
)

type Level string

const (
	Success Level = "success"
	Error   Level = "error"
	Info    Level = "info"
)

// DefaultTTL é quanto tempo uma notificação fica visível
const DefaultTTL = 5 * time.Second

// Notification é um aviso transitório (toast)
type Notification struct {
	Level     Level
	Message   string
	CreatedAt time.Time
}

// Notifier é o que os componentes usam para avisar o usuário
type Notifier interface {
	Notify(level Level, message string)
}

// Sink recebe cada notificação no momento do push (o CLI imprime)
type Sink func(Notification)

// Center guarda as notificações ativas e descarta as vencidas
type Center struct {
	mu    sync.Mutex
	items []Notification
	ttl   time.Duration
	sink  Sink
	log   *zap.Logger
	now   func() time.Time
}

func NewCenter(ttl time.Duration, sink Sink, log *zap.Logger) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	log = logger.OrNop(log)
	return &Center{ttl: ttl, sink: sink, log: log, now: time.Now}
}

func (c *Center) Notify(level Level, message string) {
	n := Notification{Level: level, Message: message, CreatedAt: c.now()}

	c.mu.Lock()
	c.items = append(c.pruneLocked(n.CreatedAt), n)
	c.mu.Unlock()

	c.log.Debug("notification", zap.String("level", string(level)), zap.String("message", message))
	if c.sink != nil {
		c.sink(n)
	}
}

// Active devolve as notificações mais novas que o TTL, na ordem de chegada
func (c *Center) Active(now time.Time) []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = c.pruneLocked(now)
	out := make([]Notification, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Center) pruneLocked(now time.Time) []Notification {
	kept := c.items[:0]
	for _, n := range c.items {
		if now.Sub(n.CreatedAt) < c.ttl {
			kept = append(kept, n)
		}
	}
	return kept
}

// Discard ignora notificações
type Discard struct{}

func (Discard) Notify(Level, string) {}
