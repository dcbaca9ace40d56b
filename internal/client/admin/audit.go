package admin

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/radieske/betref-client/internal/shared/kafka"
	"github.com/radieske/betref-client/pkg/contracts/events"
)

// Publisher recebe cada decisão do painel, com sucesso ou não
type Publisher interface {
	Publish(ctx context.Context, ev events.AdminDecision) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, events.AdminDecision) error { return nil }

// KafkaPublisher grava no tópico de auditoria com a chave "<kind>:<id>"
type KafkaPublisher struct {
	W       *kafka.Writer
	Timeout time.Duration
}

func NewKafkaPublisher(w *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{W: w, Timeout: 3 * time.Second}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev events.AdminDecision) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	return kafka.WriteJSON(ctx, p.W, ev.Kind+":"+strconv.FormatInt(ev.ItemID, 10), b)
}

func (p *KafkaPublisher) Close() error { return p.W.Close() }
