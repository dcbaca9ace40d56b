// Package referral monta a visão de referidos com a estimativa de ganhos.
// A estimativa é só exibição; o ledger do backend decide os pagamentos.
package referral

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/client/session"
	"github.com/radieske/betref-client/internal/shared/logger"
	"github.com/radieske/betref-client/pkg/contracts/betref"
)

var (
	rateVerified   = decimal.NewFromInt(2000)
	rateUnverified = decimal.NewFromInt(100)
	subShare       = decimal.RequireFromString("0.10")
)

func baseRate(verified bool) decimal.Decimal {
	if verified {
		return rateVerified
	}
	return rateUnverified
}

// Earnings = base do referido + 10% da base de cada sub-referido
func Earnings(n betref.ReferralNode) decimal.Decimal {
	subs := decimal.Zero
	for _, s := range n.SubReferrals {
		subs = subs.Add(baseRate(s.Verified))
	}
	return baseRate(n.Verified).Add(subShare.Mul(subs))
}

type Node struct {
	betref.ReferralNode
	Earnings decimal.Decimal
}

type Stats struct {
	Total         int
	Verified      int
	SubReferrals  int // soma simples, sem deduplicar
	TotalEarnings decimal.Decimal
}

type Ledger struct {
	Nodes     []Node
	Stats     Stats
	FromCache bool
}

// Build é puro: mesma entrada, mesmo ledger
func Build(nodes []betref.ReferralNode) Ledger {
	l := Ledger{Nodes: make([]Node, 0, len(nodes)), Stats: Stats{TotalEarnings: decimal.Zero}}
	for _, n := range nodes {
		e := Earnings(n)
		l.Nodes = append(l.Nodes, Node{ReferralNode: n, Earnings: e})
		l.Stats.Total++
		if n.Verified {
			l.Stats.Verified++
		}
		l.Stats.SubReferrals += len(n.SubReferrals)
		l.Stats.TotalEarnings = l.Stats.TotalEarnings.Add(e)
	}
	return l
}

type Backend interface {
	Referrals(ctx context.Context) ([]betref.ReferralNode, error)
}

type View struct {
	backend Backend
	sess    session.View
	cache   *session.ListCache[betref.ReferralNode]
	log     *zap.Logger
}

func NewView(b Backend, sess session.View, cache *session.ListCache[betref.ReferralNode], log *zap.Logger) *View {
	log = logger.OrNop(log)
	return &View{backend: b, sess: sess, cache: cache, log: log}
}

// Load busca a árvore; em falha usa o cache e, sem cache, devolve o ledger vazio.
// O erro é devolvido junto para a notificação.
func (v *View) Load(ctx context.Context) (Ledger, error) {
	nodes, err := v.backend.Referrals(ctx)
	if err == nil {
		if cerr := v.cache.Save(ctx, nodes); cerr != nil {
			v.log.Warn("cache referrals", zap.Error(cerr))
		}
		return Build(nodes), nil
	}

	if session.HandleAuthError(ctx, v.sess, err) {
		return Build(nil), api.ErrAuthExpired
	}
	v.log.Warn("referrals fetch failed", zap.Error(err))

	cached, ok, cerr := v.cache.Load(ctx)
	if cerr != nil || !ok {
		return Build(nil), err
	}
	l := Build(cached)
	l.FromCache = true
	return l, err
}
