package betref

import (
	"time"

	"github.com/shopspring/decimal"
)

type NextDraw struct {
	NextDraw time.Time `json:"next_draw"`
}

// DrawResult é um sorteio VIP já realizado
type DrawResult struct {
	ID           int64           `json:"id"`
	DrawnAt      time.Time       `json:"fecha"`
	Winner       string          `json:"ganador"`
	Prize        decimal.Decimal `json:"premio"`
	Participants int             `json:"participantes"`
}

type ParticipationResponse struct {
	Message string    `json:"mensaje"`
	Draw    time.Time `json:"sorteo"`
}
