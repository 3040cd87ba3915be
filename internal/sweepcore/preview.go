package sweepcore

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Plan is what Sweep would do for one wallet given its current balance.
type Plan struct {
	Index   int
	Address common.Address
	Balance *big.Int
	Amount  *big.Int
	Status  Status
	Err     string
}

// Preview reads balances with the same pool and retry policy as Sweep but
// signs and submits nothing. Plans are returned in input order.
func (e *Engine) Preview(ctx context.Context, reserve *big.Int, creds []Credential) ([]Plan, error) {
	if e.conn.Active() == nil {
		return nil, ErrNotConnected
	}
	r := &run{id: "preview", total: len(creds), reserve: cloneBig(reserve), bus: &bus{}, log: log.Logger}

	plans := make([]Plan, len(creds))
	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	for i, c := range creds {
		plans[i] = Plan{Index: i, Address: c.Address(), Balance: new(big.Int), Amount: new(big.Int)}
		g.Go(func() error {
			p := &plans[i]
			bal, err := e.balance(ctx, r, i, c.Address())
			if err != nil {
				p.Status = StatusFailed
				p.Err = err.Error()
				return nil
			}
			p.Balance = bal
			switch amount := SendAmount(bal, r.reserve); {
			case bal.Sign() <= 0:
				p.Status = StatusSkippedZeroBalance
			case amount.Sign() <= 0:
				p.Status = StatusSkippedInsufficient
			default:
				p.Amount = amount
				p.Status = StatusSent
			}
			return nil
		})
	}
	_ = g.Wait()
	return plans, ctx.Err()
}
