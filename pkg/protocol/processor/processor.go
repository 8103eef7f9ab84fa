// Package processor implements the Processor worker (spec.md §4.2): decode,
// enforce proof-of-work, insert into the tangle, and fan the transaction
// out to the Solid Propagator, Bundle Validator and Milestone Validator.
package processor

import (
	"github.com/iotaledger/hive.go/events"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/metrics"
	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
	"github.com/trinarytangle/tanglenode/pkg/peering/peer"
	"github.com/trinarytangle/tanglenode/pkg/protocol/hasher"
	"github.com/trinarytangle/tanglenode/pkg/protocol/rqueue"
)

// Events fired by the Processor for downstream workers to subscribe to.
type Events struct {
	TransactionSolidifiable *events.Event
	BundleValidate          *events.Event
	MilestoneCandidate      *events.Event
	TransactionStored       *events.Event
}

func hashCaller(handler interface{}, params ...interface{}) {
	handler.(func(trinary.Hash))(params[0].(trinary.Hash))
}

func storedCaller(handler interface{}, params ...interface{}) {
	handler.(func(*tangle.Transaction, *peer.Peer))(params[0].(*tangle.Transaction), params[1].(*peer.Peer))
}

// PoWChecker validates that hash carries the configured minimum weight
// magnitude: at least that many trailing zero trits.
type PoWChecker interface {
	TrailingZeros(hash trinary.Hash) int
}

// Processor consumes hashed transactions from the Hasher and drives them
// through decode, PoW, tangle insertion and downstream fan-out.
type Processor struct {
	Events Events

	tangle *tangle.Tangle
	txReq  *rqueue.Queue
	pow    PoWChecker
	m      *metrics.ServerMetrics

	coordinatorAddress trinary.Hash
	mwm                int
}

// New creates a Processor bound to tangle t, the transaction requester
// queue (for Received bookkeeping), the configured PoW checker and
// coordinator address / minimum weight magnitude (spec.md §6 config keys).
func New(t *tangle.Tangle, txReq *rqueue.Queue, pow PoWChecker, m *metrics.ServerMetrics, coordinatorAddress trinary.Hash, mwm int) *Processor {
	return &Processor{
		Events: Events{
			TransactionSolidifiable: events.NewEvent(hashCaller),
			BundleValidate:          events.NewEvent(hashCaller),
			MilestoneCandidate:      events.NewEvent(hashCaller),
			TransactionStored:       events.NewEvent(storedCaller),
		},
		tangle:             t,
		txReq:              txReq,
		pow:                pow,
		m:                  m,
		coordinatorAddress: coordinatorAddress,
		mwm:                mwm,
	}
}

// Run consumes h.Out() until shutdownSignal fires.
func (p *Processor) Run(h *hasher.Hasher, shutdownSignal <-chan struct{}) {
	for {
		select {
		case item, ok := <-h.Out():
			if !ok {
				return
			}
			p.Process(item)
		case <-shutdownSignal:
			return
		}
	}
}

// Process runs a single hashed item through decode/PoW/insertion/fan-out.
// Exported so tests (and a future synchronous attach path) can drive it
// directly without a channel.
func (p *Processor) Process(item hasher.Hashed) {
	// 2. Enforce proof-of-work before the (more expensive) decode, so an
	// invalid transaction is rejected as cheaply as possible.
	if p.pow.TrailingZeros(item.Hash) < p.mwm {
		p.m.InvalidTransactions.Inc()
		return
	}

	// 3. Known-transaction short circuit.
	if p.tangle.ContainsTransaction(item.Hash) {
		p.m.KnownTransactions.Inc()
		if origin := item.Origin; origin != nil {
			origin.Metrics.KnownTransactions.Inc()
		}
		return
	}

	// 1. Decode the canonical transaction.
	trytes := tangle.Decompress(item.RawData)
	tx, err := tangle.FromTrytes(trytes, item.Hash)
	if err != nil {
		p.m.InvalidTransactions.Inc()
		return
	}

	// 4. Insert into the tangle; remove from the requested-transactions map.
	meta, inserted := p.tangle.AddTransaction(tx)
	if !inserted {
		p.m.KnownTransactions.Inc()
		return
	}
	p.m.NewTransactions.Inc()

	if p.txReq.Received(tx.Hash) != nil {
		meta.SetRequested(true)
	}

	p.Events.TransactionStored.Trigger(tx, item.Origin)

	// 5. Solidity check.
	p.Events.TransactionSolidifiable.Trigger(tx.Hash)

	// 6. Bundle tail.
	if tx.IsTail() {
		p.Events.BundleValidate.Trigger(tx.Hash)
	}

	// 7. Milestone candidate.
	if tx.Address() == p.coordinatorAddress {
		p.Events.MilestoneCandidate.Trigger(tx.Hash)
	}
}
