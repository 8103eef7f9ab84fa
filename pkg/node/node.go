// Package node assembles every worker described by SPEC_FULL.md §2 into a
// running process: a dig container builds the dependency graph once at
// startup, and every worker's background loop is registered with
// pkg/shutdown at the priority matching its place in that graph, so
// shutdown unwinds it in reverse.
package node

import (
	"strconv"
	"time"

	"github.com/iotaledger/hive.go/events"
	"github.com/iotaledger/iota.go/trinary"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/trinarytangle/tanglenode/pkg/config"
	"github.com/trinarytangle/tanglenode/pkg/metrics"
	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
	"github.com/trinarytangle/tanglenode/pkg/peering"
	"github.com/trinarytangle/tanglenode/pkg/peering/peer"
	"github.com/trinarytangle/tanglenode/pkg/protocol/bundlevalidator"
	"github.com/trinarytangle/tanglenode/pkg/protocol/confirmation"
	"github.com/trinarytangle/tanglenode/pkg/protocol/gossip"
	"github.com/trinarytangle/tanglenode/pkg/protocol/hasher"
	"github.com/trinarytangle/tanglenode/pkg/protocol/milestonevalidator"
	"github.com/trinarytangle/tanglenode/pkg/protocol/pow"
	"github.com/trinarytangle/tanglenode/pkg/protocol/processor"
	"github.com/trinarytangle/tanglenode/pkg/protocol/requester"
	"github.com/trinarytangle/tanglenode/pkg/protocol/responder"
	"github.com/trinarytangle/tanglenode/pkg/protocol/rqueue"
	"github.com/trinarytangle/tanglenode/pkg/protocol/solidifier"
	"github.com/trinarytangle/tanglenode/pkg/protocol/sponge"
	"github.com/trinarytangle/tanglenode/pkg/shutdown"
	gossipplugin "github.com/trinarytangle/tanglenode/plugins/gossip"
	snapshotplugin "github.com/trinarytangle/tanglenode/plugins/snapshot"
	tangleplugin "github.com/trinarytangle/tanglenode/plugins/tangle"
)

// coordinatorPubKeyHash derives the wire handshake identity byte array from
// the configured coordinator address: the same trailing-zero-tryte
// compression used for every other trytes payload on the wire (spec.md §6).
func coordinatorPubKeyHash(address string) [gossip.HashLength]byte {
	var out [gossip.HashLength]byte
	compressed := tangle.Compress(trytesPad(address))
	copy(out[:], compressed)
	return out
}

func trytesPad(s string) (out string) {
	out = s
	for len(out) < 81 {
		out += "9"
	}
	if len(out) > 81 {
		out = out[:81]
	}
	return out
}

// Container is the assembled node: every long-running worker plus the
// config it was built from, ready for Start.
type Container struct {
	Config *config.Config

	Tangle  *tangle.Tangle
	Metrics *metrics.ServerMetrics
	Peering *peering.Manager

	Hasher      *hasher.Hasher
	Processor   *processor.Processor
	BundleValid *bundlevalidator.Validator
	MsValidator *milestonevalidator.Validator
	Confirmer   *confirmation.Walker

	TxRequester *requester.TransactionRequester
	MsRequester *requester.MilestoneRequester
	TxResponder *responder.TransactionResponder
	MsResponder *responder.MilestoneResponder

	Propagator *solidifier.Propagator
	Solidifier *solidifier.MilestoneSolidifier

	Handshaker  *gossipplugin.Handshaker
	GossipSrv   *gossipplugin.Server
	Broadcaster *gossipplugin.Broadcaster
	Kickstart   *gossipplugin.Kickstart
	Status      *gossipplugin.Status

	Pruner *snapshotplugin.Pruner
}

// Build wires every component named in cfg into a ready-to-run Container
// via a dig dependency graph, mirroring the construction order of
// pkg/protocol's own worker dependency chain (hasher -> processor ->
// {bundle, milestone} validators -> solidifiers -> gossip).
func Build(cfg *config.Config) (*Container, error) {
	c := dig.New()

	providers := []interface{}{
		func() *config.Config { return cfg },
		func() *tangle.Tangle { return tangle.New(nil) },
		func() *metrics.ServerMetrics { return metrics.NewServerMetrics() },
		func() *peering.Manager { return peering.New() },

		provideSponge,
		providePoWChecker,
		provideHasher,
		provideProcessor,
		provideBundleValidator,
		provideMilestoneValidator,
		provideConfirmer,
		providePropagator,
		provideSolidifier,
		provideTxRequester,
		provideMsRequester,
		provideTxResponder,
		provideMsResponder,
		provideHandshaker,
		provideGossipServer,
		provideBroadcaster,
		provideKickstart,
		provideStatus,
		providePruner,
	}
	for _, p := range providers {
		if err := c.Provide(p); err != nil {
			return nil, errors.Wrap(err, "registering provider")
		}
	}
	if err := c.Provide(func() *rqueue.Queue { return rqueue.New() }, dig.Name("tx")); err != nil {
		return nil, errors.Wrap(err, "registering transaction request queue")
	}
	if err := c.Provide(func() *rqueue.Queue { return rqueue.New() }, dig.Name("ms")); err != nil {
		return nil, errors.Wrap(err, "registering milestone request queue")
	}

	container := &Container{Config: cfg}
	err := c.Invoke(func(
		t *tangle.Tangle,
		m *metrics.ServerMetrics,
		peers *peering.Manager,
		h *hasher.Hasher,
		p *processor.Processor,
		bv *bundlevalidator.Validator,
		mv *milestonevalidator.Validator,
		cf *confirmation.Walker,
		prop *solidifier.Propagator,
		sol *solidifier.MilestoneSolidifier,
		txReq *requester.TransactionRequester,
		msReq *requester.MilestoneRequester,
		txResp *responder.TransactionResponder,
		msResp *responder.MilestoneResponder,
		hs *gossipplugin.Handshaker,
		srv *gossipplugin.Server,
		bc *gossipplugin.Broadcaster,
		ks *gossipplugin.Kickstart,
		st *gossipplugin.Status,
		pr *snapshotplugin.Pruner,
	) {
		container.Tangle = t
		container.Metrics = m
		container.Peering = peers
		container.Hasher = h
		container.Processor = p
		container.BundleValid = bv
		container.MsValidator = mv
		container.Confirmer = cf
		container.Propagator = prop
		container.Solidifier = sol
		container.TxRequester = txReq
		container.MsRequester = msReq
		container.TxResponder = txResp
		container.MsResponder = msResp
		container.Handshaker = hs
		container.GossipSrv = srv
		container.Broadcaster = bc
		container.Kickstart = ks
		container.Status = st
		container.Pruner = pr
	})
	if err != nil {
		return nil, errors.Wrap(err, "invoking container")
	}

	tangleplugin.Configure(tangleplugin.Dependencies{
		Propagator: container.Propagator,
		Solidifier: container.Solidifier,
	}, container.Processor.Events.TransactionSolidifiable, container.MsValidator.Events.LatestMilestoneChanged)

	tangleplugin.ConfigureBundleValidator(container.BundleValid, container.Processor.Events.BundleValidate)
	tangleplugin.ConfigureMilestoneValidator(container.MsValidator, container.Processor.Events.MilestoneCandidate)

	container.MsValidator.Events.LatestMilestoneChanged.Attach(events.NewClosure(
		container.Confirmer.OnLatestMilestoneChanged,
	))

	container.Processor.Events.TransactionStored.Attach(events.NewClosure(
		func(tx *tangle.Transaction, origin *peer.Peer) {
			container.Broadcaster.OnTransactionStored(tx, origin)
		},
	))

	container.Propagator.Events.LatestSolidMilestoneChanged.Attach(events.NewClosure(
		container.Pruner.OnSolidMilestoneChanged,
	))
	container.Solidifier.Events.LatestSolidMilestoneChanged.Attach(events.NewClosure(
		container.Pruner.OnSolidMilestoneChanged,
	))

	return container, nil
}

func provideSponge(cfg *config.Config) (hasher.Sponge, error) {
	return sponge.New(cfg.Coordinator.SpongeType)
}

func providePoWChecker() processor.PoWChecker { return pow.NewChecker() }

func provideHasher(cfg *config.Config, m *metrics.ServerMetrics, s hasher.Sponge) (*hasher.Hasher, error) {
	return hasher.New(s, m, cfg.Workers.TransactionWorkerCache, cfg.Workers.HasherInputBound, cfg.Workers.HasherOutputBound)
}

type txQueueParam struct {
	dig.In
	Queue *rqueue.Queue `name:"tx"`
}

type msQueueParam struct {
	dig.In
	Queue *rqueue.Queue `name:"ms"`
}

func provideProcessor(cfg *config.Config, t *tangle.Tangle, q txQueueParam, pw processor.PoWChecker, m *metrics.ServerMetrics) *processor.Processor {
	return processor.New(t, q.Queue, pw, m, coordinatorAddress(cfg), int(cfg.Protocol.MWM))
}

func provideBundleValidator(t *tangle.Tangle, m *metrics.ServerMetrics) *bundlevalidator.Validator {
	return bundlevalidator.New(t, m)
}

func provideMilestoneValidator(cfg *config.Config, t *tangle.Tangle, q msQueueParam, m *metrics.ServerMetrics, s hasher.Sponge) *milestonevalidator.Validator {
	return milestonevalidator.New(t, q.Queue, m, s, coordinatorAddress(cfg), cfg.Coordinator.SecurityLevel, cfg.Coordinator.MerkleTreeDepth)
}

func provideConfirmer(t *tangle.Tangle) *confirmation.Walker { return confirmation.New(t) }

func providePropagator(t *tangle.Tangle) *solidifier.Propagator { return solidifier.NewPropagator(t) }

func provideSolidifier(t *tangle.Tangle, prop *solidifier.Propagator, txReq *requester.TransactionRequester, msReq *requester.MilestoneRequester) *solidifier.MilestoneSolidifier {
	return solidifier.NewMilestoneSolidifier(t, prop, txReq, msReq, t.SolidMilestoneIndex()+1)
}

func provideTxRequester(q txQueueParam, peers *peering.Manager, m *metrics.ServerMetrics) *requester.TransactionRequester {
	return requester.NewTransactionRequester(q.Queue, peers, m)
}

func provideMsRequester(q msQueueParam, peers *peering.Manager, m *metrics.ServerMetrics) *requester.MilestoneRequester {
	return requester.NewMilestoneRequester(q.Queue, peers, m)
}

func provideTxResponder(t *tangle.Tangle, m *metrics.ServerMetrics) *responder.TransactionResponder {
	return responder.NewTransactionResponder(t, m)
}

func provideMsResponder(t *tangle.Tangle, m *metrics.ServerMetrics) *responder.MilestoneResponder {
	return responder.NewMilestoneResponder(t, m)
}

func provideHandshaker(cfg *config.Config, peers *peering.Manager, m *metrics.ServerMetrics, h *hasher.Hasher, txResp *responder.TransactionResponder, msResp *responder.MilestoneResponder, t *tangle.Tangle) *gossipplugin.Handshaker {
	hsCfg := gossipplugin.Config{
		ListenPort:            cfg.Peering.ListenPort,
		CoordinatorPubKeyHash: coordinatorPubKeyHash(cfg.Coordinator.PublicKeyBytes),
		MWM:                   cfg.Protocol.MWM,
		SupportedVersions:     []byte{1},
		HandshakeWindow:       cfg.Protocol.HandshakeWindow,
	}
	heartbeatNow := func() peer.Heartbeat {
		return peer.Heartbeat{
			SolidMilestoneIndex:  t.SolidMilestoneIndex(),
			PrunedIndex:          t.PruningIndex(),
			LatestMilestoneIndex: t.LatestMilestoneIndex(),
			ConnectedPeers:       byte(peers.HandshakedCount()),
			SyncedPeers:          byte(peers.HandshakedCount()),
		}
	}
	return gossipplugin.New(hsCfg, peers, m, h, txResp, msResp, heartbeatNow)
}

func provideGossipServer(cfg *config.Config, hs *gossipplugin.Handshaker) *gossipplugin.Server {
	addr := ":" + strconv.Itoa(int(cfg.Peering.ListenPort))
	return gossipplugin.NewServer(hs, addr, cfg.Peering.Peers)
}

func provideBroadcaster(peers *peering.Manager) *gossipplugin.Broadcaster {
	return gossipplugin.NewBroadcaster(peers)
}

func provideKickstart(t *tangle.Tangle, peers *peering.Manager, sol *solidifier.MilestoneSolidifier, msReq *requester.MilestoneRequester, cfg *config.Config) *gossipplugin.Kickstart {
	return gossipplugin.NewKickstart(t, peers, sol, msReq, cfg.Workers.MilestoneSyncCount, 5*time.Second)
}

func provideStatus(t *tangle.Tangle, peers *peering.Manager, m *metrics.ServerMetrics, cfg *config.Config) *gossipplugin.Status {
	return gossipplugin.NewStatus(t, peers, m, cfg.Workers.StatusInterval)
}

func providePruner(t *tangle.Tangle, cfg *config.Config) *snapshotplugin.Pruner {
	return snapshotplugin.NewPruner(t, cfg.Snapshot.PruningDelay, cfg.Snapshot.UnconfirmedTTL)
}

func coordinatorAddress(cfg *config.Config) trinary.Hash {
	return trinary.Hash(trytesPad(cfg.Coordinator.PublicKeyBytes))
}

// Start registers every worker's background loop with pkg/shutdown at the
// priority matching its place in the dependency graph and starts the
// daemon; it blocks until the process is asked to shut down.
func (c *Container) Start() error {
	registrations := []struct {
		name     string
		priority int
		fn       func(shutdownSignal <-chan struct{})
	}{
		{"Hasher", shutdown.PriorityHasher, c.Hasher.Run},
		{"Processor", shutdown.PriorityProcessor, func(shutdownSignal <-chan struct{}) {
			c.Processor.Run(c.Hasher, shutdownSignal)
		}},
		{"TransactionRequester", shutdown.PriorityRequester, c.TxRequester.Run},
		{"TransactionRequesterRetry", shutdown.PriorityRequester, c.TxRequester.RunRetryTimer},
		{"MilestoneRequester", shutdown.PriorityRequester, c.MsRequester.Run},
		{"MilestoneRequesterRetry", shutdown.PriorityRequester, c.MsRequester.RunRetryTimer},
		{"GossipServer", shutdown.PriorityGossip, c.GossipSrv.Run},
		{"Kickstart", shutdown.PriorityKickstart, c.Kickstart.Run},
		{"Status", shutdown.PriorityStatus, c.Status.Run},
	}
	for _, r := range registrations {
		if err := shutdown.Register(r.name, r.priority, r.fn); err != nil {
			return errors.Wrapf(err, "registering %s", r.name)
		}
	}
	return shutdown.Run()
}
