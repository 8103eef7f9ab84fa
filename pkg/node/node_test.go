package node

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trinarytangle/tanglenode/pkg/config"
	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
)

func testConfig() *config.Config {
	return &config.Config{
		Coordinator: config.CoordinatorConfig{
			PublicKeyBytes:  "COORDINATOR" + strings.Repeat("9", 81-len("COORDINATOR")),
			SpongeType:      "kerl",
			SecurityLevel:   2,
			MerkleTreeDepth: 20,
		},
		Protocol: config.ProtocolConfig{
			MWM:             14,
			HandshakeWindow: 20 * time.Second,
		},
		Workers: config.WorkersConfig{
			HasherInputBound:       100,
			HasherOutputBound:      100,
			TransactionWorkerCache: 1000,
			MilestoneSyncCount:     milestone.Index(50),
			StatusInterval:         5 * time.Second,
		},
		Peering: config.PeeringConfig{
			ListenPort: 15600,
		},
		Snapshot: config.SnapshotConfig{
			PruningDelay:   60480,
			UnconfirmedTTL: 24 * time.Hour,
		},
	}
}

func TestBuildAssemblesEveryWorker(t *testing.T) {
	container, err := Build(testConfig())
	require.NoError(t, err)

	assert.NotNil(t, container.Tangle)
	assert.NotNil(t, container.Metrics)
	assert.NotNil(t, container.Peering)
	assert.NotNil(t, container.Hasher)
	assert.NotNil(t, container.Processor)
	assert.NotNil(t, container.BundleValid)
	assert.NotNil(t, container.MsValidator)
	assert.NotNil(t, container.Confirmer)
	assert.NotNil(t, container.TxRequester)
	assert.NotNil(t, container.MsRequester)
	assert.NotNil(t, container.TxResponder)
	assert.NotNil(t, container.MsResponder)
	assert.NotNil(t, container.Propagator)
	assert.NotNil(t, container.Solidifier)
	assert.NotNil(t, container.Handshaker)
	assert.NotNil(t, container.GossipSrv)
	assert.NotNil(t, container.Broadcaster)
	assert.NotNil(t, container.Kickstart)
	assert.NotNil(t, container.Status)
	assert.NotNil(t, container.Pruner)
}

func TestBuildRejectsUnsupportedSpongeType(t *testing.T) {
	cfg := testConfig()
	cfg.Coordinator.SpongeType = "not-a-sponge"

	_, err := Build(cfg)
	assert.Error(t, err)
}
