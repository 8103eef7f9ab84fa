package solidifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
)

type recordingTxRequester struct {
	requested []trinary.Hash
}

func (r *recordingTxRequester) Request(hash trinary.Hash, msIndex milestone.Index) {
	r.requested = append(r.requested, hash)
}

type recordingMsRequester struct {
	requested []milestone.Index
}

func (r *recordingMsRequester) Request(index milestone.Index) {
	r.requested = append(r.requested, index)
}

func TestMilestoneSolidifierAdvancesWhenFullySolid(t *testing.T) {
	tg := tangle.New(nil)
	tg.AddSolidEntryPoint(h("SEP"), 0)
	addTx(t, tg, h("MS1"), h("SEP"), h("SEP"))
	tg.AddMilestone(&milestone.Milestone{Index: 1, Hash: h("MS1")})

	propagator := NewPropagator(tg)
	txReq := &recordingTxRequester{}
	msReq := &recordingMsRequester{}
	s := NewMilestoneSolidifier(tg, propagator, txReq, msReq, 1)

	s.Schedule(1)

	assert.EqualValues(t, 1, tg.SolidMilestoneIndex())
	assert.Empty(t, txReq.requested)
}

func TestMilestoneSolidifierRequestsMissingParentAndWaits(t *testing.T) {
	tg := tangle.New(nil)
	addTx(t, tg, h("MS2"), h("MISSING"), h("MISSING"))
	tg.AddMilestone(&milestone.Milestone{Index: 2, Hash: h("MS2")})

	propagator := NewPropagator(tg)
	txReq := &recordingTxRequester{}
	msReq := &recordingMsRequester{}
	s := NewMilestoneSolidifier(tg, propagator, txReq, msReq, 2)

	s.Schedule(2)

	assert.EqualValues(t, 0, tg.SolidMilestoneIndex())
	require.Len(t, txReq.requested, 1)
	assert.Equal(t, h("MISSING"), txReq.requested[0])
}

func TestMilestoneSolidifierRequestsUnknownMilestone(t *testing.T) {
	tg := tangle.New(nil)
	propagator := NewPropagator(tg)
	txReq := &recordingTxRequester{}
	msReq := &recordingMsRequester{}
	s := NewMilestoneSolidifier(tg, propagator, txReq, msReq, 3)

	s.Schedule(3)

	require.Len(t, msReq.requested, 1)
	assert.EqualValues(t, 3, msReq.requested[0])
}

func TestMilestoneSolidifierHoldsOutOfOrderIndex(t *testing.T) {
	tg := tangle.New(nil)
	propagator := NewPropagator(tg)
	txReq := &recordingTxRequester{}
	msReq := &recordingMsRequester{}
	s := NewMilestoneSolidifier(tg, propagator, txReq, msReq, 1)

	// index 2 arrives before the expected index 1: it must be queued but
	// not attempted yet.
	s.Schedule(2)

	assert.Empty(t, msReq.requested)
	assert.Equal(t, []milestone.Index{2}, s.queue)
}
