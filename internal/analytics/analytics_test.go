package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator-signal-lab/internal/domain"
)

func ptr[T any](v T) *T {
	return &v
}

func TestExecutableReturnPct(t *testing.T) {
	p := DefaultParams()

	tests := []struct {
		name  string
		quote *domain.ExitQuote
		want  *float64
	}{
		{"nil quote", nil, nil},
		{"unroutable", &domain.ExitQuote{Routable: false}, ptr(-100.0)},
		{"routable without price", &domain.ExitQuote{Routable: true}, nil},
		{"routable with price", &domain.ExitQuote{Routable: true, ExecutablePrice: ptr(1.05)}, ptr(5 - 2.14)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ExecutableReturnPct(1.0, tt.quote)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestLiquidityTransition(t *testing.T) {
	p := DefaultParams()
	now := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)

	t.Run("degrades once above threshold", func(t *testing.T) {
		state, reading := p.LiquidityTransition(
			domain.LiquidityState{Status: domain.LiquidityExitable},
			&domain.ExitQuote{Routable: true, PriceImpactBps: ptr(1500.0)},
			-12.5, now)

		assert.Equal(t, domain.LiquidityDegraded, state.Status)
		assert.Equal(t, domain.CheckpointLiquidityDegraded, reading)
		require.NotNil(t, state.FirstDegradedAt)
		assert.Equal(t, now, *state.FirstDegradedAt)
		require.NotNil(t, state.WouldHaveExitedReturnPct)
		assert.Equal(t, -12.5, *state.WouldHaveExitedReturnPct)

		later := now.Add(time.Hour)
		again, _ := p.LiquidityTransition(state,
			&domain.ExitQuote{Routable: true, PriceImpactBps: ptr(3000.0)}, -40, later)
		assert.Equal(t, now, *again.FirstDegradedAt)
		assert.Equal(t, -12.5, *again.WouldHaveExitedReturnPct)
	})

	t.Run("impact at threshold stays exitable", func(t *testing.T) {
		state, reading := p.LiquidityTransition(
			domain.LiquidityState{Status: domain.LiquidityExitable},
			&domain.ExitQuote{Routable: true, PriceImpactBps: ptr(1000.0)},
			0, now)
		assert.Equal(t, domain.LiquidityExitable, state.Status)
		assert.Equal(t, domain.CheckpointLiquidityExitable, reading)
	})

	t.Run("degraded does not recover", func(t *testing.T) {
		state, reading := p.LiquidityTransition(
			domain.LiquidityState{Status: domain.LiquidityDegraded},
			&domain.ExitQuote{Routable: true, PriceImpactBps: ptr(5.0)},
			0, now)
		assert.Equal(t, domain.LiquidityDegraded, state.Status)
		assert.Equal(t, domain.CheckpointLiquidityExitable, reading)
	})

	t.Run("degraded to unexitable", func(t *testing.T) {
		state, _ := p.LiquidityTransition(
			domain.LiquidityState{Status: domain.LiquidityDegraded},
			&domain.ExitQuote{Routable: false}, 0, now)
		assert.Equal(t, domain.LiquidityUnexitable, state.Status)
		require.NotNil(t, state.FirstUnexitableAt)
	})

	t.Run("empty status defaults to exitable", func(t *testing.T) {
		state, reading := p.LiquidityTransition(domain.LiquidityState{}, nil, 0, now)
		assert.Equal(t, domain.LiquidityExitable, state.Status)
		assert.Equal(t, domain.CheckpointLiquidityUnknown, reading)
	})
}

func TestProbation_ScenarioWouldHaveSaved(t *testing.T) {
	p := DefaultParams()

	pr := p.Probation(nil, domain.Checkpoint15m, 3.0, t0)
	require.NotNil(t, pr)
	assert.True(t, pr.FlaggedFlat)

	pr = p.Probation(pr, domain.Checkpoint30m, 1.0, t0)
	assert.Nil(t, pr.MissedGainPct)

	pr = p.Probation(pr, domain.Checkpoint1h, 8.0, t0)
	require.NotNil(t, pr.MissedGainPct)
	assert.InDelta(t, 5.0, *pr.MissedGainPct, 1e-9)
	assert.True(t, ProbationMissedGain(pr))

	pr = p.Probation(pr, domain.Checkpoint6h, -20.0, t0)
	require.NotNil(t, pr.WouldHaveSavedPct)
	assert.InDelta(t, 23.0, *pr.WouldHaveSavedPct, 1e-9)
	assert.True(t, ProbationWouldHaveSaved(pr))

	// A 24h recovery keeps the 6h diagnostic.
	pr = p.Probation(pr, domain.Checkpoint24h, 10.0, t0)
	assert.InDelta(t, 23.0, *pr.WouldHaveSavedPct, 1e-9)
	assert.True(t, ProbationWouldHaveSaved(pr))
	assert.True(t, pr.FlaggedFlat)
	require.Len(t, pr.Later, 2)
	assert.Equal(t, domain.ProbationLater{Checkpoint: domain.Checkpoint6h, NetReturnPct: -20, WouldHaveSavedPct: 23}, pr.Later[0])
	assert.Equal(t, domain.ProbationLater{Checkpoint: domain.Checkpoint24h, NetReturnPct: 10, WouldHaveSavedPct: 0}, pr.Later[1])

	again := p.Probation(pr, domain.Checkpoint24h, 10.0, t0)
	assert.Len(t, again.Later, 2, "re-recording a horizon replaces its entry")
}

func TestProbation_LossOnlyAt24h(t *testing.T) {
	p := DefaultParams()

	pr := p.Probation(nil, domain.Checkpoint15m, 2.0, t0)
	pr = p.Probation(pr, domain.Checkpoint6h, 4.0, t0)
	assert.False(t, ProbationWouldHaveSaved(pr))

	pr = p.Probation(pr, domain.Checkpoint24h, -8.0, t0)
	assert.True(t, ProbationWouldHaveSaved(pr))
	assert.InDelta(t, 10.0, *pr.WouldHaveSavedPct, 1e-9)
}

func TestProbation_NotFlaggedCarriesNoDiagnostics(t *testing.T) {
	p := DefaultParams()

	pr := p.Probation(nil, domain.Checkpoint15m, 5.0, t0) // threshold is exclusive
	require.NotNil(t, pr)
	assert.False(t, pr.FlaggedFlat)

	pr = p.Probation(pr, domain.Checkpoint1h, 40, t0)
	pr = p.Probation(pr, domain.Checkpoint6h, -40, t0)
	assert.Nil(t, pr.MissedGainPct)
	assert.Nil(t, pr.WouldHaveSavedPct)
	assert.False(t, ProbationWouldHaveSaved(pr))
}

func TestProbation_SetOnlyAt15m(t *testing.T) {
	p := DefaultParams()

	assert.Nil(t, p.Probation(nil, domain.Checkpoint30m, -50, t0))

	first := p.Probation(nil, domain.Checkpoint15m, 1, t0)
	again := p.Probation(first, domain.Checkpoint15m, 80, t0.Add(time.Minute))
	assert.Same(t, first, again)
}

func TestPrincipalBack(t *testing.T) {
	p := DefaultParams()

	t.Run("below threshold never triggers", func(t *testing.T) {
		assert.Nil(t, p.PrincipalBack(nil, domain.Checkpoint15m, 49.99, 1.5, t0))
	})

	t.Run("early trigger finalizes at 6h", func(t *testing.T) {
		pb := p.PrincipalBack(nil, domain.Checkpoint30m, 60, 1.62, t0)
		require.NotNil(t, pb)
		assert.InDelta(t, 39.0, pb.LockedReturnPct, 1e-9)
		assert.False(t, pb.IsFinalized())

		pb = p.PrincipalBack(pb, domain.Checkpoint1h, 200, 3, t0)
		assert.False(t, pb.IsFinalized())

		pb = p.PrincipalBack(pb, domain.Checkpoint6h, 20, 1.22, t0)
		require.True(t, pb.IsFinalized())
		assert.InDelta(t, 7.0, *pb.MoonbagReturnPct, 1e-9)
		assert.InDelta(t, 46.0, *pb.CombinedReturnPct, 1e-9)
		assert.Equal(t, domain.Checkpoint6h, *pb.FinalCheckpoint)

		final := p.PrincipalBack(pb, domain.Checkpoint24h, -90, 0.1, t0)
		assert.InDelta(t, 46.0, *final.CombinedReturnPct, 1e-9)
		assert.Equal(t, domain.CheckpointName("30m"), final.TriggerCheckpoint)
	})

	t.Run("trigger at 6h finalizes at 24h", func(t *testing.T) {
		pb := p.PrincipalBack(nil, domain.Checkpoint6h, 100, 2, t0)
		assert.False(t, pb.IsFinalized())

		pb = p.PrincipalBack(pb, domain.Checkpoint24h, -10, 0.9, t0)
		require.True(t, pb.IsFinalized())
		assert.InDelta(t, 65-3.5, *pb.CombinedReturnPct, 1e-9)
	})

	t.Run("trigger at 24h finalizes immediately", func(t *testing.T) {
		pb := p.PrincipalBack(nil, domain.Checkpoint24h, 80, 1.8, t0)
		require.True(t, pb.IsFinalized())
		assert.InDelta(t, 80.0, *pb.CombinedReturnPct, 1e-9)
	})
}

func TestPrincipalBack_NeverChangesCheckpointNet(t *testing.T) {
	p := DefaultParams()
	trade := newTrade(1)

	record(t, p, trade, 1.8, nil)
	net15 := trade.Checkpoint(domain.Checkpoint15m).NetReturnPct
	require.NotNil(t, trade.PrincipalBack)

	for !trade.Status.IsTerminal() {
		record(t, p, trade, 1.1, nil)
	}
	assert.InDelta(t, 77.86, net15, 1e-9)
	assert.Equal(t, net15, trade.Checkpoint(domain.Checkpoint15m).NetReturnPct)
	assert.True(t, trade.PrincipalBack.IsFinalized())
}
