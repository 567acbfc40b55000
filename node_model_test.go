package sltm

import (
	"log/slog"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"
)

func TestNodeModelSolve(t *testing.T) {
	tcs := []struct {
		name           string
		input          NodeModelInput
		expectedAlphas []float64
		constrained    bool
	}{
		{
			name: "unconstrained",
			input: NodeModelInput{
				EntryCapacities:    []float64{100, 100},
				ExitReceivingFlows: []float64{150},
				TurnSendingFlows:   []float64{60, 40},
			},
			expectedAlphas: []float64{1, 1},
		},
		{
			name: "merge",
			input: NodeModelInput{
				EntryCapacities:    []float64{100, 100},
				ExitReceivingFlows: []float64{70},
				TurnSendingFlows:   []float64{60, 40},
			},
			expectedAlphas: []float64{0.7, 0.7},
			constrained:    true,
		},
		{
			name: "diverge keeps turn proportions",
			input: NodeModelInput{
				EntryCapacities:    []float64{200},
				ExitReceivingFlows: []float64{30, 100},
				TurnSendingFlows:   []float64{50, 50},
			},
			expectedAlphas: []float64{0.6},
			constrained:    true,
		},
		{
			name: "entry capacity with sink",
			input: NodeModelInput{
				EntryCapacities:    []float64{50},
				ExitReceivingFlows: []float64{},
				TurnSendingFlows:   []float64{},
				SinkFlows:          []float64{80},
			},
			expectedAlphas: []float64{0.625},
			constrained:    true,
		},
		{
			name: "two restrictive exits",
			input: NodeModelInput{
				EntryCapacities:    []float64{200, 200},
				ExitReceivingFlows: []float64{100, 20},
				TurnSendingFlows: []float64{
					100, 0,
					50, 50,
				},
			},
			expectedAlphas: []float64{0.8, 0.4},
			constrained:    true,
		},
		{
			name: "entry without flow",
			input: NodeModelInput{
				EntryCapacities:    []float64{100, 100},
				ExitReceivingFlows: []float64{50},
				TurnSendingFlows:   []float64{0, 80},
			},
			expectedAlphas: []float64{1, 0.625},
			constrained:    true,
		},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			nm := NewNodeModel(DefaultCapacityTolerance, slogt.New(t))
			result := nm.Solve(tc.input)
			require.InDeltaSlice(t, tc.expectedAlphas, result.Alphas, 1e-9)
			require.Equal(t, tc.constrained, result.Constrained)
			require.False(t, result.Fallback)

			for b, receiving := range tc.input.ExitReceivingFlows {
				require.LessOrEqual(t, result.AcceptedExitFlows[b], receiving+1e-9)
			}
			for a, capacity := range tc.input.EntryCapacities {
				accepted := result.AcceptedSinkFlows[a]
				exitsNum := len(tc.input.ExitReceivingFlows)
				for b := 0; b < exitsNum; b++ {
					accepted += result.AcceptedTurnFlows[a*exitsNum+b]
				}
				require.LessOrEqual(t, accepted, capacity+1e-9)
			}
		})
	}
}

func TestNodeModelAcceptedFlows(t *testing.T) {
	nm := NewNodeModel(DefaultCapacityTolerance, slogt.New(t))
	result := nm.Solve(NodeModelInput{
		EntryCapacities:    []float64{200, 200},
		ExitReceivingFlows: []float64{100, 20},
		TurnSendingFlows: []float64{
			100, 0,
			50, 50,
		},
		SinkFlows: []float64{0, 10},
	})
	// Exit 2 is the most restrictive: 20 / 50. Entry 2 gets 0.4, then exit 1 has 80 left for 100 of entry 1
	require.InDelta(t, 0.8, result.Alphas[0], 1e-9)
	require.InDelta(t, 0.4, result.Alphas[1], 1e-9)
	require.InDeltaSlice(t, []float64{80, 0, 20, 20}, result.AcceptedTurnFlows, 1e-9)
	require.InDeltaSlice(t, []float64{0, 4}, result.AcceptedSinkFlows, 1e-9)
	require.InDeltaSlice(t, []float64{100, 20}, result.AcceptedExitFlows, 1e-9)
}

func TestNodeModelZeroReceiving(t *testing.T) {
	nm := NewNodeModel(DefaultCapacityTolerance, slogt.New(t))
	result := nm.Solve(NodeModelInput{
		EntryCapacities:    []float64{100},
		ExitReceivingFlows: []float64{0},
		TurnSendingFlows:   []float64{40},
	})
	require.True(t, result.Constrained)
	require.Equal(t, 0.0, result.Alphas[0])
	require.Equal(t, 0.0, result.AcceptedExitFlows[0])
}

func TestNodeModelFallback(t *testing.T) {
	tcs := []struct {
		name           string
		input          NodeModelInput
		sending        []float64
		expectedAlphas []float64
	}{
		{
			name: "merge over receiving flow",
			input: NodeModelInput{
				EntryCapacities:    []float64{100, 100},
				ExitReceivingFlows: []float64{70},
				TurnSendingFlows:   []float64{60, 40},
			},
			sending:        []float64{60, 40},
			expectedAlphas: []float64{0.7, 0.7},
		},
		{
			name: "entry capacity and shared exit",
			input: NodeModelInput{
				EntryCapacities:    []float64{50, 100},
				ExitReceivingFlows: []float64{100, 20},
				TurnSendingFlows:   []float64{50, 50, 0, 40},
			},
			sending:        []float64{100, 40},
			expectedAlphas: []float64{10.0 / 65.0, 20.0 / 65.0},
		},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			handler := &countingHandler{}
			nm := NewNodeModel(DefaultCapacityTolerance, slog.New(handler))
			entriesNum := len(tc.input.EntryCapacities)
			result := NodeModelResult{
				Alphas:            make([]float64, entriesNum),
				AcceptedTurnFlows: make([]float64, len(tc.input.TurnSendingFlows)),
				AcceptedSinkFlows: make([]float64, entriesNum),
				AcceptedExitFlows: make([]float64, len(tc.input.ExitReceivingFlows)),
			}
			// Unrestricted alphas violate receiving flows
			for a := range result.Alphas {
				result.Alphas[a] = 1.0
			}
			nm.applyAlphas(&tc.input, &result)
			require.False(t, nm.isFeasible(&tc.input, tc.sending, &result))

			nm.fallback(&tc.input, tc.sending, &result, false)
			require.True(t, result.Fallback)
			require.Equal(t, 1, handler.Warnings())
			require.True(t, nm.isFeasible(&tc.input, tc.sending, &result))
			require.Len(t, result.Alphas, len(tc.expectedAlphas))
			for a, expected := range tc.expectedAlphas {
				require.InDelta(t, expected, result.Alphas[a], 1e-9, "entry %d", a)
			}
		})
	}
}
