package sltm

import (
	"log/slog"
)

const (
	DefaultAcceptanceTolerance  = 1e-6
	DefaultSendingFlowTolerance = 1e-6
	DefaultCapacityTolerance    = 1e-9
	DefaultMaxIterations        = 100
	DefaultMaxLocalIterations   = 50
)

// LoadingOption configures NetworkLoading
type LoadingOption func(*NetworkLoading)

// WithSolutionScheme sets solution scheme. Tracking mode follows the scheme unless it is set explicitly
func WithSolutionScheme(scheme SolutionScheme) LoadingOption {
	return func(loading *NetworkLoading) {
		loading.scheme = scheme
	}
}

// WithTrackingMode sets tracking mode of splitting rates
func WithTrackingMode(mode TrackingMode) LoadingOption {
	return func(loading *NetworkLoading) {
		loading.trackingMode = mode
	}
}

// WithAcceptanceTolerance sets maximum change of any flow acceptance factor between passes which is considered as convergence
func WithAcceptanceTolerance(tolerance float64) LoadingOption {
	return func(loading *NetworkLoading) {
		loading.acceptanceTolerance = tolerance
	}
}

// WithSendingFlowTolerance sets convergence threshold (pcu/h) for local sending flow updates
func WithSendingFlowTolerance(tolerance float64) LoadingOption {
	return func(loading *NetworkLoading) {
		loading.sendingFlowTolerance = tolerance
	}
}

// WithCapacityTolerance sets relative tolerance of capacity checks
func WithCapacityTolerance(tolerance float64) LoadingOption {
	return func(loading *NetworkLoading) {
		loading.capacityTolerance = tolerance
	}
}

// WithMaxIterations sets maximum number of loading passes
func WithMaxIterations(iterations int) LoadingOption {
	return func(loading *NetworkLoading) {
		loading.maxIterations = iterations
	}
}

// WithMaxLocalIterations sets maximum number of local sweeps per pass
func WithMaxLocalIterations(iterations int) LoadingOption {
	return func(loading *NetworkLoading) {
		loading.maxLocalIterations = iterations
	}
}

// WithWorkers sets number of goroutines for demand traversal and node model evaluation
func WithWorkers(workers int) LoadingOption {
	return func(loading *NetworkLoading) {
		loading.workers = workers
	}
}

// WithLogger sets logger
func WithLogger(log *slog.Logger) LoadingOption {
	return func(loading *NetworkLoading) {
		loading.log = log
	}
}
