package strata

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/soundprediction/strata/pkg/advice"
	"github.com/soundprediction/strata/pkg/correlation"
	"github.com/soundprediction/strata/pkg/graph"
	"github.com/soundprediction/strata/pkg/history"
	"github.com/soundprediction/strata/pkg/types"
	"github.com/soundprediction/strata/pkg/validate"
)

var (
	// ErrOperationBlocked is returned when a governed operation fails its
	// KROG check. The blocking violations travel alongside the error.
	ErrOperationBlocked = errors.New("operation blocked by governance")
	// ErrNodeNotFound is returned when a node id is unknown.
	ErrNodeNotFound = errors.New("node not found")
)

// Config holds configuration for the strata client.
type Config struct {
	// MaxRefinements bounds how many mutations one Refine call may apply.
	MaxRefinements int
	// MaxCycles bounds how many validate/remediate cycles one Refine call
	// may run.
	MaxCycles int
	// BridgeEdgesPerCycle caps the edges a single bridge_gaps action adds.
	BridgeEdgesPerCycle int
	// AdviceTimeout bounds one call to the gap-advice collaborator.
	AdviceTimeout time.Duration
	// CorrelationWindow is the bucketing window for correlation learning.
	CorrelationWindow time.Duration
	// Thresholds are the validator's invariant bounds.
	Thresholds validate.Thresholds
}

// DefaultConfig returns the engine's canonical settings.
func DefaultConfig() *Config {
	return &Config{
		MaxRefinements:      10,
		MaxCycles:           10,
		BridgeEdgesPerCycle: 5,
		AdviceTimeout:       advice.DefaultTimeout,
		CorrelationWindow:   correlation.DefaultWindow,
		Thresholds:          validate.DefaultThresholds(),
	}
}

// Client is the main implementation of the Strata interface. It owns the
// canonical graph store, the correlation matrix, and the validator; the gap
// advisor and update log are optional collaborators.
type Client struct {
	store     *graph.Store
	matrix    *correlation.Matrix
	validator *validate.Validator
	advisor   advice.Advisor
	updates   *history.Log
	config    *Config
	logger    *slog.Logger
}

// NewClient creates a strata client. Advisor and updateLog may be nil: the
// refinement loop then relies on the local bridging heuristic alone and
// correlation learning has no replayable history.
func NewClient(advisor advice.Advisor, updateLog *history.Log, config *Config, logger *slog.Logger) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxRefinements <= 0 {
		config.MaxRefinements = 10
	}
	if config.MaxCycles <= 0 {
		config.MaxCycles = 10
	}
	if config.BridgeEdgesPerCycle <= 0 {
		config.BridgeEdgesPerCycle = 5
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		store:     graph.NewStore(logger),
		matrix:    correlation.NewMatrix(),
		validator: validate.New(validate.WithThresholds(config.Thresholds), validate.WithLogger(logger)),
		advisor:   advisor,
		updates:   updateLog,
		config:    config,
		logger:    logger,
	}, nil
}

// Store returns the canonical graph store.
func (c *Client) Store() *graph.Store {
	return c.store
}

// Restore replaces the canonical graph with a previously persisted snapshot.
// Intended for startup, before the engine serves requests.
func (c *Client) Restore(s *graph.Store) {
	if s != nil {
		c.store = s
	}
}

// Matrix returns the correlation matrix.
func (c *Client) Matrix() *correlation.Matrix {
	return c.matrix
}

// GetNode retrieves a clone of a node from the canonical graph.
func (c *Client) GetNode(id string) (*types.Node, error) {
	node, ok := c.store.GetNode(id)
	if !ok {
		return nil, ErrNodeNotFound
	}
	return node, nil
}

// Validate runs the validator over the canonical graph. A nil operation
// skips the governance pass.
func (c *Client) Validate(op *types.Operation) types.ValidationResult {
	return c.validator.Validate(c.store, op)
}

// LearnCorrelations replays the update log and feeds it to the correlation
// matrix. A client without an update log learns nothing and returns nil.
func (c *Client) LearnCorrelations(ctx context.Context) error {
	if c.updates == nil {
		return nil
	}
	updates, err := c.updates.Replay()
	if err != nil {
		return err
	}
	return c.matrix.LearnFromHistory(updates, c.config.CorrelationWindow)
}

// Close releases the update log, if any.
func (c *Client) Close() error {
	if c.updates == nil {
		return nil
	}
	return c.updates.Close()
}
