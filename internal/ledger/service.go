// Package ledger applies stake events to stored pools and users.
//
// A Service reads the current records, runs the accrual engine on value
// snapshots and commits the pool and user together. Nothing is written when
// any step fails. Events of one pool are serialized; different pools proceed
// in parallel.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"stakeScope/internal/accrual"
	"stakeScope/internal/metrics"
	"stakeScope/internal/model"
)

// maxDecimals bounds the scale conventions of a pool so 10^decimals stays
// well inside the checked range.
const maxDecimals = 36

// Options configures a Service. Zero values select the defaults.
type Options struct {
	Logger       *zap.Logger
	Metrics      metrics.Metrics
	MaxRetries   int
	RetryBackoff time.Duration
	Now          func() time.Time
}

type Service struct {
	store        Store
	engine       *accrual.Engine
	locks        *xsync.Map[string, *sync.Mutex]
	logger       *zap.Logger
	metrics      metrics.Metrics
	maxRetries   int
	retryBackoff time.Duration
	now          func() time.Time
}

func NewService(store Store, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Noop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:        store,
		engine:       accrual.NewEngine(logger.Named("accrual")),
		locks:        xsync.NewMap[string, *sync.Mutex](),
		logger:       logger,
		metrics:      m,
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
		now:          now,
	}
}

// NormalizePoolID lower-cases a pool id.
func NormalizePoolID(id string) (string, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return "", fmt.Errorf("%w: empty pool id", ErrInvalidEvent)
	}
	return id, nil
}

// NormalizeUser validates an EVM address and returns it as lower-case hex.
func NormalizeUser(user string) (string, error) {
	user = strings.TrimSpace(user)
	if !common.IsHexAddress(user) {
		return "", fmt.Errorf("%w: user %q is not an address", ErrInvalidEvent, user)
	}
	return strings.ToLower(common.HexToAddress(user).Hex()), nil
}

func (s *Service) lock(poolID string) func() {
	mu, _ := s.locks.LoadOrStore(poolID, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}

// CreatePool registers a pool that starts accruing at block.
func (s *Service) CreatePool(ctx context.Context, poolID string, params model.PoolParams, block uint64) (model.PoolRecord, error) {
	rec, err := newPoolRecord(poolID, params, block)
	if err != nil {
		s.metrics.ObserveEvent(model.EventCreatePool, metrics.OutcomeFailed)
		return model.PoolRecord{}, err
	}

	unlock := s.lock(rec.ID)
	defer unlock()

	err = withRetry(ctx, s.maxRetries, s.retryBackoff, func(ctx context.Context) error {
		return s.store.CreatePool(ctx, rec)
	})
	if err != nil {
		s.metrics.ObserveEvent(model.EventCreatePool, metrics.OutcomeFailed)
		return model.PoolRecord{}, fmt.Errorf("create pool %s: %w", rec.ID, err)
	}

	s.metrics.ObserveEvent(model.EventCreatePool, metrics.OutcomeCommitted)
	s.metrics.SetLastBlock(block)
	s.logger.Info("pool created",
		zap.String("pool_id", rec.ID),
		zap.String("type", rec.Type),
		zap.String("emission_rate", rec.EmissionRate),
		zap.String("max_mintable", rec.MaxMintable),
		zap.Uint64("block", block),
	)
	return rec, nil
}

func newPoolRecord(poolID string, params model.PoolParams, block uint64) (model.PoolRecord, error) {
	id, err := NormalizePoolID(poolID)
	if err != nil {
		return model.PoolRecord{}, err
	}
	typ, err := accrual.ParsePoolType(params.Type)
	if err != nil {
		return model.PoolRecord{}, fmt.Errorf("pool %s: %w", id, err)
	}
	if params.StakeDecimals > maxDecimals || params.EmissionDecimals > maxDecimals {
		return model.PoolRecord{}, fmt.Errorf("%w: pool %s decimals above %d", ErrInvalidEvent, id, maxDecimals)
	}
	rate, err := parseAmount("emission_rate", params.EmissionRate)
	if err != nil {
		return model.PoolRecord{}, fmt.Errorf("pool %s: %w", id, err)
	}
	maxMintable, err := parseAmount("max_mintable", params.MaxMintable)
	if err != nil {
		return model.PoolRecord{}, fmt.Errorf("pool %s: %w", id, err)
	}
	return model.PoolRecord{
		ID:                id,
		Type:              typ.String(),
		StakeDecimals:     params.StakeDecimals,
		EmissionDecimals:  params.EmissionDecimals,
		EmissionRate:      rate.Dec(),
		TotalStaked:       "0",
		MintedTotal:       "0",
		MaxMintable:       maxMintable.Dec(),
		AccRewardPerShare: "0",
		LastUpdateBlock:   block,
		CreatedBlock:      block,
	}, nil
}

// ApplyStake deposits or withdraws stake for a user at block, crediting the
// reward accrued since the user's last change. Pool and user are committed
// together.
func (s *Service) ApplyStake(ctx context.Context, poolID, user string, change accrual.StakeChange, block uint64) (model.Snapshot, error) {
	kind := change.Kind.String()
	snap, err := s.applyStake(ctx, poolID, user, change, block)
	if err != nil {
		s.metrics.ObserveEvent(kind, metrics.OutcomeFailed)
		return model.Snapshot{}, err
	}
	if snap.NoStaked {
		s.metrics.ObserveEvent(kind, metrics.OutcomeNoStaked)
	} else {
		s.metrics.ObserveEvent(kind, metrics.OutcomeCommitted)
	}
	s.metrics.SetLastBlock(block)
	return snap, nil
}

func (s *Service) applyStake(ctx context.Context, poolID, userID string, change accrual.StakeChange, block uint64) (model.Snapshot, error) {
	poolID, err := NormalizePoolID(poolID)
	if err != nil {
		return model.Snapshot{}, err
	}
	userID, err = NormalizeUser(userID)
	if err != nil {
		return model.Snapshot{}, err
	}

	unlock := s.lock(poolID)
	defer unlock()

	poolRec, pool, err := s.loadPool(ctx, poolID)
	if err != nil {
		return model.Snapshot{}, err
	}
	user, err := s.loadUser(ctx, poolID, userID)
	if err != nil {
		return model.Snapshot{}, err
	}

	res, err := s.engine.ApplyStakeChange(pool, user, change, block, poolRec.StakeDecimals)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%s %s in pool %s at block %d: %w", change.Kind, userID, poolID, block, err)
	}

	nextPool := poolRecord(poolRec, res.Pool)
	nextUser := userRecord(res.User)
	err = withRetry(ctx, s.maxRetries, s.retryBackoff, func(ctx context.Context) error {
		return s.store.Commit(ctx, nextPool, nextUser)
	})
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("commit pool %s user %s: %w", poolID, userID, err)
	}

	snap := model.Snapshot{
		Block:       block,
		Kind:        change.Kind.String(),
		Pool:        nextPool,
		User:        &nextUser,
		NoStaked:    res.NoStaked,
		CommittedAt: s.now().UTC().Format(time.RFC3339Nano),
	}
	if !res.NoStaked {
		snap.Credited = res.Credited.Dec()
	}
	s.logger.Debug("stake committed",
		zap.String("pool_id", poolID),
		zap.String("user", userID),
		zap.Stringer("kind", change.Kind),
		zap.String("amount", change.Amount.Dec()),
		zap.Uint64("block", block),
		zap.String("credited", snap.Credited),
		zap.Bool("no_staked", res.NoStaked),
	)
	return snap, nil
}

// Apply dispatches one replay event.
func (s *Service) Apply(ctx context.Context, ev model.StakeEvent) (model.Snapshot, error) {
	switch ev.Kind {
	case model.EventCreatePool:
		if ev.Pool == nil {
			return model.Snapshot{}, fmt.Errorf("%w: create_pool at block %d without pool params", ErrInvalidEvent, ev.Block)
		}
		rec, err := s.CreatePool(ctx, ev.PoolID, *ev.Pool, ev.Block)
		if err != nil {
			return model.Snapshot{}, err
		}
		return model.Snapshot{
			Block:       ev.Block,
			Kind:        ev.Kind,
			Pool:        rec,
			CommittedAt: s.now().UTC().Format(time.RFC3339Nano),
		}, nil
	case model.EventDeposit, model.EventWithdraw:
		amount, err := parseAmount("amount", strings.TrimSpace(ev.Amount))
		if err != nil {
			s.metrics.ObserveEvent(ev.Kind, metrics.OutcomeFailed)
			return model.Snapshot{}, fmt.Errorf("%s at block %d: %w", ev.Kind, ev.Block, err)
		}
		change := accrual.StakeChange{Kind: accrual.Deposit, Amount: amount}
		if ev.Kind == model.EventWithdraw {
			change.Kind = accrual.Withdraw
		}
		return s.ApplyStake(ctx, ev.PoolID, ev.User, change, ev.Block)
	default:
		return model.Snapshot{}, fmt.Errorf("%w: kind %q at block %d", ErrInvalidEvent, ev.Kind, ev.Block)
	}
}

// QueryReward previews the reward the user would be credited at block.
// Nothing is written.
func (s *Service) QueryReward(ctx context.Context, poolID, userID string, block uint64) (uint256.Int, error) {
	poolID, err := NormalizePoolID(poolID)
	if err != nil {
		return uint256.Int{}, err
	}
	userID, err = NormalizeUser(userID)
	if err != nil {
		return uint256.Int{}, err
	}

	unlock := s.lock(poolID)
	poolRec, pool, err := s.loadPool(ctx, poolID)
	if err != nil {
		unlock()
		return uint256.Int{}, err
	}
	user, err := s.loadUser(ctx, poolID, userID)
	unlock()
	if err != nil {
		return uint256.Int{}, err
	}

	if block == 0 {
		block = pool.LastUpdateBlock
	}
	pending, err := s.engine.QueryReward(user, pool, block, poolRec.StakeDecimals)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("query %s in pool %s at block %d: %w", userID, poolID, block, err)
	}
	return pending, nil
}

// Pool returns the stored record of a pool.
func (s *Service) Pool(ctx context.Context, poolID string) (model.PoolRecord, error) {
	poolID, err := NormalizePoolID(poolID)
	if err != nil {
		return model.PoolRecord{}, err
	}
	rec, ok, err := s.store.GetPool(ctx, poolID)
	if err != nil {
		return model.PoolRecord{}, fmt.Errorf("load pool %s: %w", poolID, err)
	}
	if !ok {
		return model.PoolRecord{}, fmt.Errorf("%w: %s", ErrPoolNotFound, poolID)
	}
	return rec, nil
}

// User returns the stored record of a user in a pool.
func (s *Service) User(ctx context.Context, poolID, userID string) (model.UserRecord, error) {
	poolID, err := NormalizePoolID(poolID)
	if err != nil {
		return model.UserRecord{}, err
	}
	userID, err = NormalizeUser(userID)
	if err != nil {
		return model.UserRecord{}, err
	}
	rec, ok, err := s.store.GetUser(ctx, poolID, userID)
	if err != nil {
		return model.UserRecord{}, fmt.Errorf("load user %s: %w", userID, err)
	}
	if !ok {
		return model.UserRecord{}, fmt.Errorf("%w: %s in pool %s", ErrUserNotFound, userID, poolID)
	}
	return rec, nil
}

func (s *Service) loadPool(ctx context.Context, poolID string) (model.PoolRecord, accrual.Pool, error) {
	rec, err := s.Pool(ctx, poolID)
	if err != nil {
		return model.PoolRecord{}, accrual.Pool{}, err
	}
	pool, err := poolFromRecord(rec)
	if err != nil {
		return model.PoolRecord{}, accrual.Pool{}, err
	}
	return rec, pool, nil
}

// loadUser returns a zero position for users without a record.
func (s *Service) loadUser(ctx context.Context, poolID, userID string) (accrual.User, error) {
	rec, ok, err := s.store.GetUser(ctx, poolID, userID)
	if err != nil {
		return accrual.User{}, fmt.Errorf("load user %s: %w", userID, err)
	}
	if !ok {
		return accrual.User{PoolID: poolID, ID: userID}, nil
	}
	return userFromRecord(rec)
}
