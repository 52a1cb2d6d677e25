package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stakeScope/internal/ledger"
	"stakeScope/internal/model"
)

//go:embed schema.sql
var schema string

// Store provides Postgres persistence for pools, users and the replay
// checkpoint. Amounts are NUMERIC(78,0) and travel as text.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the ledger tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const poolColumns = `
	pool_id, pool_type, stake_decimals, emission_decimals,
	emission_rate::text, total_staked::text, minted_total::text, max_mintable::text,
	acc_reward_per_share::text, last_update_block, created_block`

func scanPool(row pgx.Row) (model.PoolRecord, error) {
	var (
		rec                             model.PoolRecord
		stakeDecimals, emissionDecimals int16
		lastUpdateBlock, createdBlock   int64
	)
	err := row.Scan(
		&rec.ID,
		&rec.Type,
		&stakeDecimals,
		&emissionDecimals,
		&rec.EmissionRate,
		&rec.TotalStaked,
		&rec.MintedTotal,
		&rec.MaxMintable,
		&rec.AccRewardPerShare,
		&lastUpdateBlock,
		&createdBlock,
	)
	if err != nil {
		return model.PoolRecord{}, err
	}
	rec.StakeDecimals = uint8(stakeDecimals)
	rec.EmissionDecimals = uint8(emissionDecimals)
	rec.LastUpdateBlock = uint64(lastUpdateBlock)
	rec.CreatedBlock = uint64(createdBlock)
	return rec, nil
}

func (s *Store) GetPool(ctx context.Context, poolID string) (model.PoolRecord, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+poolColumns+` FROM stake_pools WHERE pool_id=$1`, poolID)
	rec, err := scanPool(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PoolRecord{}, false, nil
		}
		return model.PoolRecord{}, false, err
	}
	return rec, true, nil
}

// ListPools returns every pool ordered by id.
func (s *Store) ListPools(ctx context.Context) ([]model.PoolRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+poolColumns+` FROM stake_pools ORDER BY pool_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PoolRecord
	for rows.Next() {
		rec, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, poolID, user string) (model.UserRecord, bool, error) {
	rec := model.UserRecord{PoolID: poolID, User: user}
	var latest int64
	err := s.pool.QueryRow(ctx, `
		SELECT staked::text, reward::text, reward_debt::text, latest_updated_block
		FROM stake_users WHERE pool_id=$1 AND user_address=$2
	`, poolID, user).Scan(&rec.Staked, &rec.Reward, &rec.RewardDebt, &latest)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.UserRecord{}, false, nil
		}
		return model.UserRecord{}, false, err
	}
	rec.LatestUpdatedBlock = uint64(latest)
	return rec, true, nil
}

func (s *Store) CreatePool(ctx context.Context, rec model.PoolRecord) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO stake_pools (
			pool_id, pool_type, stake_decimals, emission_decimals, emission_rate, total_staked,
			minted_total, max_mintable, acc_reward_per_share, last_update_block, created_block,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		ON CONFLICT (pool_id) DO NOTHING
	`,
		rec.ID,
		rec.Type,
		int16(rec.StakeDecimals),
		int16(rec.EmissionDecimals),
		numeric(rec.EmissionRate),
		numeric(rec.TotalStaked),
		numeric(rec.MintedTotal),
		numeric(rec.MaxMintable),
		numeric(rec.AccRewardPerShare),
		int64(rec.LastUpdateBlock),
		int64(rec.CreatedBlock),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrPoolExists, rec.ID)
	}
	return nil
}

// Commit writes the pool state and the user position in one transaction.
func (s *Store) Commit(ctx context.Context, pool model.PoolRecord, user model.UserRecord) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE stake_pools SET
				total_staked = $2,
				minted_total = $3,
				acc_reward_per_share = $4,
				last_update_block = $5,
				updated_at = now()
			WHERE pool_id = $1
		`,
			pool.ID,
			numeric(pool.TotalStaked),
			numeric(pool.MintedTotal),
			numeric(pool.AccRewardPerShare),
			int64(pool.LastUpdateBlock),
		)
		if err != nil {
			return fmt.Errorf("update pool: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ledger.ErrPoolNotFound, pool.ID)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO stake_users (
				pool_id, user_address, staked, reward, reward_debt, latest_updated_block, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (pool_id, user_address)
			DO UPDATE SET
				staked = EXCLUDED.staked,
				reward = EXCLUDED.reward,
				reward_debt = EXCLUDED.reward_debt,
				latest_updated_block = EXCLUDED.latest_updated_block,
				updated_at = now()
		`,
			user.PoolID,
			user.User,
			numeric(user.Staked),
			numeric(user.Reward),
			numeric(user.RewardDebt),
			int64(user.LatestUpdatedBlock),
		)
		if err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}
		return nil
	})
}

// LoadState returns the last replayed block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_block FROM ledger_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts the last replayed block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_state (name, last_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_block = EXCLUDED.last_block, updated_at = now()
	`, name, int64(block))
	return err
}

// numeric maps the empty amount to zero.
func numeric(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
