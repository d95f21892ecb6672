package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"sftsync/internal/model"
	"sftsync/internal/store"
)

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides Postgres persistence for the reconciliation engine.
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

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ListFunds returns every fund with its default packages.
func (s *Store) ListFunds(ctx context.Context) ([]model.Fund, error) {
	batch := &pgx.Batch{}
	batch.Queue(`SELECT id, chain, base_currency, sft_address, vault_address FROM funds ORDER BY id`)
	batch.Queue(`SELECT id, fund_id, package_id, name FROM packages ORDER BY fund_id, id`)

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	rows, err := br.Query()
	if err != nil {
		return nil, fmt.Errorf("query funds: %w", err)
	}
	var funds []model.Fund
	index := make(map[int64]int)
	for rows.Next() {
		var f model.Fund
		if err := rows.Scan(&f.ID, &f.Chain, &f.BaseCurrency, &f.SFTAddress, &f.VaultAddress); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan fund: %w", err)
		}
		index[f.ID] = len(funds)
		funds = append(funds, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query funds: %w", err)
	}

	rows, err = br.Query()
	if err != nil {
		return nil, fmt.Errorf("query packages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			pkg    model.Package
			fundID int64
		)
		if err := rows.Scan(&pkg.ID, &fundID, &pkg.PackageID, &pkg.Name); err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		if i, ok := index[fundID]; ok {
			funds[i].DefaultPackages = append(funds[i].DefaultPackages, pkg)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query packages: %w", err)
	}
	return funds, nil
}

// LatestEventLog returns the event log row furthest along the chain.
func (s *Store) LatestEventLog(ctx context.Context) (model.EventLogRecord, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, action, block_number, block_hash, transaction_index, transaction_hash,
			log_index, contract_address, data, topics, created_at
		FROM event_logs
		ORDER BY block_number DESC, log_index DESC, id DESC
		LIMIT 1
	`)

	var (
		record                        model.EventLogRecord
		blockNumber, txIndex, logIndx int64
		action                        string
	)
	err := row.Scan(&record.ID, &action, &blockNumber, &record.BlockHash, &txIndex, &record.TransactionHash,
		&logIndx, &record.ContractAddress, &record.Data, &record.Topics, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.EventLogRecord{}, false, nil
		}
		return model.EventLogRecord{}, false, err
	}
	record.Action = model.EventAction(action)
	record.BlockNumber = uint64(blockNumber)
	record.TransactionIndex = uint64(txIndex)
	record.LogIndex = uint64(logIndx)
	return record, true, nil
}

// DeleteRunLogs removes run logs matching filter.
func (s *Store) DeleteRunLogs(ctx context.Context, filter store.RunLogFilter) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM sync_run_logs
		WHERE trigger = $1 AND status = $2 AND created_at < $3
	`, string(filter.Trigger), string(filter.Status), filter.Before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CreateRunLog inserts a run summary.
func (s *Store) CreateRunLog(ctx context.Context, run *model.SyncRunLog) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO sync_run_logs (
			trigger, message, latest_token_event_log_block_number, latest_token_event_log_index,
			total_synced, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id, created_at
	`,
		string(run.Trigger),
		run.Message,
		int64(run.LatestTokenEventLogBlockNumber),
		int64(run.LatestTokenEventLogIndex),
		run.TotalSynced,
		string(run.Status),
	).Scan(&run.ID, &run.CreatedAt)
}

// WithinTx runs fn in a database transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&txStore{q: tx})
	})
}

// LogEarningRecord stores an earning record for the progression service.
func (s *Store) LogEarningRecord(ctx context.Context, record model.EarningRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO earning_records (type, user_id, earning_exp, earning_points, receipt, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, record.Type, record.UserID, record.EarningExp, record.EarningPoints, record.Receipt)
	return err
}

// txStore implements store.Tx against a querier.
type txStore struct {
	q querier
}

func (t *txStore) CreateEventLog(ctx context.Context, record *model.EventLogRecord) error {
	return t.q.QueryRow(ctx, `
		INSERT INTO event_logs (
			action, block_number, block_hash, transaction_index, transaction_hash,
			log_index, contract_address, data, topics, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING id, created_at
	`,
		string(record.Action),
		int64(record.BlockNumber),
		record.BlockHash,
		int64(record.TransactionIndex),
		record.TransactionHash,
		int64(record.LogIndex),
		record.ContractAddress,
		record.Data,
		record.Topics,
	).Scan(&record.ID, &record.CreatedAt)
}

func (t *txStore) FindToken(ctx context.Context, contractAddress, tokenID string) (model.Token, error) {
	row := t.q.QueryRow(ctx, `
		SELECT id, fund_id, contract_address, token_id, owner, token_value::text, package_id, status
		FROM tokens
		WHERE lower(contract_address) = lower($1) AND lower(token_id) = lower($2)
		FOR UPDATE
	`, contractAddress, tokenID)

	var (
		token  model.Token
		status string
	)
	err := row.Scan(&token.ID, &token.FundID, &token.ContractAddress, &token.TokenID, &token.Owner,
		&token.TokenValue, &token.PackageID, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Token{}, store.ErrNotFound
		}
		return model.Token{}, err
	}
	token.Status = model.TokenStatus(status)
	return token, nil
}

func (t *txStore) CreateToken(ctx context.Context, token *model.Token) error {
	return t.q.QueryRow(ctx, `
		INSERT INTO tokens (
			fund_id, contract_address, token_id, owner, token_value, package_id, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, now(), now())
		RETURNING id
	`,
		token.FundID,
		token.ContractAddress,
		token.TokenID,
		token.Owner,
		token.TokenValue,
		token.PackageID,
		string(token.Status),
	).Scan(&token.ID)
}

func (t *txStore) UpdateToken(ctx context.Context, token model.Token) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE tokens
		SET owner = $2, token_value = $3::numeric, package_id = $4, status = $5, updated_at = now()
		WHERE id = $1
	`, token.ID, token.Owner, token.TokenValue, token.PackageID, string(token.Status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *txStore) FindWalletByAddress(ctx context.Context, address string) (model.Wallet, error) {
	var wallet model.Wallet
	err := t.q.QueryRow(ctx, `
		SELECT id, address, user_id FROM wallets WHERE lower(address) = lower($1)
	`, address).Scan(&wallet.ID, &wallet.Address, &wallet.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Wallet{}, store.ErrNotFound
		}
		return model.Wallet{}, err
	}
	return wallet, nil
}

func (t *txStore) FindReferralByUser(ctx context.Context, userID int64) (model.Referral, error) {
	var referral model.Referral
	err := t.q.QueryRow(ctx, `
		SELECT id, user_id, staked_value FROM referrals WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&referral.ID, &referral.UserID, &referral.StakedValue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Referral{}, store.ErrNotFound
		}
		return model.Referral{}, err
	}
	return referral, nil
}

func (t *txStore) UpdateReferralStakedValue(ctx context.Context, referralID int64, stakedValue int64) error {
	tag, err := t.q.Exec(ctx, `UPDATE referrals SET staked_value = $2 WHERE id = $1`, referralID, stakedValue)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *txStore) CreateClaimedReward(ctx context.Context, record *model.ClaimedRewardRecord) error {
	return t.q.QueryRow(ctx, `
		INSERT INTO claimed_rewards (user_id, fund_id, chain, reward_currency, balance, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, now())
		RETURNING id, created_at
	`,
		record.UserID,
		record.FundID,
		record.Chain,
		record.RewardCurrency,
		record.Balance,
	).Scan(&record.ID, &record.CreatedAt)
}

// InsertFund seeds a fund and its packages, assigning their IDs.
func (s *Store) InsertFund(ctx context.Context, fund *model.Fund) error {
	return s.WithinTx(ctx, func(tx store.Tx) error {
		q := tx.(*txStore).q
		if err := q.QueryRow(ctx, `
			INSERT INTO funds (chain, base_currency, sft_address, vault_address, created_at)
			VALUES ($1, $2, $3, $4, now())
			RETURNING id
		`, fund.Chain, fund.BaseCurrency, fund.SFTAddress, fund.VaultAddress).Scan(&fund.ID); err != nil {
			return fmt.Errorf("insert fund: %w", err)
		}

		if len(fund.DefaultPackages) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for i := range fund.DefaultPackages {
			pkg := &fund.DefaultPackages[i]
			batch.Queue(`
				INSERT INTO packages (fund_id, package_id, name) VALUES ($1, $2, $3) RETURNING id
			`, fund.ID, pkg.PackageID, pkg.Name).QueryRow(func(row pgx.Row) error {
				return row.Scan(&pkg.ID)
			})
		}
		return q.(pgx.Tx).SendBatch(ctx, batch).Close()
	})
}

var (
	_ store.Store           = (*Store)(nil)
	_ store.EarningRecorder = (*Store)(nil)
)
