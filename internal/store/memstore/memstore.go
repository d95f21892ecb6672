// Package memstore is an in-memory store.Store used by tests and dry runs.
package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"sftsync/internal/model"
	"sftsync/internal/store"
)

// Store keeps the domain model in memory. WithinTx works on a copy of the
// state and swaps it in on success, so a failed callback leaves no trace.
type Store struct {
	mu       sync.Mutex
	st       state
	now      func() time.Time
	failures map[string]error
	locks    map[string]time.Time
}

type state struct {
	nextID    int64
	funds     []model.Fund
	tokens    []model.Token
	wallets   []model.Wallet
	referrals []model.Referral
	eventLogs []model.EventLogRecord
	claimed   []model.ClaimedRewardRecord
	earnings  []model.EarningRecord
	runLogs   []model.SyncRunLog
}

func (s state) clone() state {
	out := s
	out.funds = append([]model.Fund(nil), s.funds...)
	out.tokens = append([]model.Token(nil), s.tokens...)
	out.wallets = append([]model.Wallet(nil), s.wallets...)
	out.referrals = append([]model.Referral(nil), s.referrals...)
	out.eventLogs = append([]model.EventLogRecord(nil), s.eventLogs...)
	out.claimed = append([]model.ClaimedRewardRecord(nil), s.claimed...)
	out.earnings = append([]model.EarningRecord(nil), s.earnings...)
	out.runLogs = append([]model.SyncRunLog(nil), s.runLogs...)
	return out
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// New returns an empty store.
func New() *Store {
	return &Store{
		now:      time.Now,
		failures: make(map[string]error),
		locks:    make(map[string]time.Time),
	}
}

// SetClock overrides the time source used for CreatedAt stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// FailOn makes the named Tx operation (e.g. "UpdateToken") return err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	s.failures[op] = err
	s.mu.Unlock()
}

// AddFund seeds a fund and returns it with its ID assigned.
func (s *Store) AddFund(fund model.Fund) model.Fund {
	s.mu.Lock()
	defer s.mu.Unlock()
	fund.ID = s.st.id()
	for i := range fund.DefaultPackages {
		if fund.DefaultPackages[i].ID == 0 {
			fund.DefaultPackages[i].ID = s.st.id()
		}
	}
	s.st.funds = append(s.st.funds, fund)
	return fund
}

// AddToken seeds a token.
func (s *Store) AddToken(token model.Token) model.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	token.ID = s.st.id()
	s.st.tokens = append(s.st.tokens, token)
	return token
}

// AddWallet seeds a wallet.
func (s *Store) AddWallet(wallet model.Wallet) model.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallet.ID = s.st.id()
	s.st.wallets = append(s.st.wallets, wallet)
	return wallet
}

// AddReferral seeds a referral.
func (s *Store) AddReferral(referral model.Referral) model.Referral {
	s.mu.Lock()
	defer s.mu.Unlock()
	referral.ID = s.st.id()
	s.st.referrals = append(s.st.referrals, referral)
	return referral
}

// AddRunLog seeds a run log as-is, keeping its CreatedAt.
func (s *Store) AddRunLog(run model.SyncRunLog) model.SyncRunLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.ID = s.st.id()
	s.st.runLogs = append(s.st.runLogs, run)
	return run
}

// Tokens returns a snapshot of all tokens.
func (s *Store) Tokens() []model.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Token(nil), s.st.tokens...)
}

// Token looks up a token by contract and token id.
func (s *Store) Token(contractAddress, tokenID string) (model.Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.st.findToken(contractAddress, tokenID)
	if idx < 0 {
		return model.Token{}, false
	}
	return s.st.tokens[idx], true
}

// Referral returns the referral owned by userID.
func (s *Store) Referral(userID int64) (model.Referral, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, referral := range s.st.referrals {
		if referral.UserID == userID {
			return referral, true
		}
	}
	return model.Referral{}, false
}

// EventLogs returns event log rows in creation order.
func (s *Store) EventLogs() []model.EventLogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.EventLogRecord(nil), s.st.eventLogs...)
}

// RunLogs returns run logs in creation order.
func (s *Store) RunLogs() []model.SyncRunLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SyncRunLog(nil), s.st.runLogs...)
}

// ClaimedRewards returns claimed reward rows in creation order.
func (s *Store) ClaimedRewards() []model.ClaimedRewardRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ClaimedRewardRecord(nil), s.st.claimed...)
}

// EarningRecords returns recorded earnings in order.
func (s *Store) EarningRecords() []model.EarningRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.EarningRecord(nil), s.st.earnings...)
}

// ListFunds implements store.Store.
func (s *Store) ListFunds(context.Context) ([]model.Fund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Fund, 0, len(s.st.funds))
	for _, fund := range s.st.funds {
		fund.DefaultPackages = append([]model.Package(nil), fund.DefaultPackages...)
		out = append(out, fund)
	}
	return out, nil
}

// LatestEventLog implements store.Store.
func (s *Store) LatestEventLog(context.Context) (model.EventLogRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest model.EventLogRecord
	found := false
	for _, record := range s.st.eventLogs {
		if !found || after(record, latest) {
			latest = record
			found = true
		}
	}
	return latest, found, nil
}

func after(a, b model.EventLogRecord) bool {
	if a.BlockNumber != b.BlockNumber {
		return a.BlockNumber > b.BlockNumber
	}
	if a.LogIndex != b.LogIndex {
		return a.LogIndex > b.LogIndex
	}
	return a.ID > b.ID
}

// DeleteRunLogs implements store.Store.
func (s *Store) DeleteRunLogs(_ context.Context, filter store.RunLogFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.st.runLogs[:0]
	var deleted int64
	for _, run := range s.st.runLogs {
		if run.Trigger == filter.Trigger && run.Status == filter.Status && run.CreatedAt.Before(filter.Before) {
			deleted++
			continue
		}
		kept = append(kept, run)
	}
	s.st.runLogs = kept
	return deleted, nil
}

// CreateRunLog implements store.Store.
func (s *Store) CreateRunLog(_ context.Context, run *model.SyncRunLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CreateRunLog"); err != nil {
		return err
	}
	run.ID = s.st.id()
	run.CreatedAt = s.now()
	s.st.runLogs = append(s.st.runLogs, *run)
	return nil
}

// WithinTx implements store.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := &txState{owner: s, st: s.st.clone()}
	if err := fn(work); err != nil {
		return err
	}
	s.st = work.st
	return nil
}

// LogEarningRecord implements store.EarningRecorder.
func (s *Store) LogEarningRecord(_ context.Context, record model.EarningRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("LogEarningRecord"); err != nil {
		return err
	}
	s.st.earnings = append(s.st.earnings, record)
	return nil
}

// Acquire implements store.Locker.
func (s *Store) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expires, held := s.locks[key]; held && (ttl <= 0 || s.now().Before(expires)) {
		return false, nil
	}
	s.locks[key] = s.now().Add(ttl)
	return true, nil
}

// Release implements store.Locker.
func (s *Store) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.locks, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) failure(op string) error {
	if err, ok := s.failures[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type txState struct {
	owner *Store
	st    state
}

func (t *txState) CreateEventLog(_ context.Context, record *model.EventLogRecord) error {
	if err := t.owner.failure("CreateEventLog"); err != nil {
		return err
	}
	record.ID = t.st.id()
	record.CreatedAt = t.owner.now()
	t.st.eventLogs = append(t.st.eventLogs, *record)
	return nil
}

func (t *txState) FindToken(_ context.Context, contractAddress, tokenID string) (model.Token, error) {
	idx := t.st.findToken(contractAddress, tokenID)
	if idx < 0 {
		return model.Token{}, store.ErrNotFound
	}
	return t.st.tokens[idx], nil
}

func (t *txState) CreateToken(_ context.Context, token *model.Token) error {
	if err := t.owner.failure("CreateToken"); err != nil {
		return err
	}
	token.ID = t.st.id()
	t.st.tokens = append(t.st.tokens, *token)
	return nil
}

func (t *txState) UpdateToken(_ context.Context, token model.Token) error {
	if err := t.owner.failure("UpdateToken"); err != nil {
		return err
	}
	for i := range t.st.tokens {
		if t.st.tokens[i].ID == token.ID {
			t.st.tokens[i] = token
			return nil
		}
	}
	return store.ErrNotFound
}

func (t *txState) FindWalletByAddress(_ context.Context, address string) (model.Wallet, error) {
	for _, wallet := range t.st.wallets {
		if strings.EqualFold(wallet.Address, address) {
			return wallet, nil
		}
	}
	return model.Wallet{}, store.ErrNotFound
}

func (t *txState) FindReferralByUser(_ context.Context, userID int64) (model.Referral, error) {
	for _, referral := range t.st.referrals {
		if referral.UserID == userID {
			return referral, nil
		}
	}
	return model.Referral{}, store.ErrNotFound
}

func (t *txState) UpdateReferralStakedValue(_ context.Context, referralID int64, stakedValue int64) error {
	if err := t.owner.failure("UpdateReferralStakedValue"); err != nil {
		return err
	}
	for i := range t.st.referrals {
		if t.st.referrals[i].ID == referralID {
			t.st.referrals[i].StakedValue = stakedValue
			return nil
		}
	}
	return store.ErrNotFound
}

func (t *txState) CreateClaimedReward(_ context.Context, record *model.ClaimedRewardRecord) error {
	if err := t.owner.failure("CreateClaimedReward"); err != nil {
		return err
	}
	record.ID = t.st.id()
	record.CreatedAt = t.owner.now()
	t.st.claimed = append(t.st.claimed, *record)
	return nil
}

func (s *state) findToken(contractAddress, tokenID string) int {
	for i, token := range s.tokens {
		if strings.EqualFold(token.ContractAddress, contractAddress) && strings.EqualFold(token.TokenID, tokenID) {
			return i
		}
	}
	return -1
}
