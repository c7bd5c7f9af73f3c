package loyalty

import (
	"context"
	"errors"
	"fmt"
	"math"

	"communityhub/internal/database"
	"communityhub/internal/metrics"
	"communityhub/internal/pkg/keylock"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultSpendPerPoint int64 = 20000

// Ledger owns per-user loyalty accounts. Accounts change only through
// Accrue/AccrueTx, which serialize on the user key.
type Ledger struct {
	db            *gorm.DB
	table         *Table
	spendPerPoint int64
	locks         *keylock.Map
	log           *zap.Logger
}

func NewLedger(db *gorm.DB, table *Table, spendPerPoint int64, locks *keylock.Map, log *zap.Logger) *Ledger {
	if spendPerPoint <= 0 {
		spendPerPoint = DefaultSpendPerPoint
	}
	if locks == nil {
		locks = keylock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		db:            db,
		table:         table,
		spendPerPoint: spendPerPoint,
		locks:         locks,
		log:           log,
	}
}

func (l *Ledger) Table() *Table {
	return l.table
}

// LockUser takes the user's mutual-exclusion boundary.
func (l *Ledger) LockUser(userID int64) func() {
	return l.locks.Lock(fmt.Sprintf("user:%d", userID))
}

// PointsFor is floor(netAmount / spendPerPoint).
func (l *Ledger) PointsFor(netAmount int64) int64 {
	if netAmount <= 0 {
		return 0
	}
	return netAmount / l.spendPerPoint
}

// Accrue adds a completed spend to the user's account in its own transaction.
func (l *Ledger) Accrue(ctx context.Context, userID, netAmount int64) (*AccrualResult, error) {
	if err := validateAccrual(userID, netAmount); err != nil {
		return nil, err
	}

	unlock := l.LockUser(userID)
	defer unlock()

	var res *AccrualResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = l.AccrueTx(tx, userID, netAmount)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.Observe(res)
	return res, nil
}

// AccrueTx applies an accrual inside tx. The caller must hold LockUser and
// call Observe once tx has committed.
func (l *Ledger) AccrueTx(tx *gorm.DB, userID, netAmount int64) (*AccrualResult, error) {
	if err := validateAccrual(userID, netAmount); err != nil {
		return nil, err
	}

	var acct Account
	if err := getOrCreateAccountForUpdate(tx, userID, &acct); err != nil {
		return nil, err
	}
	if netAmount > math.MaxInt64-acct.CumulativeSpend {
		return nil, ErrSpendOverflow
	}

	before, err := l.table.TierFor(acct.CumulativeSpend)
	if err != nil {
		return nil, err
	}

	earned := l.PointsFor(netAmount)
	acct.CumulativeSpend += netAmount
	acct.PointBalance += earned

	if err := tx.Model(&Account{}).Where("user_id = ?", userID).Updates(map[string]any{
		"cumulative_spend": acct.CumulativeSpend,
		"point_balance":    acct.PointBalance,
	}).Error; err != nil {
		return nil, err
	}

	state, err := l.stateFor(acct)
	if err != nil {
		return nil, err
	}

	rec := Accrual{
		UserID:       userID,
		NetAmount:    netAmount,
		PointsEarned: earned,
		Tier:         state.Tier.Name,
	}
	if err := tx.Create(&rec).Error; err != nil {
		return nil, err
	}

	return &AccrualResult{
		State:        *state,
		PointsEarned: earned,
		PreviousTier: before.Name,
		TierChanged:  before.Name != state.Tier.Name,
	}, nil
}

// Observe logs and counts a committed accrual.
func (l *Ledger) Observe(res *AccrualResult) {
	if res == nil {
		return
	}
	metrics.PointsAwarded.Add(float64(res.PointsEarned))
	if res.TierChanged {
		metrics.TierPromotions.WithLabelValues(res.Tier.Name).Inc()
		l.log.Info("loyalty tier changed",
			zap.Int64("user_id", res.UserID),
			zap.String("from", res.PreviousTier),
			zap.String("to", res.Tier.Name),
			zap.Int64("cumulative_spend", res.CumulativeSpend),
		)
	}
}

func (l *Ledger) State(ctx context.Context, userID int64) (*State, error) {
	if userID <= 0 {
		return nil, ErrInvalidUser
	}

	var acct Account
	if err := l.db.WithContext(ctx).Where("user_id = ?", userID).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return l.stateFor(acct)
}

// PointValue is the currency value of one point at the user's current tier.
func (l *Ledger) PointValue(ctx context.Context, userID int64) (int64, error) {
	st, err := l.State(ctx, userID)
	if err != nil {
		return 0, err
	}
	return st.PointValue, nil
}

func (l *Ledger) ProgressToNextTier(ctx context.Context, userID int64) (float64, error) {
	st, err := l.State(ctx, userID)
	if err != nil {
		return 0, err
	}
	return st.Progress, nil
}

// History lists the user's accruals, newest first.
func (l *Ledger) History(ctx context.Context, userID int64, limit int) ([]Accrual, error) {
	if userID <= 0 {
		return nil, ErrInvalidUser
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var out []Accrual
	if err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Ledger) stateFor(acct Account) (*State, error) {
	tier, err := l.table.TierFor(acct.CumulativeSpend)
	if err != nil {
		return nil, err
	}
	progress, err := l.table.Progress(acct.CumulativeSpend)
	if err != nil {
		return nil, err
	}

	st := &State{
		UserID:          acct.UserID,
		CumulativeSpend: acct.CumulativeSpend,
		Points:          acct.PointBalance,
		Tier:            tier,
		PointValue:      tier.PointValue,
		PointsWorth:     acct.PointBalance * tier.PointValue,
		Progress:        progress,
	}
	if next, ok := l.table.Next(tier.Name); ok {
		st.NextTier = &next
	}
	return st, nil
}

func validateAccrual(userID, netAmount int64) error {
	if userID <= 0 {
		return ErrInvalidUser
	}
	if netAmount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func getOrCreateAccountForUpdate(tx *gorm.DB, userID int64, acct *Account) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(acct).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	// A concurrent writer on another instance may create the row first;
	// roll back to the savepoint so the PostgreSQL transaction stays usable.
	*acct = Account{UserID: userID}
	if err := tx.SavePoint("create_account").Error; err != nil {
		return err
	}
	if err := tx.Create(acct).Error; err != nil {
		if !database.IsUniqueViolation(err) {
			return err
		}
		if err := tx.RollbackTo("create_account").Error; err != nil {
			return err
		}
		return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(acct).Error
	}
	return nil
}
