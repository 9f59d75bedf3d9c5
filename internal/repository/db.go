package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cradoe/vestra/assets"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/lib/pq"
)

const defaultTimeout = 3 * time.Second

// Database interface defines available repositories
type Database interface {
	Profile() ProfileRepository
	Activity() ActivityRepository
	KYC() KycRepository
	Withdrawal() WithdrawalRepository
	Transaction() TransactionRepository
	InvestmentPlan() InvestmentPlanRepository
	Investment() InvestmentRepository
	Stats() StatsRepository

	Ping(ctx context.Context) error
	Close() error
}

// DatabaseImpl implements the Database interface
type DatabaseImpl struct {
	db                 *sqlx.DB
	profileRepo        ProfileRepository
	activityRepo       ActivityRepository
	kycRepo            KycRepository
	withdrawalRepo     WithdrawalRepository
	transactionRepo    TransactionRepository
	investmentPlanRepo InvestmentPlanRepository
	investmentRepo     InvestmentRepository
	statsRepo          StatsRepository

	mu sync.Mutex
}

// New initializes a database connection and runs migrations if enabled
func New(dsn string, automigrate bool) (Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", "postgres://"+dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	if automigrate {
		iofsDriver, err := iofs.New(assets.EmbeddedFiles, "migrations")
		if err != nil {
			return nil, err
		}

		migrator, err := migrate.NewWithSourceInstance("iofs", iofsDriver, "postgres://"+dsn)
		if err != nil {
			return nil, err
		}

		if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, err
		}
	}

	return NewWithDB(db), nil
}

// NewWithDB wraps an existing connection pool.
func NewWithDB(db *sqlx.DB) *DatabaseImpl {
	return &DatabaseImpl{db: db}
}

func (d *DatabaseImpl) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DatabaseImpl) Close() error {
	return d.db.Close()
}

func (d *DatabaseImpl) Profile() ProfileRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.profileRepo == nil {
		d.profileRepo = NewProfileRepository(d.db)
	}
	return d.profileRepo
}

func (d *DatabaseImpl) Activity() ActivityRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.activityRepo == nil {
		d.activityRepo = NewActivityRepository(d.db)
	}
	return d.activityRepo
}

func (d *DatabaseImpl) KYC() KycRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.kycRepo == nil {
		d.kycRepo = NewKycRepository(d.db)
	}
	return d.kycRepo
}

func (d *DatabaseImpl) Withdrawal() WithdrawalRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.withdrawalRepo == nil {
		d.withdrawalRepo = NewWithdrawalRepository(d.db)
	}
	return d.withdrawalRepo
}

func (d *DatabaseImpl) Transaction() TransactionRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.transactionRepo == nil {
		d.transactionRepo = NewTransactionRepository(d.db)
	}
	return d.transactionRepo
}

func (d *DatabaseImpl) InvestmentPlan() InvestmentPlanRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.investmentPlanRepo == nil {
		d.investmentPlanRepo = NewInvestmentPlanRepository(d.db)
	}
	return d.investmentPlanRepo
}

func (d *DatabaseImpl) Investment() InvestmentRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.investmentRepo == nil {
		d.investmentRepo = NewInvestmentRepository(d.db)
	}
	return d.investmentRepo
}

func (d *DatabaseImpl) Stats() StatsRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.statsRepo == nil {
		d.statsRepo = NewStatsRepository(d.db)
	}
	return d.statsRepo
}

// runInTx executes fn inside a single transaction. Any error from fn rolls
// back every statement fn issued.
func runInTx(db *sqlx.DB, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	return tx.Commit()
}
