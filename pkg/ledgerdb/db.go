// Package ledgerdb persists a token deployment as its genesis parameters plus
// a journal of accepted operations. The ledger is rebuilt by replaying the
// journal onto a freshly deployed token.
package ledgerdb

import (
	"context"
	"database/sql"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	oniontoken "storj.io/onion-token/pkg"
	"storj.io/onion-token/pkg/token"
)

const (
	dbVersion = 1
)

// Error is the class of database failures.
var Error = errs.Class("ledgerdb")

// ErrNotDeployed is returned when the database holds no genesis yet.
var ErrNotDeployed = errs.Class("token not deployed")

const schema = `
CREATE TABLE metadata (
	pk INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL,
	version INTEGER NOT NULL,
	name TEXT,
	symbol TEXT,
	decimals INTEGER,
	owner TEXT,
	cap TEXT,
	block_reward TEXT,
	deployed_at TIMESTAMP,
	PRIMARY KEY ( pk )
);
CREATE TABLE journal (
	seq INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL,
	kind TEXT NOT NULL,
	caller TEXT NOT NULL,
	from_account TEXT NOT NULL,
	to_account TEXT NOT NULL,
	amount TEXT NOT NULL,
	PRIMARY KEY ( seq )
);
`

// Genesis holds the parameters a token was deployed with. Cap and
// BlockReward are in base units.
type Genesis struct {
	Name        string
	Symbol      string
	Decimals    uint8
	Owner       common.Address
	Cap         *big.Int
	BlockReward *big.Int
	DeployedAt  time.Time
}

// deploy creates a ledger from the genesis. Empty names fall back to the
// token defaults.
func (g *Genesis) deploy() (*token.Ledger, error) {
	var opts []token.Option
	if g.Name != "" {
		opts = append(opts, token.WithName(g.Name))
	}
	if g.Symbol != "" {
		opts = append(opts, token.WithSymbol(g.Symbol))
	}
	return token.New(g.Owner, g.Cap, g.BlockReward, opts...)
}

// Metadata describes the database itself.
type Metadata struct {
	Version   int
	CreatedAt time.Time

	// Genesis is nil until the token is deployed.
	Genesis *Genesis
}

type DB struct {
	log *zap.Logger
	db  *sql.DB
	now func() time.Time
}

// NewDB creates a database at path. It fails if anything already exists
// there.
func NewDB(ctx context.Context, log *zap.Logger, path string) (*DB, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return nil, Error.New("database already exists at %q", path)
	case !os.IsNotExist(err):
		return nil, Error.Wrap(err)
	}
	if err := initDB(ctx, path); err != nil {
		return nil, err
	}

	return OpenDB(ctx, log, path, false)
}

// OpenInMemoryDB returns an empty database that lives until it is closed.
func OpenInMemoryDB(ctx context.Context, log *zap.Logger) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, Error.Wrap(err)
	}
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)

	db := newDB(log, sqlDB)
	if err := db.createSchema(ctx); err != nil {
		return nil, errs.Combine(err, sqlDB.Close())
	}
	mDbOpen.Inc()
	return db, nil
}

// OpenDB opens an existing database. Databases written by a newer version
// of this tool are refused.
func OpenDB(ctx context.Context, log *zap.Logger, path string, readOnly bool) (_ *DB, err error) {
	sqlDB, err := openDB(path, readOnly)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, sqlDB.Close())
		}
	}()

	var version int
	if err := sqlDB.QueryRowContext(ctx, `SELECT version FROM metadata`).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Error.New("database metadata is missing")
		}
		return nil, Error.Wrap(err)
	}

	switch {
	case version > dbVersion:
		// Database version is from a future tool. It is not safe to continue.
		return nil, Error.New("database version is in the future (%d); upgrade your tool (%d)", version, dbVersion)
	case version < dbVersion:
		return nil, Error.New("no migration from database version %d available", version)
	}

	log.Debug("Opened ledger database",
		zap.String("path", path),
		zap.Bool("read-only", readOnly),
		zap.Int("version", version),
	)
	mDbOpen.Inc()
	return newDB(log, sqlDB), nil
}

func newDB(log *zap.Logger, sqlDB *sql.DB) *DB {
	return &DB{
		log: log,
		db:  sqlDB,
		now: func() time.Time {
			// Row timestamps are for audit only. Nanosecond precision is overkill
			// and makes the output harder to read.
			return time.Now().UTC().Truncate(time.Millisecond)
		},
	}
}

func (db *DB) Close() error {
	mDbOpen.Dec()
	return Error.Wrap(db.db.Close())
}

// Metadata returns the database metadata including the genesis, if any.
func (db *DB) Metadata(ctx context.Context) (*Metadata, error) {
	var (
		md          Metadata
		name        sql.NullString
		symbol      sql.NullString
		decimals    sql.NullInt64
		owner       sql.NullString
		capacity    sql.NullString
		blockReward sql.NullString
		deployedAt  sql.NullTime
	)
	err := db.db.QueryRowContext(ctx, `
		SELECT version, created_at, name, symbol, decimals, owner, cap, block_reward, deployed_at
		FROM metadata`).Scan(
		&md.Version, &md.CreatedAt,
		&name, &symbol, &decimals, &owner, &capacity, &blockReward, &deployedAt,
	)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if !owner.Valid {
		return &md, nil
	}

	genesis := &Genesis{
		Name:       name.String,
		Symbol:     symbol.String,
		Decimals:   uint8(decimals.Int64),
		DeployedAt: deployedAt.Time,
	}
	if genesis.Owner, err = oniontoken.AddressFromString(owner.String); err != nil {
		return nil, Error.New("unable to convert genesis owner: %v", err)
	}
	if genesis.Cap, err = parseAmount(capacity.String); err != nil {
		return nil, Error.New("unable to convert genesis cap: %v", err)
	}
	if genesis.BlockReward, err = parseAmount(blockReward.String); err != nil {
		return nil, Error.New("unable to convert genesis block reward: %v", err)
	}
	md.Genesis = genesis
	return &md, nil
}

// Deploy records the genesis of the token. The parameters are validated by
// deploying a ledger with them first. A database can only be deployed once.
func (db *DB) Deploy(ctx context.Context, genesis Genesis) (*token.Ledger, error) {
	ledger, err := genesis.deploy()
	if err != nil {
		return nil, err
	}

	res, err := db.db.ExecContext(ctx, `
		UPDATE metadata
		SET name = ?, symbol = ?, decimals = ?, owner = ?, cap = ?, block_reward = ?, deployed_at = ?
		WHERE owner IS NULL`,
		ledger.Name(), ledger.Symbol(), int(ledger.Decimals()),
		ledger.Owner().String(), ledger.Cap().String(), ledger.BlockReward().String(),
		db.now(),
	)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if n == 0 {
		return nil, Error.New("token is already deployed")
	}

	db.log.Info("Deployed token",
		zap.String("name", ledger.Name()),
		zap.String("symbol", ledger.Symbol()),
		zap.Stringer("owner", ledger.Owner()),
		zap.String("cap", ledger.Cap().String()),
	)
	return ledger, nil
}

// Genesis deploys a fresh ledger from the recorded genesis without replaying
// the journal.
func (db *DB) Genesis(ctx context.Context) (*token.Ledger, *Genesis, error) {
	md, err := db.Metadata(ctx)
	if err != nil {
		return nil, nil, err
	}
	if md.Genesis == nil {
		return nil, nil, ErrNotDeployed.New("database has no genesis")
	}
	ledger, err := md.Genesis.deploy()
	if err != nil {
		return nil, nil, Error.New("recorded genesis is invalid: %v", err)
	}
	return ledger, md.Genesis, nil
}

// Ledger rebuilds the ledger by replaying every journal entry onto the
// genesis.
func (db *DB) Ledger(ctx context.Context) (*token.Ledger, error) {
	start := time.Now()
	ledger, _, err := db.Genesis(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := db.Entries(ctx)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if err := entry.Apply(ledger); err != nil {
			return nil, Error.New("journal entry %d (%s) does not replay: %v", entry.Seq, entry.Kind, err)
		}
	}
	mReplayDuration.Observe(time.Since(start).Seconds())
	db.log.Debug("Replayed journal", zap.Int("entries", len(entries)), zap.Duration("took", time.Since(start)))
	return ledger, nil
}

// Apply performs op against ledger and appends it to the journal. The
// ledger must be the one returned by Ledger or Deploy for this database. A
// rejected operation leaves both the ledger and the journal unchanged.
//
// If the commit itself fails after the ledger accepted the operation, the
// ledger is ahead of the journal and must be reloaded.
func (db *DB) Apply(ctx context.Context, ledger *token.Ledger, op Op) (_ *Entry, err error) {
	if !op.Kind.valid() {
		return nil, Error.New("unknown operation kind %q", op.Kind)
	}
	if op.Amount == nil {
		return nil, token.ErrInvalidAmount.New("amount is missing")
	}

	entry := &Entry{Op: op, CreatedAt: db.now()}
	defer func() {
		result := "applied"
		if err != nil {
			result = "rejected"
		}
		mOperations.WithLabelValues(string(op.Kind), result).Inc()
	}()

	err = db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO journal (created_at, kind, caller, from_account, to_account, amount)
			VALUES (?, ?, ?, ?, ?, ?)`,
			entry.CreatedAt, string(op.Kind),
			op.Caller.String(), op.From.String(), op.To.String(), op.Amount.String(),
		)
		if err != nil {
			return Error.Wrap(err)
		}
		if entry.Seq, err = res.LastInsertId(); err != nil {
			return Error.Wrap(err)
		}
		return op.Apply(ledger)
	})
	if err != nil {
		db.log.Debug("Rejected operation", zap.String("kind", string(op.Kind)), zap.Error(err))
		return nil, err
	}

	db.log.Debug("Applied operation",
		zap.Int64("seq", entry.Seq),
		zap.String("kind", string(op.Kind)),
		zap.Stringer("caller", op.Caller),
		zap.Stringer("from", op.From),
		zap.Stringer("to", op.To),
		zap.String("amount", op.Amount.String()),
	)
	return entry, nil
}

// Entries returns the journal in application order.
func (db *DB) Entries(ctx context.Context) (_ []*Entry, err error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT seq, created_at, kind, caller, from_account, to_account, amount
		FROM journal ORDER BY seq`)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	var entries []*Entry
	for rows.Next() {
		var (
			entry                  Entry
			kind                   string
			caller, from, to, amnt string
		)
		if err := rows.Scan(&entry.Seq, &entry.CreatedAt, &kind, &caller, &from, &to, &amnt); err != nil {
			return nil, Error.Wrap(err)
		}
		if err := entry.fromRow(kind, caller, from, to, amnt); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, Error.Wrap(rows.Err())
}

func (e *Entry) fromRow(kind, caller, from, to, amount string) (err error) {
	e.Kind = Kind(kind)
	if !e.Kind.valid() {
		return Error.New("unknown kind %q for journal entry %d", kind, e.Seq)
	}
	if e.Caller, err = oniontoken.AddressFromString(caller); err != nil {
		return Error.New("unable to convert caller for journal entry %d: %v", e.Seq, err)
	}
	if e.From, err = oniontoken.AddressFromString(from); err != nil {
		return Error.New("unable to convert from for journal entry %d: %v", e.Seq, err)
	}
	if e.To, err = oniontoken.AddressFromString(to); err != nil {
		return Error.New("unable to convert to for journal entry %d: %v", e.Seq, err)
	}
	if e.Amount, err = parseAmount(amount); err != nil {
		return Error.New("unable to convert amount for journal entry %d: %v", e.Seq, err)
	}
	return nil
}

type Stats struct {
	Entries  int64
	ByKind   map[Kind]int64
	Accounts int64
	First    time.Time
	Last     time.Time
}

// Stats summarizes the journal.
func (db *DB) Stats(ctx context.Context) (_ *Stats, err error) {
	stats := &Stats{ByKind: make(map[Kind]int64)}

	rows, err := db.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM journal GROUP BY kind`)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()
	for rows.Next() {
		var (
			kind  string
			count int64
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, Error.Wrap(err)
		}
		stats.ByKind[Kind(kind)] = count
		stats.Entries += count
	}
	if err := rows.Err(); err != nil {
		return nil, Error.Wrap(err)
	}

	if err := db.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT from_account AS account FROM journal
			UNION SELECT to_account FROM journal
		)`).Scan(&stats.Accounts); err != nil {
		return nil, Error.Wrap(err)
	}

	if stats.Entries > 0 {
		if err := db.db.QueryRowContext(ctx,
			`SELECT created_at FROM journal ORDER BY seq ASC LIMIT 1`).Scan(&stats.First); err != nil {
			return nil, Error.Wrap(err)
		}
		if err := db.db.QueryRowContext(ctx,
			`SELECT created_at FROM journal ORDER BY seq DESC LIMIT 1`).Scan(&stats.Last); err != nil {
			return nil, Error.Wrap(err)
		}
	}
	return stats, nil
}

func (db *DB) withTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() {
		if err == nil {
			err = Error.Wrap(tx.Commit())
		} else {
			err = errs.Combine(err, Error.Wrap(ignoreDone(tx.Rollback())))
		}
	}()
	return fn(tx)
}

func (db *DB) createSchema(ctx context.Context) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return Error.Wrap(err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO metadata (pk, created_at, version) VALUES (1, ?, ?)`,
			db.now(), dbVersion)
		return Error.Wrap(err)
	})
}

// initDB initializes the database in a temporary file and renames it into
// place. Leftovers from an interrupted initialization are discarded. It does
// not protect against concurrent initialization.
func initDB(ctx context.Context, path string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Error.Wrap(err)
	}
	tmpPath := path + ".tmp"
	// A crash during a previous initialization may have left these behind.
	for _, stale := range []string{tmpPath, tmpPath + "-wal", tmpPath + "-shm"} {
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			return Error.Wrap(err)
		}
	}
	sqlDB, err := openDB(tmpPath, false)
	if err != nil {
		return err
	}
	db := newDB(zap.NewNop(), sqlDB)
	if err := db.createSchema(ctx); err != nil {
		return errs.Combine(err, sqlDB.Close())
	}
	if err := sqlDB.Close(); err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(os.Rename(tmpPath, path))
}

func openDB(path string, readOnly bool) (*sql.DB, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	dbURI := "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000"
	if readOnly {
		dbURI += "&mode=ro"
	}
	db, err := sql.Open("sqlite3", dbURI)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return db, nil
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errs.New("%q is not a base unit amount", s)
	}
	return amount, nil
}

func ignoreDone(err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
