package telemetry

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/battctl/internal/errors"
	"codeberg.org/mutker/battctl/internal/logger"

	_ "github.com/mattn/go-sqlite3"
)

type sqliteRepository struct {
	db            *sql.DB
	cfg           Config
	mu            sync.Mutex
	buffer        []*Snapshot
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

func NewRepository(cfg Config) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	// WAL keeps single-row inserts from stalling the control loop on a
	// slow eMMC.
	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Msg("Telemetry repository initialized")

	repo := &sqliteRepository{
		db:            db,
		cfg:           cfg,
		buffer:        make([]*Snapshot, 0, cfg.BatchSize),
		flushTicker:   time.NewTicker(time.Duration(cfg.BatchTimeout) * time.Second),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}
	go repo.flusher()

	return repo, nil
}

// A failing flush keeps its snapshots buffered for the next attempt; the
// cap keeps a broken disk from growing the buffer without bound.
const bufferCapFactor = 8

func (r *sqliteRepository) Record(snapshot *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, snapshot)

	if len(r.buffer) >= r.cfg.BatchSize {
		if err := r.flush(); err != nil {
			r.trimBuffer()
			return err
		}
	}

	return nil
}

func (r *sqliteRepository) Close() error {
	errFactory := errors.New()

	close(r.shutdownChan)
	r.flushTicker.Stop()
	<-r.flushDoneChan

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		logger.Debug().Err(err).Msg("WAL checkpoint failed on close")
	}

	if err := r.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	return nil
}

func (r *sqliteRepository) flusher() {
	defer close(r.flushDoneChan)

	for {
		select {
		case <-r.flushTicker.C:
			r.mu.Lock()
			if err := r.flush(); err != nil {
				logger.Debug().Err(err).Msg("Periodic telemetry flush failed")
				r.trimBuffer()
			}
			r.mu.Unlock()
		case <-r.shutdownChan:
			r.mu.Lock()
			if err := r.flush(); err != nil {
				logger.Debug().Err(err).Msg("Final telemetry flush failed")
			}
			r.mu.Unlock()
			return
		}
	}
}

// trimBuffer drops the oldest snapshots once failed flushes have let the
// buffer outgrow its cap. Callers hold the mutex.
func (r *sqliteRepository) trimBuffer() {
	limit := r.cfg.BatchSize * bufferCapFactor
	if len(r.buffer) <= limit {
		return
	}

	dropped := len(r.buffer) - limit
	r.buffer = append(r.buffer[:0], r.buffer[dropped:]...)
	logger.Warn().Int("dropped", dropped).Msg("Telemetry buffer over capacity, oldest snapshots dropped")
}

// flush writes the buffered snapshots in one transaction. Callers hold the
// mutex.
func (r *sqliteRepository) flush() error {
	if len(r.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := r.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.Prepare(insertCycleSQL)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Debug().Err(rbErr).Msg("Failed to roll back telemetry transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, snapshot := range r.buffer {
		_, err := stmt.Exec(
			snapshot.Timestamp.Unix(),
			snapshot.Phone.Voltage,
			snapshot.Phone.Current,
			snapshot.Phone.Capacity,
			snapshot.Phone.Status,
			snapshot.Keyboard.Voltage,
			snapshot.Keyboard.Current,
			snapshot.Keyboard.Capacity,
			snapshot.Keyboard.Status,
			snapshot.Control.Action,
			snapshot.Control.Limit,
			snapshot.Control.Target,
			snapshot.Control.Direction,
		)
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Debug().Err(rbErr).Msg("Failed to roll back telemetry transaction")
			}
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	logger.Debug().Int("records", len(r.buffer)).Msg("Flushed telemetry to database")
	r.buffer = r.buffer[:0]

	return nil
}
