// Package store is the durable persistence layer for snapshots, segments,
// blocks and the project catalog.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"  // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib"  // PostgreSQL driver
	_ "modernc.org/sqlite"              // SQLite driver

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

// StoreManagerImpl manages the per-concern store instances.
type StoreManagerImpl struct {
	sync.RWMutex // Protects the store pointers during initialization
	snapshots    contract.SnapshotStore
	segments     contract.SegmentStore
	blocks       contract.BlockStore
	catalog      contract.ProjectCatalog
	calendar     contract.CalendarLookup
}

var _ contract.StoreManager = &StoreManagerImpl{} // Compile-time check

// Snapshots returns the snapshot store.
func (mgr *StoreManagerImpl) Snapshots() contract.SnapshotStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.snapshots
}

// Segments returns the segment store.
func (mgr *StoreManagerImpl) Segments() contract.SegmentStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.segments
}

// Blocks returns the block store.
func (mgr *StoreManagerImpl) Blocks() contract.BlockStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.blocks
}

// Catalog returns the project catalog.
func (mgr *StoreManagerImpl) Catalog() contract.ProjectCatalog {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.catalog
}

// Calendar returns the calendar lookup, possibly nil.
func (mgr *StoreManagerImpl) Calendar() contract.CalendarLookup {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.calendar
}

// Global Manager instance for main logic.
var (
	Manager   = &StoreManagerImpl{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// InitStores initializes the global store manager. backend can be
// NoneBackend to run fully in memory (nothing persists between runs).
func InitStores(backend schema.DatabaseBackend, connStr string) error {
	var initErr error

	initOnce.Do(func() {
		// This function body runs exactly once, even with concurrent calls.
		if backend == schema.NoneBackend || backend == "" {
			mem := NewMemoryStores()
			Manager.snapshots = mem.Snapshots()
			Manager.segments = mem.Segments()
			Manager.blocks = mem.Blocks()
			Manager.catalog = mem.Catalog()
			Manager.calendar = mem.Calendar()
			return
		}

		db, err := openDB(backend, connStr)
		if err != nil {
			initErr = fmt.Errorf("failed to initialize %s store: %w", backend, err)
			return
		}
		if err := createTables(db, backend); err != nil {
			_ = db.Close()
			initErr = fmt.Errorf("failed to create store tables: %w", err)
			return
		}

		Manager.snapshots = &SnapshotStoreImpl{db: db, backend: backend}
		Manager.segments = &SegmentStoreImpl{db: db, backend: backend}
		Manager.blocks = &BlockStoreImpl{db: db, backend: backend, connStr: connStr}
		Manager.catalog = newCatalogStore(db, backend)
		Manager.calendar = &CalendarStoreImpl{db: db, backend: backend}
	})

	return initErr
}

// CloseStores should be called on application shutdown.
func CloseStores() { // called in main defer
	closeOnce.Do(func() {
		Manager.Lock()
		defer Manager.Unlock()
		// All SQL stores share one *sql.DB; closing one closes it.
		if Manager.snapshots != nil {
			_ = Manager.snapshots.Close()
		}
	})
}

// openDB opens and pings the backing database for the given backend.
func openDB(backend schema.DatabaseBackend, connStr string) (*sql.DB, error) {
	var db *sql.DB
	var err error

	switch backend {
	case schema.SQLiteBackend:
		dbPath := connStr
		if dbPath == "" {
			dbPath = contract.GetStoreDBFilePath()
		}
		db, err = sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite store at %q: %w. Ensure the directory is writable", dbPath, err)
		}
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)

	case schema.MySQLBackend:
		// connStr should be:
		// user:password@tcp(host:port)/dbname
		db, err = sql.Open("mysql", connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL store: %w. Check connection format: user:password@tcp(host:port)/dbname", err)
		}

	case schema.PostgreSQLBackend:
		// connStr should be:
		// host=localhost port=5432 user=postgres password=mysecretpassword dbname=postgres
		db, err = sql.Open("pgx", connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL store: %w. Check connection format: host=localhost port=5432 user=postgres dbname=mydb", err)
		}

	default:
		return nil, fmt.Errorf("unsupported store backend: %s. Must be sqlite, mysql, postgresql, or none", backend)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database. Check that the server is running and connection parameters are valid: %w", backend, err)
	}
	return db, nil
}

// ClearStore removes all persisted data for the specified backend.
// For SQLite, it deletes the database file.
// For SQL backends (MySQL/PostgreSQL), it drops the tables.
// For NoneBackend, it does nothing.
func ClearStore(backend schema.DatabaseBackend, dbFilePath, connStr string) error {
	switch backend {
	case schema.SQLiteBackend:
		if dbFilePath == "" {
			return fmt.Errorf("dbFilePath cannot be empty for SQLite backend")
		}
		// Remove the file; ignore if it doesn't exist
		if err := os.Remove(dbFilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove SQLite database file %s: %w", dbFilePath, err)
		}
		return nil

	case schema.MySQLBackend:
		return dropStoreTables("mysql", connStr)

	case schema.PostgreSQLBackend:
		return dropStoreTables("pgx", connStr)

	case schema.NoneBackend:
		return nil

	default:
		return fmt.Errorf("unsupported store backend for clearing: %s", backend)
	}
}

// dropStoreTables connects to the SQL database and drops every store table.
func dropStoreTables(driverName, connStr string) error {
	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s database: %w", driverName, err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping %s database: %w", driverName, err)
	}

	for _, table := range []string{snapshotsTable, segmentsTable, blocksTable, catalogTable, calendarTable} {
		query := fmt.Sprintf("DROP TABLE IF EXISTS %s", table)
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}

// rebind converts "?" placeholders into the backend's parameter style.
// MySQL and SQLite use "?" as-is; PostgreSQL needs "$1".."$n".
func rebind(backend schema.DatabaseBackend, query string) string {
	if backend != schema.PostgreSQLBackend {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
