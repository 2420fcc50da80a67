package vm

import (
	"crypto/sha256"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"
)

// ExecutableCache is a content-addressed, disk-backed cache of saved
// executable byte streams, keyed by the SHA-256 hash of their Save
// output — the same addressing scheme chazu's content store uses for
// compiled methods, generalized here from an in-process map to a
// SQLite-backed table so the cache survives process restarts.
type ExecutableCache struct {
	db    *sql.DB
	group singleflight.Group
}

// OpenExecutableCache opens (creating if necessary) a SQLite-backed
// cache at path. An in-memory cache can be obtained with path ":memory:".
func OpenExecutableCache(path string) (*ExecutableCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("vm: opening executable cache at %s: %w", path, err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS executables (
	hash    TEXT PRIMARY KEY,
	entry_id TEXT NOT NULL,
	data    BLOB NOT NULL
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("vm: initializing executable cache schema: %w", err)
	}
	return &ExecutableCache{db: db}, nil
}

// Close releases the cache's underlying database handle.
func (c *ExecutableCache) Close() error {
	return c.db.Close()
}

// ContentHash returns the SHA-256 of data, the cache key Put/Get use.
func ContentHash(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// Put stores the saved byte stream of exec under its content hash,
// stamping the row with a fresh opaque entry id, and returns the hash.
func (c *ExecutableCache) Put(exec *Executable) ([32]byte, error) {
	data := exec.Save()
	hash := ContentHash(data)
	hashHex := fmt.Sprintf("%x", hash)

	_, err := c.db.Exec(
		`INSERT INTO executables (hash, entry_id, data) VALUES (?, ?, ?)
		 ON CONFLICT(hash) DO NOTHING`,
		hashHex, uuid.New().String(), data,
	)
	if err != nil {
		return hash, fmt.Errorf("vm: caching executable %x: %w", hash, err)
	}
	return hash, nil
}

// Get loads the executable stored under hash, binding it to lib. If two
// callers race to load the same hash, only one database read runs and
// both receive its bytes via singleflight; each caller then decodes
// those bytes itself against its own lib.
func (c *ExecutableCache) Get(hash [32]byte, lib OpLibrary) (*Executable, error) {
	hashHex := fmt.Sprintf("%x", hash)
	v, err, _ := c.group.Do(hashHex, func() (interface{}, error) {
		var data []byte
		row := c.db.QueryRow(`SELECT data FROM executables WHERE hash = ?`, hashHex)
		if err := row.Scan(&data); err != nil {
			if err == sql.ErrNoRows {
				return nil, fmt.Errorf("vm: executable cache: no entry for hash %s", hashHex)
			}
			return nil, fmt.Errorf("vm: reading cached executable %s: %w", hashHex, err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return Load(v.([]byte), lib)
}
