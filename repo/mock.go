package repo

import (
	"math/rand"
	"os"
	"path"
	"strconv"
)

// MockDB returns an in-memory sqlite db with the schema migrated.
func MockDB() (Database, error) {
	db, err := NewMemoryDB()
	if err != nil {
		return nil, err
	}
	if err := autoMigrateDatabase(db); err != nil {
		return nil, err
	}
	return db, nil
}

// MockRepo returns a repo which uses a tmp data directory
// and in-memory database.
func MockRepo() (*Repo, error) {
	n := rand.Intn(1000000)
	dataDir := path.Join(os.TempDir(), "storyagent-test", strconv.Itoa(n))
	return newRepo(dataDir, true)
}
