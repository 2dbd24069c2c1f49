package repo

import (
	"io/ioutil"
	"os"
	"path"
	"strconv"

	"github.com/CarliMargareta/storyagent/models"
	"github.com/jinzhu/gorm"
	"github.com/op/go-logging"
)

const (
	// defaultRepoVersion is the current repo version used for migrations.
	defaultRepoVersion = 0

	// versionFileName is the name of the version file.
	versionFileName = "version"
)

var log = logging.MustGetLogger("REPO")

// Repo is a representation of a storyagent data directory.
// In this we store:
// - The storyagent.conf file
// - The log directory
// - The agent database
type Repo struct {
	db      Database
	dataDir string
}

// NewRepo returns a new Repo for the given data directory. It will
// be initialized if it is not already.
func NewRepo(dataDir string) (*Repo, error) {
	return newRepo(dataDir, false)
}

// DB returns the database implementation.
func (r *Repo) DB() Database {
	return r.db
}

// DataDir returns the data directory associated with this repo.
func (r *Repo) DataDir() string {
	return r.dataDir
}

// Close will close the repo and associated databases.
func (r *Repo) Close() error {
	return r.db.Close()
}

// DestroyRepo deletes the entire directory. Do NOT use this unless you are
// positive you want to wipe all data.
func (r *Repo) DestroyRepo() error {
	if err := r.db.Close(); err != nil {
		return err
	}
	return os.RemoveAll(r.dataDir)
}

// writeVersion writes the version number to file.
func (r *Repo) writeVersion(version int) error {
	versionStr := strconv.Itoa(version)
	return writeFile(path.Join(r.dataDir, versionFileName), []byte(versionStr), os.ModePerm)
}

func newRepo(dataDir string, inMemoryDB bool) (*Repo, error) {
	if err := os.MkdirAll(path.Join(dataDir, "datastore"), os.ModePerm); err != nil {
		return nil, err
	}

	var (
		db  Database
		err error
	)
	if inMemoryDB {
		db, err = NewMemoryDB()
	} else {
		db, err = NewSqliteDB(dataDir)
	}
	if err != nil {
		return nil, err
	}

	if err := autoMigrateDatabase(db); err != nil {
		return nil, err
	}

	r := &Repo{
		db:      db,
		dataDir: dataDir,
	}

	if _, err := os.Stat(path.Join(dataDir, versionFileName)); os.IsNotExist(err) {
		if err := r.writeVersion(defaultRepoVersion); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func autoMigrateDatabase(db Database) error {
	dbModels := []interface{}{
		&models.StoreEntry{},
		&models.CachedAsset{},
	}

	return db.Update(func(tx *gorm.DB) error {
		for _, m := range dbModels {
			if err := tx.AutoMigrate(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func writeFile(pth string, data []byte, perm os.FileMode) error {
	return ioutil.WriteFile(pth, data, perm)
}
