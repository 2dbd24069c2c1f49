package cmd

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/CarliMargareta/storyagent/repo"
)

// Init initializes a new story agent data directory at the provided path.
type Init struct {
	DataDir string `short:"d" long:"datadir" description:"Directory to store data"`
	Force   bool   `short:"f" long:"force" description:"Force overwrite existing repo (dangerous!)"`
}

// Execute initializes the data directory and database.
func (x *Init) Execute(args []string) error {
	if x.DataDir == "" {
		x.DataDir = repo.DefaultHomeDir
	}

	if _, err := os.Stat(filepath.Join(x.DataDir, "datastore")); !os.IsNotExist(err) {
		if !x.Force {
			return errors.New("agent is already initialized")
		}
		os.RemoveAll(x.DataDir)
	}

	r, err := repo.NewRepo(x.DataDir)
	if err != nil {
		return err
	}
	return r.Close()
}
