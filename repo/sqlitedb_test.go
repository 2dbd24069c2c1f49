package repo

import (
	"errors"
	"testing"

	"github.com/CarliMargareta/storyagent/models"
	"github.com/jinzhu/gorm"
)

func TestSqliteDB_Update(t *testing.T) {
	sdb, err := MockDB()
	if err != nil {
		t.Fatal(err)
	}

	err = sdb.Update(func(tx *gorm.DB) error {
		return tx.Save(&models.StoreEntry{Namespace: "notifications", Key: "abc", Value: []byte(`{}`)}).Error
	})
	if err != nil {
		t.Error(err)
	}

	var entries []models.StoreEntry
	err = sdb.View(func(tx *gorm.DB) error {
		return tx.Find(&entries).Error
	})
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		t.Fatal(err)
	}

	if len(entries) != 1 {
		t.Errorf("Expected 1 entry, got %d", len(entries))
	}

	err = sdb.Update(func(tx *gorm.DB) error {
		if err := tx.Save(&models.StoreEntry{Namespace: "notifications", Key: "def", Value: []byte(`{}`)}).Error; err != nil {
			t.Fatal(err)
		}
		return errors.New("atomic update failure")
	})
	if err == nil {
		t.Error("Update function did not return error")
	}

	var entries2 []models.StoreEntry
	err = sdb.View(func(tx *gorm.DB) error {
		return tx.Find(&entries2).Error
	})
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		t.Fatal(err)
	}

	if len(entries2) != 1 {
		t.Error("Db update failed to roll back.")
	}
}

func TestSqliteDB_View(t *testing.T) {
	sdb, err := MockDB()
	if err != nil {
		t.Fatal(err)
	}

	err = sdb.Update(func(tx *gorm.DB) error {
		return tx.Save(&models.StoreEntry{Namespace: "data", Key: "lastId", Value: []byte(`"abc"`)}).Error
	})
	if err != nil {
		t.Fatal(err)
	}

	var entry models.StoreEntry
	err = sdb.View(func(tx *gorm.DB) error {
		return tx.Where("namespace = ? AND key = ?", "data", "lastId").First(&entry).Error
	})
	if err != nil {
		t.Fatal(err)
	}

	if string(entry.Value) != `"abc"` {
		t.Errorf("Returned incorrect value. Expected %s, got %s", `"abc"`, string(entry.Value))
	}
}
