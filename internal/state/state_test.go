package state

import (
	"testing"

	"github.com/google/uuid"
)

// TestGetSetDelete verifies basic key/value round trips including missing keys.
func TestGetSetDelete(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, ok, err := db.Get(KeyRefreshToken); err != nil || ok {
		t.Fatalf("Get on empty db = ok %v, err %v", ok, err)
	}

	if err := db.Set(KeyRefreshToken, "r1"); err != nil {
		t.Fatal(err)
	}
	if err := db.Set(KeyRefreshToken, "r2"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := db.Get(KeyRefreshToken)
	if err != nil || !ok || v != "r2" {
		t.Errorf("Get = %q, %v, %v; want r2", v, ok, err)
	}

	if err := db.Delete(KeyRefreshToken); err != nil {
		t.Fatal(err)
	}
	if err := db.Delete(KeyRefreshToken); err != nil {
		t.Errorf("second Delete: %v", err)
	}
	if _, ok, _ := db.Get(KeyRefreshToken); ok {
		t.Error("key still present after Delete")
	}
}

// TestStatePersistsAcrossOpens verifies values survive closing and reopening the database.
func TestStatePersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	id, err := db.DeviceID()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("device id %q is not a uuid: %v", id, err)
	}
	db.Close()

	db, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	again, err := db.DeviceID()
	if err != nil {
		t.Fatal(err)
	}
	if again != id {
		t.Errorf("device id changed across opens: %q -> %q", id, again)
	}
}
