package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenHistoryDB_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "econ.db")
	db, err := openHistoryDB(path)
	if err != nil {
		t.Fatalf("openHistoryDB: %v", err)
	}
	defer db.Close()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected database file: %v", err)
	}
}

func TestOpenHistoryDB_DirectoryError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := openHistoryDB(filepath.Join(blocker, "sub", "econ.db"))
	if err == nil {
		t.Fatal("expected an error when the parent path is a file")
	}
	if !strings.Contains(err.Error(), "create database directory") {
		t.Errorf("error should name the directory step, got %v", err)
	}
}
