package dummydb

import (
	"sync"

	"github.com/trezcool/approvals/core/user"
	"github.com/trezcool/approvals/core/workflow"
)

type (
	// DB is an in-memory database for tests & local development.
	DB struct {
		user   *userTable
		record *recordTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	recordTable struct {
		sync.RWMutex
		table       map[string]*workflow.Record
		transitions map[string][]workflow.TransitionLog // {recordID: logs}
	}
)

func Open() *DB {
	return &DB{
		user:   &userTable{table: make(map[string]*user.User)},
		record: &recordTable{table: make(map[string]*workflow.Record), transitions: make(map[string][]workflow.TransitionLog)},
	}
}

// Reset drops every row.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()

	db.record.Lock()
	db.record.table = make(map[string]*workflow.Record)
	db.record.transitions = make(map[string][]workflow.TransitionLog)
	db.record.Unlock()
}
