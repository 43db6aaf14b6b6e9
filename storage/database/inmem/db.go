// Package inmemdb implements the repositories in memory, for tests and database.inMemory mode.
package inmemdb

import (
	"context"
	"sync"

	"github.com/wartburg/mcsp/core"
	"github.com/wartburg/mcsp/core/course"
	"github.com/wartburg/mcsp/core/user"
)

type (
	tables struct {
		users       map[int]user.User
		courses     map[int]course.Course
		students    map[int]course.Student
		enrollments map[int]map[int]bool // {courseID: {studentID}}
		assignments map[int]course.Assignment
		handouts    map[int]course.Handout
		seq         map[string]int
	}

	// DB holds every table behind a single lock.
	DB struct {
		mu sync.RWMutex
		t  tables
	}

	// txExec marks repository calls made from within DB.WithinTx (the lock is already held).
	txExec struct {
		core.DBExecutor
	}
)

var _ core.Transactor = (*DB)(nil)

func Open() *DB {
	return &DB{t: newTables()}
}

func newTables() tables {
	return tables{
		users:       make(map[int]user.User),
		courses:     make(map[int]course.Course),
		students:    make(map[int]course.Student),
		enrollments: make(map[int]map[int]bool),
		assignments: make(map[int]course.Assignment),
		handouts:    make(map[int]course.Handout),
		seq:         make(map[string]int),
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.users {
		v.Roles = append([]string(nil), v.Roles...)
		c.users[k] = v
	}
	for k, v := range t.courses {
		c.courses[k] = v
	}
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.enrollments {
		ids := make(map[int]bool, len(v))
		for id := range v {
			ids[id] = true
		}
		c.enrollments[k] = ids
	}
	for k, v := range t.assignments {
		c.assignments[k] = v
	}
	for k, v := range t.handouts {
		c.handouts[k] = v
	}
	for k, v := range t.seq {
		c.seq[k] = v
	}
	return c
}

func (t tables) nextID(table string) int {
	t.seq[table]++
	return t.seq[table]
}

// Reset empties every table and restarts the id sequences.
func (db *DB) Reset() {
	db.mu.Lock()
	db.t = newTables()
	db.mu.Unlock()
}

// WithinTx runs fn holding the write lock; every table is restored if fn fails.
func (db *DB) WithinTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	snapshot := db.t.clone()
	if err := fn(txExec{}); err != nil {
		db.t = snapshot
		return err
	}
	return nil
}

func inTx(exec []core.DBExecutor) bool {
	if len(exec) == 0 {
		return false
	}
	_, ok := exec[0].(txExec)
	return ok
}

// read runs fn under the read lock, unless already within a transaction.
func (db *DB) read(exec []core.DBExecutor, fn func(t tables)) {
	if !inTx(exec) {
		db.mu.RLock()
		defer db.mu.RUnlock()
	}
	fn(db.t)
}

// write runs fn under the write lock, unless already within a transaction.
func (db *DB) write(exec []core.DBExecutor, fn func(t tables)) {
	if !inTx(exec) {
		db.mu.Lock()
		defer db.mu.Unlock()
	}
	fn(db.t)
}
