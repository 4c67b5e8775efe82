package store

import (
	"sync"

	"github.com/reifydb/reifydb/txn"
)

// Operation names the catalog lifecycle event an interceptor observes.
type Operation byte

const (
	OpCreate Operation = iota
	OpUpdate
	OpDelete
)

func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Phase distinguishes a hook fired before the mutation is buffered from one
// fired after, but still inside the same committing transaction.
type Phase byte

const (
	Pre Phase = iota
	Post
)

// Event is the context object passed to every interceptor: which entity
// kind, which lifecycle point, the key/value involved, and the transaction
// the mutation is happening under. A Pre listener may still fail the commit
// by returning an error; a Post listener observes a change already buffered
// (not yet durable) in the same transaction.
type Event struct {
	Operation Operation
	Phase     Phase
	Entity    string
	Key       []byte
	Value     []byte
	Tx        *txn.Transaction
}

// Listener observes or reacts to an Event. Returning a non-nil error from a
// Pre listener aborts the mutation (and, transitively, the commit it is
// part of); a Post listener's error does the same, since both still run
// inside the not-yet-committed transaction.
type Listener func(*Event) error

// Interceptors is a typed, ordered chain of listeners keyed by (entity,
// operation, phase), standing in for the source's closure-backed trait
// registration: a plain map of slices of callbacks needs no reflection or
// code generation to express the same "observe or mutate at a named point"
// contract.
type Interceptors struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
}

// NewInterceptors returns an empty chain.
func NewInterceptors() *Interceptors {
	return &Interceptors{listeners: make(map[string][]Listener)}
}

func chainKey(entity string, op Operation, phase Phase) string {
	return entity + "/" + op.String() + "/" + []string{"pre", "post"}[phase]
}

// Register appends l to the chain fired for (entity, op, phase). Listeners
// run in registration order.
func (ic *Interceptors) Register(entity string, op Operation, phase Phase, l Listener) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	k := chainKey(entity, op, phase)
	ic.listeners[k] = append(ic.listeners[k], l)
}

// Fire runs every listener registered for ev's (entity, operation, phase)
// in order, stopping at the first error.
func (ic *Interceptors) Fire(ev *Event) error {
	ic.mu.RLock()
	chain := ic.listeners[chainKey(ev.Entity, ev.Operation, ev.Phase)]
	ic.mu.RUnlock()
	for _, l := range chain {
		if err := l(ev); err != nil {
			return err
		}
	}
	return nil
}

// fireMutation builds the Event and fires both phases around fn, which
// should perform the actual buffered mutation (a Transaction.Set or
// Transaction.Remove call); Create, Update and Delete wrap it. A listener
// error rolls tx back, so its later Commit fails.
func (ic *Interceptors) fireMutation(entity string, op Operation, tx *txn.Transaction, key, value []byte, fn func() error) error {
	pre := &Event{Operation: op, Phase: Pre, Entity: entity, Key: key, Value: value, Tx: tx}
	if err := ic.Fire(pre); err != nil {
		if tx != nil {
			_ = tx.Rollback()
		}
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	post := &Event{Operation: op, Phase: Post, Entity: entity, Key: key, Value: value, Tx: tx}
	if err := ic.Fire(post); err != nil {
		if tx != nil {
			_ = tx.Rollback()
		}
		return err
	}
	return nil
}

// Create runs the create interceptor chain around fn.
func (ic *Interceptors) Create(tx *txn.Transaction, entity string, key, value []byte, fn func() error) error {
	return ic.fireMutation(entity, OpCreate, tx, key, value, fn)
}

// Update runs the update interceptor chain around fn.
func (ic *Interceptors) Update(tx *txn.Transaction, entity string, key, value []byte, fn func() error) error {
	return ic.fireMutation(entity, OpUpdate, tx, key, value, fn)
}

// Delete runs the delete interceptor chain around fn.
func (ic *Interceptors) Delete(tx *txn.Transaction, entity string, key []byte, fn func() error) error {
	return ic.fireMutation(entity, OpDelete, tx, key, nil, fn)
}
