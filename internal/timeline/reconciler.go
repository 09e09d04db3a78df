package timeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
)

// Op is a local mutation applied before the server confirms it.
type Op struct {
	kind   domain.ChangeKind
	entry  domain.Entry
	id     uuid.UUID
	mutate func(domain.Entry) domain.Entry
}

// InsertOp shows e right away. e.ID is a provisional ID; Confirm replaces
// the entry with the one the server assigned.
func InsertOp(e domain.Entry) Op {
	return Op{kind: domain.ChangeInsert, entry: e, id: e.ID}
}

// UpdateOp applies mutate to the held copy of entry id. Nothing is shown
// when the entry is not held.
func UpdateOp(id uuid.UUID, mutate func(domain.Entry) domain.Entry) Op {
	return Op{kind: domain.ChangeUpdate, id: id, mutate: mutate}
}

// DeleteOp hides entry id.
func DeleteOp(id uuid.UUID) Op {
	return Op{kind: domain.ChangeDelete, id: id}
}

// Token identifies a tentative operation until it is confirmed or rolled back.
type Token uint64

type pending struct {
	op Op
	// prior is the authoritative version of the entry as last seen, nil when
	// absent. Feed events that arrive while the token is open keep it current.
	prior *domain.Entry
	// observed is set once a feed event touched the entry after the
	// tentative apply.
	observed bool

	// Insert tokens only. claimed is the server entry the feed delivered for
	// this insert before Confirm, uuid.Nil until then. lookalikes are held
	// entries that already matched the provisional one when it was applied
	// and can never be claimed. deleted collects every ID a feed delete or
	// reseed removed while the token was open.
	claimed    uuid.UUID
	lookalikes map[uuid.UUID]struct{}
	deleted    map[uuid.UUID]struct{}
}

// Reconciler merges optimistic writes and feed events into one Store and
// notifies subscribers after every change. It holds no timers: every
// TentativeApply must be followed by exactly one Confirm or Rollback.
type Reconciler struct {
	store   *Store
	pending map[Token]*pending
	nextTok Token

	subs    map[int]func([]domain.Entry)
	nextSub int
}

// NewReconciler wraps store.
func NewReconciler(store *Store) *Reconciler {
	return &Reconciler{
		store:   store,
		pending: make(map[Token]*pending),
		subs:    make(map[int]func([]domain.Entry)),
	}
}

// Store returns the underlying store.
func (r *Reconciler) Store() *Store { return r.store }

// Seed replaces the whole projection, e.g. after a (re)subscription.
// Provisional inserts stay visible until the snapshot already holds their
// server entry; other open tokens take entries as their authoritative
// snapshot.
func (r *Reconciler) Seed(entries []domain.Entry) {
	r.store.Seed(entries)
	for _, p := range r.pending {
		if p.op.kind != domain.ChangeInsert {
			p.prior = r.snapshot(p.op.id)
			p.observed = true
		}
	}
	for _, p := range r.pending {
		if p.op.kind != domain.ChangeInsert {
			continue
		}
		if p.claimed != uuid.Nil {
			if _, held := r.store.Get(p.claimed); !held {
				p.deleted[p.claimed] = struct{}{}
			}
			continue
		}
		if !r.claimAny(p, entries) {
			r.store.ApplyInsert(p.op.entry)
		}
	}
	r.notify()
}

// Apply merges an authoritative feed event.
func (r *Reconciler) Apply(ev domain.ChangeEvent) {
	switch ev.Kind {
	case domain.ChangeInsert:
		if ev.Entry == nil {
			return
		}
		r.store.ApplyInsert(*ev.Entry)
		r.observe(ev.Entry.ID, ev.Entry)
		r.claim(*ev.Entry)
	case domain.ChangeUpdate:
		if ev.Entry == nil {
			return
		}
		r.store.ApplyUpdate(*ev.Entry)
		r.observe(ev.Entry.ID, ev.Entry)
		r.claim(*ev.Entry)
	case domain.ChangeDelete:
		r.store.ApplyDelete(ev.EntryID)
		r.observe(ev.EntryID, nil)
	default:
		return
	}
	r.notify()
}

// TentativeApply shows op immediately and returns the token to resolve it.
func (r *Reconciler) TentativeApply(op Op) Token {
	r.nextTok++
	tok := r.nextTok
	p := &pending{op: op}

	switch op.kind {
	case domain.ChangeInsert:
		p.lookalikes = make(map[uuid.UUID]struct{})
		p.deleted = make(map[uuid.UUID]struct{})
		for _, e := range r.store.Entries() {
			if sameContent(e, op.entry) {
				p.lookalikes[e.ID] = struct{}{}
			}
		}
		r.store.ApplyInsert(op.entry)
	case domain.ChangeUpdate:
		p.prior = r.snapshot(op.id)
		if p.prior != nil && op.mutate != nil {
			r.store.ApplyUpdate(op.mutate(*p.prior))
		}
	case domain.ChangeDelete:
		p.prior = r.snapshot(op.id)
		r.store.ApplyDelete(op.id)
	}
	r.pending[tok] = p
	r.notify()
	return tok
}

// Confirm resolves tok with the server's result. For inserts the provisional
// entry is replaced by result unless the feed already delivered it, or
// already deleted it again. For
// updates result is applied unless a feed event for the entry already
// arrived, in which case the feed's version stands. Unknown tokens are
// ignored.
func (r *Reconciler) Confirm(tok Token, result *domain.Entry) {
	p, ok := r.pending[tok]
	if !ok {
		return
	}
	delete(r.pending, tok)

	switch p.op.kind {
	case domain.ChangeInsert:
		r.store.ApplyDelete(p.op.id)
		if result == nil {
			break
		}
		if _, gone := p.deleted[result.ID]; gone {
			break
		}
		if _, held := r.store.Get(result.ID); !held {
			r.store.ApplyInsert(*result)
		}
	case domain.ChangeUpdate:
		if result != nil && !p.observed {
			r.store.ApplyUpdate(*result)
		}
	case domain.ChangeDelete:
		r.store.ApplyDelete(p.op.id)
	}
	r.notify()
}

// Rollback undoes the tentative op of tok, restoring the last authoritative
// version of that one entry. Unknown tokens are ignored.
func (r *Reconciler) Rollback(tok Token) {
	p, ok := r.pending[tok]
	if !ok {
		return
	}
	delete(r.pending, tok)

	switch p.op.kind {
	case domain.ChangeInsert:
		r.store.ApplyDelete(p.op.id)
	default:
		if p.prior != nil {
			r.store.ApplyUpdate(*p.prior)
		} else {
			r.store.ApplyDelete(p.op.id)
		}
	}
	r.notify()
}

// Pending returns the number of unresolved tokens.
func (r *Reconciler) Pending() int { return len(r.pending) }

// Subscribe registers fn to receive the ordered entries after every change.
// fn is called once right away with the current state.
func (r *Reconciler) Subscribe(fn func([]domain.Entry)) (unsubscribe func()) {
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	fn(r.store.Entries())
	return func() { delete(r.subs, id) }
}

func (r *Reconciler) observe(id uuid.UUID, current *domain.Entry) {
	for _, p := range r.pending {
		if p.op.kind == domain.ChangeInsert {
			if current == nil {
				p.deleted[id] = struct{}{}
			}
			continue
		}
		if p.op.id != id {
			continue
		}
		p.observed = true
		if current == nil {
			p.prior = nil
		} else {
			c := *current
			p.prior = &c
		}
	}
}

// claim hands e to the first open insert it matches and drops that
// insert's provisional row, so the entry is not shown twice while the
// create request is still in flight.
func (r *Reconciler) claim(e domain.Entry) {
	for _, p := range r.pending {
		if p.op.kind == domain.ChangeInsert && p.claimed == e.ID {
			return
		}
	}
	for _, p := range r.pending {
		if r.claimable(p, e) {
			p.claimed = e.ID
			r.store.ApplyDelete(p.op.id)
			return
		}
	}
}

// claimAny claims the first of entries that matches p.
func (r *Reconciler) claimAny(p *pending, entries []domain.Entry) bool {
	for _, e := range entries {
		if r.claimable(p, e) && !r.claimedElsewhere(p, e.ID) {
			p.claimed = e.ID
			return true
		}
	}
	return false
}

func (r *Reconciler) claimable(p *pending, e domain.Entry) bool {
	if p.op.kind != domain.ChangeInsert || p.claimed != uuid.Nil || e.ID == p.op.id {
		return false
	}
	if _, ok := p.lookalikes[e.ID]; ok {
		return false
	}
	return sameContent(e, p.op.entry)
}

func (r *Reconciler) claimedElsewhere(self *pending, id uuid.UUID) bool {
	for _, p := range r.pending {
		if p != self && p.op.kind == domain.ChangeInsert && p.claimed == id {
			return true
		}
	}
	return false
}

// sameContent reports whether a and b describe the same entry apart from
// server-assigned fields. Postgres keeps microseconds, so times within one
// microsecond are the same time.
func sameContent(a, b domain.Entry) bool {
	d := a.Time.Sub(b.Time)
	return a.TripID == b.TripID && d > -time.Microsecond && d < time.Microsecond && a.Body == b.Body
}

func (r *Reconciler) snapshot(id uuid.UUID) *domain.Entry {
	e, ok := r.store.Get(id)
	if !ok {
		return nil
	}
	return &e
}

func (r *Reconciler) notify() {
	if len(r.subs) == 0 {
		return
	}
	entries := r.store.Entries()
	for _, fn := range r.subs {
		fn(entries)
	}
}
