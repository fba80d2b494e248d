package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/equipment-lending/internal/model"
)

// MemoryStore is a process-local Store. It backs the test suites and the
// STORAGE_DRIVER=memory mode used for demos. Transactions are serialized
// and roll back by restoring a snapshot taken when they began; writes
// made outside WithTx take the same transaction lock so a rollback can
// never discard them.
type MemoryStore struct {
	mu   *sync.Mutex // guards data
	txMu *sync.Mutex // held for the whole of a transaction and for plain writes
	data *memData
	inTx bool
}

type memData struct {
	items        map[uint64]model.Item
	reservations map[uint64]model.Reservation
	users        map[uint64]model.User
	lastItem     uint64
	lastRes      uint64
	lastUser     uint64
}

func (d *memData) clone() *memData {
	c := *d
	c.items = make(map[uint64]model.Item, len(d.items))
	for k, v := range d.items {
		c.items[k] = v
	}
	c.reservations = make(map[uint64]model.Reservation, len(d.reservations))
	for k, v := range d.reservations {
		c.reservations[k] = v
	}
	c.users = make(map[uint64]model.User, len(d.users))
	for k, v := range d.users {
		c.users[k] = v
	}
	return &c
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu:   &sync.Mutex{},
		txMu: &sync.Mutex{},
		data: &memData{
			items:        map[uint64]model.Item{},
			reservations: map[uint64]model.Reservation{},
			users:        map[uint64]model.User{},
		},
	}
}

func (s *MemoryStore) Items() ItemRepository               { return memItems{s} }
func (s *MemoryStore) Reservations() ReservationRepository { return memReservations{s} }
func (s *MemoryStore) Users() UserRepository               { return memUsers{s} }

// WithTx runs fn under the transaction lock and restores the previous
// state when fn fails or panics.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := s.data.clone()
	s.mu.Unlock()

	committed := false
	defer func() {
		if !committed {
			s.mu.Lock()
			*s.data = *snap
			s.mu.Unlock()
		}
	}()
	tx := &MemoryStore{mu: s.mu, txMu: s.txMu, data: s.data, inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *MemoryStore) read(fn func(d *memData)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

func (s *MemoryStore) write(fn func(d *memData) error) error {
	if !s.inTx {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

type memItems struct{ s *MemoryStore }

func (m memItems) GetByID(_ context.Context, id uint64) (*model.Item, error) {
	var (
		it model.Item
		ok bool
	)
	m.s.read(func(d *memData) { it, ok = d.items[id] })
	if !ok {
		return nil, ErrNotFound
	}
	return &it, nil
}

func (m memItems) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Item, error) {
	return m.GetByID(ctx, id)
}

func (m memItems) List(_ context.Context, f model.ItemFilter) ([]model.Item, error) {
	category := strings.ToLower(strings.TrimSpace(f.Category))
	out := []model.Item{}
	m.s.read(func(d *memData) {
		for _, it := range d.items {
			switch {
			case category != "":
				if strings.ToLower(it.Category) != category {
					continue
				}
			case f.AvailableOnly:
				if it.AvailableQuantity <= 0 {
					continue
				}
			}
			out = append(out, it)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m memItems) Create(_ context.Context, it *model.Item) error {
	return m.s.write(func(d *memData) error {
		d.lastItem++
		now := time.Now().UTC()
		it.ID = d.lastItem
		it.CreatedAt, it.UpdatedAt = now, now
		d.items[it.ID] = *it
		return nil
	})
}

func (m memItems) Update(_ context.Context, it *model.Item) error {
	return m.s.write(func(d *memData) error {
		prev, ok := d.items[it.ID]
		if !ok {
			return ErrNotFound
		}
		it.CreatedAt = prev.CreatedAt
		it.UpdatedAt = time.Now().UTC()
		d.items[it.ID] = *it
		return nil
	})
}

func (m memItems) Delete(_ context.Context, id uint64) (bool, error) {
	var deleted bool
	err := m.s.write(func(d *memData) error {
		if _, ok := d.items[id]; !ok {
			return nil
		}
		delete(d.items, id)
		for rid, r := range d.reservations {
			if r.ItemID == id {
				delete(d.reservations, rid)
			}
		}
		deleted = true
		return nil
	})
	return deleted, err
}

func (m memItems) AdjustAvailable(_ context.Context, id uint64, delta int) error {
	return m.s.write(func(d *memData) error {
		it, ok := d.items[id]
		if !ok {
			return nil
		}
		it.AvailableQuantity += delta
		it.ClampAvailable()
		it.UpdatedAt = time.Now().UTC()
		d.items[id] = it
		return nil
	})
}

type memReservations struct{ s *MemoryStore }

func (m memReservations) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	var (
		r  model.Reservation
		ok bool
	)
	m.s.read(func(d *memData) { r, ok = d.reservations[id] })
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m memReservations) Create(_ context.Context, r *model.Reservation) error {
	return m.s.write(func(d *memData) error {
		d.lastRes++
		r.ID = d.lastRes
		if r.Decision == nil {
			r.Decision = model.Undecided{}
		}
		d.reservations[r.ID] = *r
		return nil
	})
}

func (m memReservations) Update(_ context.Context, r *model.Reservation) error {
	return m.s.write(func(d *memData) error {
		prev, ok := d.reservations[r.ID]
		if !ok {
			return ErrNotFound
		}
		prev.Status = r.Status
		prev.Decision = r.Decision
		d.reservations[r.ID] = prev
		return nil
	})
}

func (m memReservations) collect(keep func(r model.Reservation) bool) []model.Reservation {
	out := []model.Reservation{}
	m.s.read(func(d *memData) {
		for _, r := range d.reservations {
			if keep(r) {
				out = append(out, r)
			}
		}
	})
	return out
}

func (m memReservations) List(_ context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	out := m.collect(func(r model.Reservation) bool {
		return (f.RequesterID == 0 || r.RequesterID == f.RequesterID) &&
			(f.ItemID == 0 || r.ItemID == f.ItemID) &&
			(f.Status == "" || r.Status == f.Status)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m memReservations) ListActiveOverlapping(_ context.Context, itemID uint64, statuses []model.ReservationStatus, start, end time.Time) ([]model.Reservation, error) {
	want := make(map[model.ReservationStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	out := m.collect(func(r model.Reservation) bool {
		return r.ItemID == itemID && want[r.Status] && r.Covers(start, end)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memReservations) CountActiveByItem(_ context.Context, itemID uint64) (int, error) {
	return len(m.collect(func(r model.Reservation) bool {
		return r.ItemID == itemID && r.Status.Active()
	})), nil
}

type memUsers struct{ s *MemoryStore }

func (m memUsers) Create(_ context.Context, u *model.User) error {
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	return m.s.write(func(d *memData) error {
		for _, existing := range d.users {
			if existing.Username == u.Username {
				return ErrDuplicate
			}
		}
		d.lastUser++
		u.ID = d.lastUser
		u.CreatedAt = time.Now().UTC()
		d.users[u.ID] = *u
		return nil
	})
}

func (m memUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	var found *model.User
	m.s.read(func(d *memData) {
		for _, u := range d.users {
			if u.Username == username {
				u := u
				found = &u
				return
			}
		}
	})
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (m memUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	var (
		u  model.User
		ok bool
	)
	m.s.read(func(d *memData) { u, ok = d.users[id] })
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m memUsers) Count(_ context.Context) (int, error) {
	var n int
	m.s.read(func(d *memData) { n = len(d.users) })
	return n, nil
}
