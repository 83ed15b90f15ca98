// Package memory is an in-process implementation of the repository interfaces.
// It enforces the same unique constraints as the postgres schema and is used by
// service and handler tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/model"
)

type txKey struct{}

type idemKey struct {
	key          string
	resourceType string
}

type state struct {
	bookings    map[uuid.UUID]model.Booking
	items       map[uuid.UUID][]model.BookingItem
	jobs        map[uuid.UUID]model.Job
	completions map[uuid.UUID]model.JobCompletion
	reviews     map[uuid.UUID]model.Review
	idempotency map[idemKey]model.IdempotencyRecord
	profiles    map[uuid.UUID]model.ProviderProfile
	companies   map[uuid.UUID]model.Company
	employees   []model.CompanyEmployee
	services    map[uuid.UUID]model.Service
	addresses   map[uuid.UUID]model.Address
	outbox      []model.OutboxEvent
}

func newState() *state {
	return &state{
		bookings:    map[uuid.UUID]model.Booking{},
		items:       map[uuid.UUID][]model.BookingItem{},
		jobs:        map[uuid.UUID]model.Job{},
		completions: map[uuid.UUID]model.JobCompletion{},
		reviews:     map[uuid.UUID]model.Review{},
		idempotency: map[idemKey]model.IdempotencyRecord{},
		profiles:    map[uuid.UUID]model.ProviderProfile{},
		companies:   map[uuid.UUID]model.Company{},
		services:    map[uuid.UUID]model.Service{},
		addresses:   map[uuid.UUID]model.Address{},
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.bookings {
		c.bookings[k] = v
	}
	for k, v := range st.items {
		c.items[k] = append([]model.BookingItem(nil), v...)
	}
	for k, v := range st.jobs {
		c.jobs[k] = v
	}
	for k, v := range st.completions {
		v.PhotoURLs = append([]string(nil), v.PhotoURLs...)
		c.completions[k] = v
	}
	for k, v := range st.reviews {
		c.reviews[k] = v
	}
	for k, v := range st.idempotency {
		c.idempotency[k] = v
	}
	for k, v := range st.profiles {
		c.profiles[k] = v
	}
	for k, v := range st.companies {
		c.companies[k] = v
	}
	c.employees = append(c.employees, st.employees...)
	for k, v := range st.services {
		c.services[k] = v
	}
	for k, v := range st.addresses {
		c.addresses[k] = v
	}
	c.outbox = append(c.outbox, st.outbox...)
	return c
}

// Store holds all tables behind one mutex. Transactions are serialized and
// roll back by restoring a snapshot taken when they began.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	data *state
}

func NewStore() *Store {
	return &Store{data: newState()}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	rollback := func() {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
	}

	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		rollback()
		return err
	}
	return nil
}

func (s *Store) Bookings() *BookingRepository {
	return &BookingRepository{s: s}
}

func (s *Store) Jobs() *JobRepository {
	return &JobRepository{s: s}
}

func (s *Store) Idempotency() *IdempotencyRepository {
	return &IdempotencyRepository{s: s}
}

func (s *Store) Profiles() *ProviderProfileRepository {
	return &ProviderProfileRepository{s: s}
}

func (s *Store) Companies() *CompanyRepository {
	return &CompanyRepository{s: s}
}

func (s *Store) Services() *ServiceRepository {
	return &ServiceRepository{s: s}
}

func (s *Store) Addresses() *AddressRepository {
	return &AddressRepository{s: s}
}

func (s *Store) Outbox() *OutboxRepository {
	return &OutboxRepository{s: s}
}

// Seeding helpers for tests.

func (s *Store) AddService(svc model.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.services[svc.ID] = svc
}

func (s *Store) AddAddress(addr model.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.addresses[addr.ID] = addr
}

func (s *Store) AddCompany(c model.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.companies[c.ID] = c
}

func (s *Store) AddEmployee(e model.CompanyEmployee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.employees = append(s.data.employees, e)
}

func (s *Store) AddProfile(p model.ProviderProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.profiles[p.UserID] = p
}

func (s *Store) AddReview(r model.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.reviews[r.JobID] = r
}

// OutboxEvents returns a copy of every event written so far, oldest first.
func (s *Store) OutboxEvents() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OutboxEvent(nil), s.data.outbox...)
}

func (s *Store) CountBookings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.bookings)
}

func (s *Store) CountJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.jobs)
}
