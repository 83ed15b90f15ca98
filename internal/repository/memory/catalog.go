package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository"
)

type CompanyRepository struct {
	s *Store
}

var _ repository.CompanyRepository = (*CompanyRepository)(nil)

func (r *CompanyRepository) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*model.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.data.companies {
		if c.OwnerID == ownerID {
			company := c
			return &company, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *CompanyRepository) IsEmployee(ctx context.Context, companyID, userID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.data.employees {
		if e.CompanyID == companyID && e.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

type ServiceRepository struct {
	s *Store
}

var _ repository.ServiceRepository = (*ServiceRepository)(nil)

func (r *ServiceRepository) ListActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	seen := make(map[uuid.UUID]bool, len(ids))
	var out []*model.Service
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if svc, ok := r.s.data.services[id]; ok && svc.Active {
			s := svc
			out = append(out, &s)
		}
	}
	return out, nil
}

type AddressRepository struct {
	s *Store
}

var _ repository.AddressRepository = (*AddressRepository)(nil)

func (r *AddressRepository) GetOwned(ctx context.Context, id, userID uuid.UUID) (*model.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	addr, ok := r.s.data.addresses[id]
	if !ok || addr.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &addr, nil
}
