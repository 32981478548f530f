package repository

import (
	"fmt"

	"tutorly/internal/domain"
)

// refResolvers maps each reference kind to the loader for its entity.
var refResolvers = map[domain.RefKind]func(s *Store, id uint) (interface{}, error){
	domain.RefBooking:    func(s *Store, id uint) (interface{}, error) { return s.Bookings.GetByID(id) },
	domain.RefDispute:    func(s *Store, id uint) (interface{}, error) { return s.Bookings.GetByID(id) },
	domain.RefPayout:     func(s *Store, id uint) (interface{}, error) { return s.Payouts.GetByID(id) },
	domain.RefAdjustment: func(s *Store, id uint) (interface{}, error) { return s.Audit.GetByID(id) },
}

// ResolveRef loads the entity a ledger entry points at.
func (s *Store) ResolveRef(ref domain.Ref) (interface{}, error) {
	load, ok := refResolvers[ref.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown ref kind %q", domain.ErrInvalidInput, ref.Kind)
	}
	return load(s, ref.ID)
}
