package lightnode

import (
	"encoding/json"
	"errors"
	"fmt"

	"qnetclient/storage"
)

var registrationKey = []byte("lightnode/registration")

// Store persists the node registration so liveness survives a process
// restart. One registration per device.
type Store struct {
	db storage.Database
}

func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

// Save writes the registration record.
func (s *Store) Save(reg *NodeRegistration) error {
	if reg == nil {
		return errors.New("lightnode: nil registration")
	}
	payload, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("encode registration: %w", err)
	}
	return s.db.Put(registrationKey, payload)
}

// Load returns the stored registration, or (nil, nil) when none exists.
func (s *Store) Load() (*NodeRegistration, error) {
	payload, err := s.db.Get(registrationKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var reg NodeRegistration
	if err := json.Unmarshal(payload, &reg); err != nil {
		return nil, fmt.Errorf("decode registration: %w", err)
	}
	return &reg, nil
}

// Delete removes the stored registration. Called on logout/wallet deletion.
func (s *Store) Delete() error {
	return s.db.Delete(registrationKey)
}
