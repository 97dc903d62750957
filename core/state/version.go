package state

import (
	"errors"
	"fmt"
)

// StateVersion is the layout written by this binary:
//
//	1: RLP accounts {owner, data}, 96-byte reward ledgers, token mints and
//	   accounts, the processed transaction set and the reward/ledgers list.
const StateVersion uint32 = 1

var versionKey = []byte("state/version")

var (
	ErrStateUnversioned     = errors.New("state: no layout version recorded")
	ErrStateVersionMismatch = errors.New("state: layout version mismatch")
)

// SetStateVersion stamps the layout version. The runtime does this once when
// it creates a fresh state.
func (m *Manager) SetStateVersion(version uint32) error {
	return m.KVPut(versionKey, version)
}

// StateVersion returns the stamped layout version, or ErrStateUnversioned.
func (m *Manager) StateVersion() (uint32, error) {
	var version uint32
	ok, err := m.KVGet(versionKey, &version)
	if err != nil {
		return 0, fmt.Errorf("state: read layout version: %w", err)
	}
	if !ok {
		return 0, ErrStateUnversioned
	}
	return version, nil
}

// CheckStateVersion refuses state written with a different layout.
func (m *Manager) CheckStateVersion() error {
	version, err := m.StateVersion()
	if err != nil {
		return err
	}
	if version != StateVersion {
		return fmt.Errorf("%w: stored %d, supported %d", ErrStateVersionMismatch, version, StateVersion)
	}
	return nil
}
