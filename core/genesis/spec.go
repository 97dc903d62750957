package genesis

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dgenerate/crypto"
)

// GameAuthority is the mint authority placeholder resolved to the reward
// program's derived identity when genesis is applied.
const GameAuthority = "game"

// GenesisSpec declares the mints, token accounts and ledgers present on an
// empty state.
type GenesisSpec struct {
	GenesisTime   string             `yaml:"genesisTime"`
	Mints         []MintSpec         `yaml:"mints"`
	TokenAccounts []TokenAccountSpec `yaml:"tokenAccounts"`
	Ledgers       []LedgerSpec       `yaml:"ledgers"`

	genesisTimestamp time.Time
	mints            []Mint
	tokenAccounts    []TokenAccount
	ledgers          []Ledger
}

type MintSpec struct {
	ID       string `yaml:"id"`
	Decimals uint8  `yaml:"decimals"`
	// MintAuthority is an identity or "game". Empty means "game".
	MintAuthority string `yaml:"mintAuthority,omitempty"`
}

type TokenAccountSpec struct {
	ID    string `yaml:"id"`
	Mint  string `yaml:"mint"`
	Owner string `yaml:"owner"`
}

type LedgerSpec struct {
	ID        string `yaml:"id"`
	Mint      string `yaml:"mint"`
	Authority string `yaml:"authority"`
}

// Mint is a validated MintSpec. A zero Authority means the derived game
// authority.
type Mint struct {
	ID        crypto.Identity
	Decimals  uint8
	Authority crypto.Identity
}

// UsesGameAuthority reports whether the mint is handed to the reward program.
func (m Mint) UsesGameAuthority() bool {
	return m.Authority.IsZero()
}

type TokenAccount struct {
	ID    crypto.Identity
	Mint  crypto.Identity
	Owner crypto.Identity
}

type Ledger struct {
	ID        crypto.Identity
	Mint      crypto.Identity
	Authority crypto.Identity
}

var ErrDuplicateIdentity = errors.New("genesis: identity declared twice")

// LoadGenesisSpec reads and validates a YAML genesis file. Unknown fields are
// rejected.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates raw YAML.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate parses every identity and checks references. Results are sorted
// by identity so application order never depends on file order.
func (s *GenesisSpec) Validate() error {
	if s == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if ts := strings.TrimSpace(s.GenesisTime); ts != "" {
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return fmt.Errorf("genesisTime: %w", err)
		}
		s.genesisTimestamp = parsed.UTC()
	}

	seen := make(map[crypto.Identity]string)
	claim := func(id crypto.Identity, what string) error {
		if prev, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s (%s and %s)", ErrDuplicateIdentity, id, prev, what)
		}
		seen[id] = what
		return nil
	}

	mints := make(map[crypto.Identity]struct{}, len(s.Mints))
	s.mints = s.mints[:0]
	for i, spec := range s.Mints {
		id, err := parseIdentity(spec.ID)
		if err != nil {
			return fmt.Errorf("mints[%d].id: %w", i, err)
		}
		mint := Mint{ID: id, Decimals: spec.Decimals}
		if auth := strings.TrimSpace(spec.MintAuthority); auth != "" && !strings.EqualFold(auth, GameAuthority) {
			if mint.Authority, err = parseIdentity(auth); err != nil {
				return fmt.Errorf("mints[%d].mintAuthority: %w", i, err)
			}
		}
		if err := claim(id, "mint"); err != nil {
			return err
		}
		mints[id] = struct{}{}
		s.mints = append(s.mints, mint)
	}

	s.tokenAccounts = s.tokenAccounts[:0]
	for i, spec := range s.TokenAccounts {
		var acct TokenAccount
		var err error
		if acct.ID, err = parseIdentity(spec.ID); err != nil {
			return fmt.Errorf("tokenAccounts[%d].id: %w", i, err)
		}
		if acct.Mint, err = parseIdentity(spec.Mint); err != nil {
			return fmt.Errorf("tokenAccounts[%d].mint: %w", i, err)
		}
		if acct.Owner, err = parseIdentity(spec.Owner); err != nil {
			return fmt.Errorf("tokenAccounts[%d].owner: %w", i, err)
		}
		if _, ok := mints[acct.Mint]; !ok {
			return fmt.Errorf("tokenAccounts[%d]: mint %s not declared", i, acct.Mint)
		}
		if err := claim(acct.ID, "token account"); err != nil {
			return err
		}
		s.tokenAccounts = append(s.tokenAccounts, acct)
	}

	s.ledgers = s.ledgers[:0]
	for i, spec := range s.Ledgers {
		var ledger Ledger
		var err error
		if ledger.ID, err = parseIdentity(spec.ID); err != nil {
			return fmt.Errorf("ledgers[%d].id: %w", i, err)
		}
		if ledger.Mint, err = parseIdentity(spec.Mint); err != nil {
			return fmt.Errorf("ledgers[%d].mint: %w", i, err)
		}
		if ledger.Authority, err = parseIdentity(spec.Authority); err != nil {
			return fmt.Errorf("ledgers[%d].authority: %w", i, err)
		}
		if _, ok := mints[ledger.Mint]; !ok {
			return fmt.Errorf("ledgers[%d]: mint %s not declared", i, ledger.Mint)
		}
		if err := claim(ledger.ID, "ledger"); err != nil {
			return err
		}
		s.ledgers = append(s.ledgers, ledger)
	}

	sort.Slice(s.mints, func(i, j int) bool { return s.mints[i].ID.Less(s.mints[j].ID) })
	sort.Slice(s.tokenAccounts, func(i, j int) bool { return s.tokenAccounts[i].ID.Less(s.tokenAccounts[j].ID) })
	sort.Slice(s.ledgers, func(i, j int) bool { return s.ledgers[i].ID.Less(s.ledgers[j].ID) })
	return nil
}

func parseIdentity(raw string) (crypto.Identity, error) {
	id, err := crypto.ParseIdentity(raw)
	if err != nil {
		return crypto.ZeroIdentity, err
	}
	if id.IsZero() {
		return crypto.ZeroIdentity, fmt.Errorf("%w: zero identity", crypto.ErrInvalidIdentity)
	}
	return id, nil
}

// GenesisTimestamp returns the parsed genesisTime, zero when unset.
func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// ParsedMints returns the validated mints in identity order.
func (s *GenesisSpec) ParsedMints() []Mint { return append([]Mint(nil), s.mints...) }

// ParsedTokenAccounts returns the validated token accounts in identity order.
func (s *GenesisSpec) ParsedTokenAccounts() []TokenAccount {
	return append([]TokenAccount(nil), s.tokenAccounts...)
}

// ParsedLedgers returns the validated ledgers in identity order.
func (s *GenesisSpec) ParsedLedgers() []Ledger { return append([]Ledger(nil), s.ledgers...) }
