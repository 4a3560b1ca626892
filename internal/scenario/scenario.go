// Package scenario loads and runs YAML-described scripts against a fresh
// MockStore.
//
// A scenario configures the mock, drives its operations and states the
// expected outcome of each step:
//
//	name: not-found
//	steps:
//	  - op: configure
//	    status: -25300
//	  - op: find
//	    service: svc
//	    account: user
//	    expect:
//	      status: item_not_found
package scenario

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/benaskins/credmock/internal/keychain"
)

// Op names a step's operation.
type Op string

const (
	OpConfigure Op = "configure"
	OpFind      Op = "find"
	OpAdd       Op = "add"
	OpPassword  Op = "password"
	OpAddCalled Op = "add_called"
)

// Scenario is the top-level structure of a scenario file.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`

	// Path is the file the scenario was loaded from.
	Path string `yaml:"-"`
}

type Step struct {
	Op      Op               `yaml:"op"`
	Service string           `yaml:"service,omitempty"`
	Account string           `yaml:"account,omitempty"`
	Secret  HexBytes         `yaml:"secret,omitempty"` // add only
	Status  *keychain.Status `yaml:"status,omitempty"` // configure only
	Expect  *Expect          `yaml:"expect,omitempty"`
}

type Expect struct {
	Status            *keychain.Status `yaml:"status,omitempty"`
	Secret            HexBytes         `yaml:"secret,omitempty"`
	AddCalled         *bool            `yaml:"add_called,omitempty"`
	ContractViolation bool             `yaml:"contract_violation,omitempty"`
}

// HexBytes wraps a byte slice for YAML unmarshaling from hex strings like
// "deadbeef". An explicit empty string yields a non-nil empty slice.
type HexBytes []byte

func (h *HexBytes) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hex %q: %w", s, err)
	}
	if len(b) == 0 {
		*h = HexBytes{}
		return nil
	}
	*h = HexBytes(b)
	return nil
}

func (h HexBytes) MarshalYAML() (any, error) {
	return hex.EncodeToString(h), nil
}

// Load reads and parses a scenario from a YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	sc.Path = path

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("validating scenario %s: %w", path, err)
	}

	return &sc, nil
}

// LoadDir reads all YAML scenarios from a directory, ordered by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("listing scenarios in %s: %w", dir, err)
	}

	// Also match .yml
	ymlEntries, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("listing scenarios in %s: %w", dir, err)
	}
	entries = append(entries, ymlEntries...)
	sort.Strings(entries)

	var scenarios []*Scenario
	for _, path := range entries {
		sc, err := Load(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}

	return scenarios, nil
}

// LoadPaths loads every file and directory in paths.
func LoadPaths(paths []string) ([]*Scenario, error) {
	var all []*Scenario
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			scs, err := LoadDir(p)
			if err != nil {
				return nil, err
			}
			all = append(all, scs...)
			continue
		}
		sc, err := Load(p)
		if err != nil {
			return nil, err
		}
		all = append(all, sc)
	}
	return all, nil
}

// Validate checks that a scenario is well-formed.
func (sc *Scenario) Validate() error {
	if sc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	for i, st := range sc.Steps {
		if err := st.validate(); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, st.Op, err)
		}
	}
	return nil
}

func (st *Step) validate() error {
	switch st.Op {
	case OpConfigure:
		if st.Status == nil {
			return fmt.Errorf("status is required")
		}
		if st.Expect != nil {
			return fmt.Errorf("expect is not valid for configure")
		}
		return nil
	case OpFind, OpPassword, OpAdd, OpAddCalled:
		// ok
	default:
		return fmt.Errorf("op must be \"configure\", \"find\", \"add\", \"password\", or \"add_called\", got %q", st.Op)
	}

	if st.Status != nil {
		return fmt.Errorf("status is only valid for configure")
	}
	if st.Op != OpAdd && st.Secret != nil {
		return fmt.Errorf("secret is only valid for add")
	}

	e := st.Expect
	if e == nil {
		return nil
	}
	if e.ContractViolation && st.Op != OpAdd {
		return fmt.Errorf("expect.contract_violation is only valid for add")
	}
	if e.AddCalled != nil && st.Op != OpAddCalled {
		return fmt.Errorf("expect.add_called is only valid for add_called")
	}
	if st.Op == OpAddCalled && e.AddCalled == nil {
		return fmt.Errorf("expect.add_called is required")
	}
	if e.Secret != nil && st.Op != OpFind && st.Op != OpPassword {
		return fmt.Errorf("expect.secret is only valid for find and password")
	}
	if e.Status != nil && st.Op != OpFind && st.Op != OpAdd {
		return fmt.Errorf("expect.status is only valid for find and add")
	}
	return nil
}
