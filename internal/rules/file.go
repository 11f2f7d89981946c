package rules

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/callqueue"
	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"gopkg.in/yaml.v3"
)

var ErrDuplicateID = errors.New("duplicate id")

// File is the routing configuration read from disk
type File struct {
	Agents []types.Agent       `yaml:"agents"`
	Queues []callqueue.Config  `yaml:"queues"`
	Rules  []types.RoutingRule `yaml:"rules"`
}

// LoadFile reads and decodes a routing configuration file. Unknown keys are
// rejected so that typos surface instead of silently matching everything.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read routing file: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat routing file: %w", err)
	}
	return Parse(data, info.ModTime())
}

// Parse decodes routing configuration. Rules without a creation time get
// loadedAt plus their position in the file, so file order breaks ties.
func Parse(data []byte, loadedAt time.Time) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("decode routing file: %w", err)
	}

	for i := range f.Rules {
		if f.Rules[i].CreatedAt.IsZero() {
			f.Rules[i].CreatedAt = loadedAt.Add(time.Duration(i) * time.Millisecond)
		}
	}
	for i := range f.Agents {
		if f.Agents[i].Status == "" {
			f.Agents[i].Status = types.StatusOffline
		}
	}

	if err := f.checkIDs(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Check validates every rule and returns all problems found
func (f File) Check() []error {
	var errs []error
	for _, r := range f.Rules {
		if err := Validate(r); err != nil {
			errs = append(errs, fmt.Errorf("rule %q: %w", r.ID, err))
		}
	}
	for _, q := range f.Queues {
		if q.ID == "" || q.MaxSize <= 0 {
			errs = append(errs, fmt.Errorf("queue %q: %w", q.ID, callqueue.ErrInvalidConfig))
		}
	}
	return errs
}

func (f File) checkIDs() error {
	seen := make(map[string]bool)
	for _, a := range f.Agents {
		if seen["agent/"+a.ID] {
			return fmt.Errorf("agent %q: %w", a.ID, ErrDuplicateID)
		}
		seen["agent/"+a.ID] = true
	}
	for _, q := range f.Queues {
		if seen["queue/"+q.ID] {
			return fmt.Errorf("queue %q: %w", q.ID, ErrDuplicateID)
		}
		seen["queue/"+q.ID] = true
	}
	for _, r := range f.Rules {
		if r.ID != "" && seen["rule/"+r.ID] {
			return fmt.Errorf("rule %q: %w", r.ID, ErrDuplicateID)
		}
		seen["rule/"+r.ID] = true
	}
	return nil
}
