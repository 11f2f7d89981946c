package router

import (
	"errors"
	"fmt"

	"github.com/dennisdiepolder/monti/callrouter/internal/directory"
	"github.com/dennisdiepolder/monti/callrouter/internal/rules"
)

// ApplyConfig installs a routing file: queues and rules are replaced, new
// agents are registered and known agents get their profile updated without
// losing their live status. A file with no queues leaves the current queues
// in place. Problems are reported but do not stop the rest of the file from
// applying.
func (r *Router) ApplyConfig(f rules.File) []error {
	var errs []error
	if len(f.Queues) > 0 {
		errs = append(errs, r.queues.Configure(f.Queues)...)
	}
	errs = append(errs, r.rules.Replace(f.Rules)...)

	registered, updated := 0, 0
	for _, a := range f.Agents {
		err := r.dir.UpdateProfile(a)
		if errors.Is(err, directory.ErrAgentNotFound) {
			err = r.dir.Register(a)
			if err == nil {
				registered++
			}
		} else if err == nil {
			updated++
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("agent %q: %w", a.ID, err))
		}
	}

	r.logger.Info().
		Int("queues", len(f.Queues)).
		Int("rules", len(f.Rules)).
		Int("agents_registered", registered).
		Int("agents_updated", updated).
		Int("errors", len(errs)).
		Msg("routing configuration applied")

	r.Drain()
	return errs
}
