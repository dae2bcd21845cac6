package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/errors"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/model"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/monitor"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/plugin"
)

// validateCapabilities requires a text-generation provider and every
// capability a plugin marks as required. Missing optional capabilities are
// reported as warnings.
func (r *Runtime) validateCapabilities(ctx context.Context) error {
	if !r.models.HasCapability(model.TextGenerationCapability) {
		return errors.Newf(errors.CodeStartup, "no model provider supplies %s", model.TextGenerationCapability).
			WithContext("capability", model.TextGenerationCapability)
	}

	var missing []string
	for _, p := range r.plugins.All() {
		req, ok := p.(plugin.CapabilityRequirer)
		if !ok {
			continue
		}
		for _, c := range req.RequiredCapabilities() {
			if r.models.HasCapability(c.ID) {
				continue
			}
			if c.Optional {
				r.logger.WarnContext(ctx, "runtime.startup.optional_capability_missing",
					slog.String("plugin_id", p.ID()),
					slog.String("capability", c.ID))
				r.monitor.Publish(ctx, monitor.NewEvent(monitor.EventRuntimeWarning,
					fmt.Sprintf("plugin %s: optional capability %s is not available", p.ID(), c.ID),
					map[string]any{"plugin": p.ID(), "capability": c.ID}))
				continue
			}
			missing = append(missing, p.ID()+" requires "+c.ID)
		}
	}
	if len(missing) > 0 {
		return errors.Newf(errors.CodeStartup, "missing required capabilities: %s", strings.Join(missing, "; "))
	}
	return nil
}
