// Package irrigation reads and flips the irrigation actuator flag kept in
// the realtime store.
package irrigation

import (
	"context"
	"fmt"
	"strings"

	"agrosense/internal/realtime"
	"agrosense/pkg/logger"
)

// DefaultPathTemplate is the device-scoped control flag
const DefaultPathTemplate = "{root}/{master}/{device}/Control/Irrigation"

// Bridge writes the actuator flag. It keeps no local copy of the state:
// after Toggle the displayed value changes only when the store pushes it.
type Bridge struct {
	store    realtime.Store
	root     string
	template string
}

// NewBridge creates a bridge; an empty template selects DefaultPathTemplate
func NewBridge(store realtime.Store, root, template string) *Bridge {
	if template == "" {
		template = DefaultPathTemplate
	}
	return &Bridge{store: store, root: root, template: template}
}

// Path resolves the control path for a device
func (b *Bridge) Path(master, device string) string {
	r := strings.NewReplacer("{root}", b.root, "{master}", master, "{device}", device)
	return realtime.JoinPath(realtime.SplitPath(r.Replace(b.template))...)
}

// Read returns the current flag; a missing flag is off
func (b *Bridge) Read(ctx context.Context, master, device string) (bool, error) {
	snap, err := b.store.Get(ctx, b.Path(master, device))
	if err != nil {
		return false, fmt.Errorf("failed to read irrigation state: %w", err)
	}
	return IsOn(snap.Value), nil
}

// Toggle writes the negation of current as 0 or 1
func (b *Bridge) Toggle(ctx context.Context, master, device string, current bool) error {
	next := 1
	if current {
		next = 0
	}
	path := b.Path(master, device)
	if err := b.store.Set(ctx, path, next); err != nil {
		return fmt.Errorf("failed to write irrigation state: %w", err)
	}
	logger.Printf("Irrigation: %s/%s set to %d", master, device, next)
	return nil
}

// IsOn interprets a stored flag. 1 and true are on; anything else is off.
func IsOn(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v == 1
	case int:
		return v == 1
	case string:
		return v == "1" || strings.EqualFold(v, "true")
	}
	return false
}
