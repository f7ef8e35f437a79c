package aggregator

import (
	"sort"
	"strings"

	"agrosense/internal/models"
)

// ChildKeys returns the sorted keys of an object node, or nil
func ChildKeys(node any) []string {
	m, ok := node.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DeviceIDs returns the children of a master node that are devices
func DeviceIDs(masterNode any, prefix string) []string {
	var ids []string
	for _, k := range ChildKeys(masterNode) {
		if strings.HasPrefix(k, prefix) {
			ids = append(ids, k)
		}
	}
	return ids
}

// DeviceLabel extracts the part inside the parentheses: "Slave(A1)" -> "A1".
// Ids without that shape are returned unchanged.
func DeviceLabel(id string) string {
	open := strings.IndexByte(id, '(')
	end := strings.LastIndexByte(id, ')')
	if open < 0 || end <= open+1 {
		return id
	}
	return id[open+1 : end]
}

// Latest returns the newest valid point of a device node, or nil
func (a *Aggregator) Latest(node any) *models.DataPoint {
	raw := SplitDeviceRaw(node)
	epochs := sortedEpochs(raw.Records)
	for i := len(epochs) - 1; i >= 0; i-- {
		e := epochs[i]
		if p, ok := a.normalizer.Normalize(e.key, raw.Records[e.key], raw.Signal); ok {
			return &p
		}
	}
	return nil
}

// FleetSnapshot returns one entry per id, in order. Ids missing from
// devices, or without a valid record, get a nil Latest (offline).
func (a *Aggregator) FleetSnapshot(ids []string, devices map[string]any) []models.OverviewDevice {
	out := make([]models.OverviewDevice, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.OverviewDevice{
			ID:     id,
			Latest: a.Latest(devices[id]),
		})
	}
	return out
}
