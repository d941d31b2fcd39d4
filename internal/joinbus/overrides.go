package joinbus

import (
	"github.com/nerrad567/gray-logic-display/internal/bridges/display"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/config"
)

// StaticOverrides is a fixed set of override tables keyed by join-map key.
type StaticOverrides map[string]map[string]display.JoinOverride

// StaticOverridesFromConfig converts the join_maps section of the config.
func StaticOverridesFromConfig(tables map[string]config.JoinMapOverride) StaticOverrides {
	out := make(StaticOverrides, len(tables))
	for key, table := range tables {
		joins := make(map[string]display.JoinOverride, len(table))
		for name, o := range table {
			joins[name] = display.JoinOverride{JoinNumber: o.JoinNumber, JoinSpan: o.JoinSpan}
		}
		out[key] = joins
	}
	return out
}

// JoinOverrides implements display.OverrideSource. The returned map is a copy.
func (s StaticOverrides) JoinOverrides(joinMapKey string) (map[string]display.JoinOverride, bool) {
	table, ok := s[joinMapKey]
	if !ok {
		return nil, false
	}
	out := make(map[string]display.JoinOverride, len(table))
	for name, o := range table {
		out[name] = o
	}
	return out, true
}

// ChainOverrides consults each source in order; the first table found wins.
type ChainOverrides []display.OverrideSource

// JoinOverrides implements display.OverrideSource.
func (c ChainOverrides) JoinOverrides(joinMapKey string) (map[string]display.JoinOverride, bool) {
	for _, src := range c {
		if src == nil {
			continue
		}
		if table, ok := src.JoinOverrides(joinMapKey); ok {
			return table, true
		}
	}
	return nil, false
}
