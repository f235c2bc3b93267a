package domain

// ArenaTypeFlags is a bitmask of the arena kinds a session allows.
type ArenaTypeFlags uint8

const (
	Allow2D ArenaTypeFlags = 1 << iota
	Allow3D
)

// ArenaType names a concrete arena kind inside a map.
type ArenaType string

const (
	ArenaType2D ArenaType = "2D"
	ArenaType3D ArenaType = "3D"
)

// CombatMode is the camera/control mode pushed to a participant on spawn.
type CombatMode string

const (
	CombatModeTwoDimensional   CombatMode = "2D"
	CombatModeThreeDimensional CombatMode = "3D"
)

// DefaultMap is used when settings do not name a map.
const DefaultMap = "happyhome"

// Settings holds per-session configuration chosen by the host.
type Settings struct {
	Map       string         `json:"map"`
	ArenaType ArenaTypeFlags `json:"arenaType"`
}

// DefaultSettings returns the settings a session gets when none are supplied.
func DefaultSettings() Settings {
	return Settings{
		Map:       DefaultMap,
		ArenaType: Allow2D | Allow3D,
	}
}

// Normalize fills zero fields with defaults.
func (s Settings) Normalize() Settings {
	if s.Map == "" {
		s.Map = DefaultMap
	}
	if s.ArenaType == 0 {
		s.ArenaType = Allow2D | Allow3D
	}
	return s
}

// Allows reports whether the flags permit the given arena type.
func (f ArenaTypeFlags) Allows(t ArenaType) bool {
	switch t {
	case ArenaType2D:
		return f&Allow2D != 0
	case ArenaType3D:
		return f&Allow3D != 0
	default:
		return false
	}
}

// ArenaRef points at one arena inside the session's map.
type ArenaRef struct {
	Type  ArenaType `json:"type"`
	Index int       `json:"index"`
}

// StartingArena picks the arena participants spawn in. 2D wins when allowed.
func (s Settings) StartingArena() (ArenaRef, CombatMode) {
	if s.ArenaType.Allows(ArenaType2D) || !s.ArenaType.Allows(ArenaType3D) {
		return ArenaRef{Type: ArenaType2D, Index: 0}, CombatModeTwoDimensional
	}
	return ArenaRef{Type: ArenaType3D, Index: 0}, CombatModeThreeDimensional
}
