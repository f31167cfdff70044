// pkg/input/keymap.go
package input

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Role is a normalized directional control, independent of the key that
// produced it.
type Role int

const (
	RoleStrafeLeft Role = iota
	RoleStrafeRight
	RoleForward
	RoleBackward
	RoleLiftUp
	RoleLiftDown
	RoleYawRight
	RoleYawLeft

	// RoleCount is the number of roles; it sizes the held-key array.
	RoleCount
)

var roleNames = [RoleCount]string{
	"strafe-left", "strafe-right",
	"forward", "backward",
	"lift-up", "lift-down",
	"yaw-right", "yaw-left",
}

// String returns the role's kebab-case name.
func (r Role) String() string {
	if r < 0 || r >= RoleCount {
		return "role(" + strconv.Itoa(int(r)) + ")"
	}
	return roleNames[r]
}

// Axis identifies one component of the intent vector.
type Axis int

const (
	AxisSurgeX Axis = iota
	AxisSurgeY
	AxisSurgeZ
	AxisYaw
)

// contribution is the axis and unit sign a role adds while held.
// Forward-going roles sit on the negative side of their axis.
type contribution struct {
	axis Axis
	sign float64
}

var contributions = [RoleCount]contribution{
	RoleStrafeLeft:  {AxisSurgeX, -1},
	RoleStrafeRight: {AxisSurgeX, +1},
	RoleForward:     {AxisSurgeZ, -1},
	RoleBackward:    {AxisSurgeZ, +1},
	RoleLiftUp:      {AxisSurgeY, -1},
	RoleLiftDown:    {AxisSurgeY, +1},
	RoleYawRight:    {AxisYaw, -1},
	RoleYawLeft:     {AxisYaw, +1},
}

// Browser key codes of the default bindings.
const (
	KeyArrowLeft  = 37
	KeyArrowUp    = 38
	KeyArrowRight = 39
	KeyArrowDown  = 40
	KeyE          = 69
	KeyQ          = 81
	KeyS          = 83
	KeyW          = 87
)

// KeyMap maps raw key codes to roles.
type KeyMap map[int]Role

// DefaultKeyMap returns the standard bindings: Q/E strafe, arrow up/down
// surge, W/S lift and arrow left/right yaw.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		KeyQ:          RoleStrafeLeft,
		KeyE:          RoleStrafeRight,
		KeyArrowUp:    RoleForward,
		KeyArrowDown:  RoleBackward,
		KeyW:          RoleLiftUp,
		KeyS:          RoleLiftDown,
		KeyArrowRight: RoleYawRight,
		KeyArrowLeft:  RoleYawLeft,
	}
}

// Lookup returns the role bound to code.
func (m KeyMap) Lookup(code int) (Role, bool) {
	r, ok := m[code]
	return r, ok
}

// CodeFor returns the lowest key code bound to role.
func (m KeyMap) CodeFor(role Role) (int, bool) {
	codes := make([]int, 0, 1)
	for code, r := range m {
		if r == role {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return 0, false
	}
	sort.Ints(codes)
	return codes[0], true
}

var keyNames = map[string]int{
	"arrowleft":  KeyArrowLeft,
	"arrowup":    KeyArrowUp,
	"arrowright": KeyArrowRight,
	"arrowdown":  KeyArrowDown,
	"e":          KeyE,
	"q":          KeyQ,
	"s":          KeyS,
	"w":          KeyW,
}

// ParseKey accepts a key name (ArrowUp, W, ...) or a decimal key code.
func ParseKey(s string) (int, error) {
	s = strings.TrimSpace(s)
	if code, ok := keyNames[strings.ToLower(s)]; ok {
		return code, nil
	}
	code, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unknown key %q", s)
	}
	return code, nil
}
