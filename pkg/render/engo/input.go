// pkg/render/engo/input.go
package engo

import (
	"sort"
	"strconv"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"

	"github.com/opd-ai/go-dronesim/pkg/input"
)

// browserCodes translates engo keys into the browser key codes the input
// package binds roles to.
var browserCodes = map[engo.Key]int{
	engo.KeyArrowLeft:  input.KeyArrowLeft,
	engo.KeyArrowUp:    input.KeyArrowUp,
	engo.KeyArrowRight: input.KeyArrowRight,
	engo.KeyArrowDown:  input.KeyArrowDown,
	engo.KeySpace:      32,
	engo.KeyA:          65,
	engo.KeyB:          66,
	engo.KeyC:          67,
	engo.KeyD:          68,
	engo.KeyE:          input.KeyE,
	engo.KeyF:          70,
	engo.KeyG:          71,
	engo.KeyH:          72,
	engo.KeyI:          73,
	engo.KeyJ:          74,
	engo.KeyK:          75,
	engo.KeyL:          76,
	engo.KeyM:          77,
	engo.KeyN:          78,
	engo.KeyO:          79,
	engo.KeyP:          80,
	engo.KeyQ:          input.KeyQ,
	engo.KeyR:          82,
	engo.KeyS:          input.KeyS,
	engo.KeyT:          84,
	engo.KeyU:          85,
	engo.KeyV:          86,
	engo.KeyW:          input.KeyW,
	engo.KeyX:          88,
	engo.KeyY:          89,
	engo.KeyZ:          90,
}

// Binding ties an engo button to the browser key code it reports.
type Binding struct {
	Button string
	Key    engo.Key
	Code   int
}

// Bindings lists one button per key code in km that engo can produce,
// ordered by code.
func Bindings(km input.KeyMap) []Binding {
	byCode := make(map[int]engo.Key, len(browserCodes))
	for k, code := range browserCodes {
		byCode[code] = k
	}

	out := make([]Binding, 0, len(km))
	for code, role := range km {
		k, ok := byCode[code]
		if !ok {
			continue
		}
		out = append(out, Binding{Button: role.String() + "-" + strconv.Itoa(code), Key: k, Code: code})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// KeySink receives key transitions.
type KeySink interface {
	HandleKey(code int, pressed bool) bool
}

// button is the part of engo.Button the input system reads.
type button interface {
	JustPressed() bool
	JustReleased() bool
}

// InputSystem forwards engo key presses and releases to a KeySink as
// browser key codes.
type InputSystem struct {
	sink     KeySink
	bindings []Binding
	button   func(name string) button
}

// NewInputSystem binds every key in km that engo can report.
func NewInputSystem(sink KeySink, km input.KeyMap) *InputSystem {
	if km == nil {
		km = input.DefaultKeyMap()
	}
	return &InputSystem{
		sink:     sink,
		bindings: Bindings(km),
		button:   func(name string) button { return engo.Input.Button(name) },
	}
}

// Register declares the system's buttons with engo. Call it once the
// window exists.
func (is *InputSystem) Register() {
	for _, b := range is.bindings {
		engo.Input.RegisterButton(b.Button, b.Key)
	}
}

// Remove satisfies ecs.System.
func (is *InputSystem) Remove(ecs.BasicEntity) {}

// Update reports this frame's transitions. Presses are delivered before
// releases so a tap within one frame still registers.
func (is *InputSystem) Update(dt float32) {
	for _, b := range is.bindings {
		if is.button(b.Button).JustPressed() {
			is.sink.HandleKey(b.Code, true)
		}
	}
	for _, b := range is.bindings {
		if is.button(b.Button).JustReleased() {
			is.sink.HandleKey(b.Code, false)
		}
	}
}
