package domain

import (
	"errors"
	"fmt"
)

// Motion is a stick direction relative to the combatant's facing.
type Motion string

const (
	MotionNeutral     Motion = "neutral"
	MotionUp          Motion = "up"
	MotionDown        Motion = "down"
	MotionForward     Motion = "forward"
	MotionBack        Motion = "back"
	MotionUpForward   Motion = "up_forward"
	MotionUpBack      Motion = "up_back"
	MotionDownForward Motion = "down_forward"
	MotionDownBack    Motion = "down_back"
)

// Button is an attack or action button.
type Button string

const (
	ButtonLight   Button = "light"
	ButtonMedium  Button = "medium"
	ButtonHeavy   Button = "heavy"
	ButtonSpecial Button = "special"
	ButtonDash    Button = "dash"
	ButtonJump    Button = "jump"
)

var (
	motions = map[Motion]struct{}{
		MotionNeutral: {}, MotionUp: {}, MotionDown: {}, MotionForward: {}, MotionBack: {},
		MotionUpForward: {}, MotionUpBack: {}, MotionDownForward: {}, MotionDownBack: {},
	}
	buttons = map[Button]struct{}{
		ButtonLight: {}, ButtonMedium: {}, ButtonHeavy: {}, ButtonSpecial: {}, ButtonDash: {}, ButtonJump: {},
	}
)

// Valid reports whether m is a known direction.
func (m Motion) Valid() bool {
	_, ok := motions[m]
	return ok
}

// Valid reports whether b is a known button.
func (b Button) Valid() bool {
	_, ok := buttons[b]
	return ok
}

// Token is one element of a motion sequence: either a Motion or a Button.
type Token string

// Valid reports whether the token names a known direction or button.
func (t Token) Valid() bool {
	return Motion(t).Valid() || Button(t).Valid()
}

// CommandNormal is an exact direction + button pair.
type CommandNormal struct {
	Direction Motion `json:"direction"`
	Button    Button `json:"button"`
}

// InputKind tags the shape of a submitted input.
type InputKind int

const (
	InputNone InputKind = iota
	InputButton
	InputCommandNormal
	InputMotion
)

var ErrInvalidInput = errors.New("invalid input")

// Input is a raw submission from a participant. Exactly one field is set.
type Input struct {
	Button  Button         `json:"button,omitempty"`
	Command *CommandNormal `json:"command,omitempty"`
	Motion  []Token        `json:"motion,omitempty"`
}

// Kind returns the populated shape.
func (in Input) Kind() InputKind {
	switch {
	case in.Button != "":
		return InputButton
	case in.Command != nil:
		return InputCommandNormal
	case len(in.Motion) > 0:
		return InputMotion
	default:
		return InputNone
	}
}

// Validate checks that exactly one shape is set and every token is known.
func (in Input) Validate() error {
	set := 0
	if in.Button != "" {
		set++
	}
	if in.Command != nil {
		set++
	}
	if len(in.Motion) > 0 {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: expected exactly one of button, command, motion", ErrInvalidInput)
	}
	switch in.Kind() {
	case InputButton:
		if !in.Button.Valid() {
			return fmt.Errorf("%w: unknown button %q", ErrInvalidInput, in.Button)
		}
	case InputCommandNormal:
		if !in.Command.Direction.Valid() || !in.Command.Button.Valid() {
			return fmt.Errorf("%w: unknown command normal %v", ErrInvalidInput, *in.Command)
		}
	case InputMotion:
		for _, tok := range in.Motion {
			if !tok.Valid() {
				return fmt.Errorf("%w: unknown motion token %q", ErrInvalidInput, tok)
			}
		}
	}
	return nil
}

// Normalize turns a plain button press into the command normal (Neutral, button).
func (in Input) Normalize() Input {
	if in.Kind() == InputButton {
		return Input{Command: &CommandNormal{Direction: MotionNeutral, Button: in.Button}}
	}
	return in
}
