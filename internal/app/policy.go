package app

import "github.com/dkeye/relay/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

func (a BackpressureAction) String() string {
	switch a {
	case KickMember:
		return "kick"
	case DropFrame:
		return "drop"
	default:
		return "none"
	}
}

// Policy decides what happens to a member whose outbound queue is full.
type Policy interface {
	OnBackPressure(session *core.Session, member *core.Client) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(session *core.Session, member *core.Client) BackpressureAction {
	return KickMember
}
