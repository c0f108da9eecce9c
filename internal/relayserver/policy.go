package relayserver

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
)

type Policy interface {
	OnBackPressure(room *Room, member *Member) BackpressureAction
}

// SimplePolicy disconnects members that cannot keep up; their client reconnects.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(*Room, *Member) BackpressureAction {
	return KickMember
}
