package voice

// Mode selects how the user talks to the agent.
type Mode int

const (
	// Silent disables voice entirely; input is typed.
	Silent Mode = iota

	// ListenOnly transcribes speech but leaves sending to the user's
	// final-result confirmation; replies are never spoken.
	ListenOnly

	// Conversational transcribes, auto-submits on silence, speaks replies
	// and allows spoken barge-in.
	Conversational
)

func (m Mode) String() string {
	switch m {
	case ListenOnly:
		return "listen"
	case Conversational:
		return "conversational"
	default:
		return "silent"
	}
}

// State is the controller's interaction state. Exactly one state is
// active at a time; Listening, Processing and Speaking are only reachable
// while Mode != Silent.
type State int

const (
	Idle State = iota
	Listening
	Processing
	Speaking
	Errored
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case Processing:
		return "processing"
	case Speaking:
		return "speaking"
	case Errored:
		return "errored"
	default:
		return "idle"
	}
}
