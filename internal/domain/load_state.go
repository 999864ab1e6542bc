package domain

// LoadState is the status of a content loading pipeline
type LoadState int

const (
	LoadStateInitial LoadState = iota
	LoadStateLoading
	LoadStateHasData
	LoadStateFailed
)

func (s LoadState) String() string {
	switch s {
	case LoadStateInitial:
		return "initial"
	case LoadStateLoading:
		return "loading"
	case LoadStateHasData:
		return "hasData"
	case LoadStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
