package linkbender

// State is a step of the scrape pipeline
type State int

const (
	StateStart State = iota
	StateNormalized
	StateCacheHit
	StateFetching
	StateExtracted
	StateAnnotated
	StatePersisted
	StateDone
	StateErrored
)

var stateNames = [...]string{
	StateStart:      "start",
	StateNormalized: "normalized",
	StateCacheHit:   "cache_hit",
	StateFetching:   "fetching",
	StateExtracted:  "extracted",
	StateAnnotated:  "annotated",
	StatePersisted:  "persisted",
	StateDone:       "done",
	StateErrored:    "errored",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}
