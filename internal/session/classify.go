package session

// Snapshot is the raw playback report a connector delivers. Times are in
// seconds as reported by the site; zero duration means unknown.
type Snapshot struct {
	Artist      string  `json:"artist"`
	Track       string  `json:"track"`
	Album       string  `json:"album,omitempty"`
	UniqueID    string  `json:"uniqueID,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	CurrentTime float64 `json:"currentTime,omitempty"`
	IsPlaying   bool    `json:"isPlaying"`
	TrackArt    string  `json:"trackArt,omitempty"`
}

// Identity extracts the identity tuple from the snapshot.
func (s Snapshot) Identity() Identity {
	return Identity{
		Artist:   s.Artist,
		Track:    s.Track,
		Album:    s.Album,
		UniqueID: s.UniqueID,
	}
}

// IsEmpty reports whether the snapshot carries nothing identifiable: no
// complete artist+track pair, no unique ID and no duration.
func (s Snapshot) IsEmpty() bool {
	hasPair := s.Artist != "" && s.Track != ""
	return !hasPair && s.UniqueID == "" && s.Duration <= 0
}

// Classification is the tag assigned to an incoming snapshot relative to
// the currently owned song.
type Classification int

const (
	// ClassEmpty marks a snapshot with nothing identifiable in it.
	ClassEmpty Classification = iota

	// ClassSameSong marks a snapshot whose identity matches the owned song.
	ClassSameSong

	// ClassNewSong marks a playing snapshot with a different identity.
	ClassNewSong

	// ClassIgnoredTransient marks an identity change reported while not
	// playing, which must not replace the owned song. Connectors briefly
	// report metadata for the next track before playback actually starts.
	ClassIgnoredTransient
)

// String returns a human-readable name for the classification.
func (c Classification) String() string {
	switch c {
	case ClassEmpty:
		return "empty"
	case ClassSameSong:
		return "same-song"
	case ClassNewSong:
		return "new-song"
	case ClassIgnoredTransient:
		return "ignored-transient"
	default:
		return "unknown"
	}
}

// Classify maps a snapshot and the identity of the currently owned song
// (nil when none is owned) onto a classification. It is a pure function:
// all stateful consequences live in the controller.
func Classify(snap Snapshot, current *Identity) Classification {
	if snap.IsEmpty() {
		return ClassEmpty
	}
	if current != nil && snap.Identity().Equal(*current) {
		return ClassSameSong
	}
	if !snap.IsPlaying {
		return ClassIgnoredTransient
	}
	return ClassNewSong
}
