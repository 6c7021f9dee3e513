// internal/dialogue/profiles.go
package dialogue

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/colehaney/parlor/internal/session"
)

// simulatedAvatars cycle through the spawned participants in join order.
var simulatedAvatars = []string{
	"simple_1", "simple_2", "simple_3", "simple_4",
	"simple_5", "simple_6", "simple_7",
}

// commonNames is the pool of display names for simulated participants.
var commonNames = []string{
	"Alex", "Sam", "Jordan", "Casey", "Riley", "Morgan", "Taylor", "Avery",
	"Blake", "Quinn", "Jamie", "Dakota", "Sage", "River", "Phoenix", "Rowan",
	"Charlie", "Emery", "Finley", "Hayden", "Indigo", "Kai", "Lane", "Marley",
}

// archetype bundles a personality trait with the topics it gravitates to and
// how it tends to phrase replies.
type archetype struct {
	Trait         string
	Topics        []string
	ResponseStyle string
}

var archetypes = []archetype{
	{"curious and analytical", []string{"science", "space", "psychology"}, "asks thoughtful questions"},
	{"creative and artistic", []string{"movies", "music", "design"}, "shares imaginative perspectives"},
	{"logical and practical", []string{"technology", "efficiency", "problem-solving"}, "provides clear reasoning"},
	{"adventurous and energetic", []string{"travel", "culture", "experiences"}, "tells engaging stories"},
	{"philosophical and deep", []string{"existence", "meaning", "society"}, "explores deeper meanings"},
	{"witty and observational", []string{"humor", "daily life", "human behavior"}, "makes clever observations"},
}

// Profile is the persona behind one simulated participant.
type Profile struct {
	Name           string
	Personality    string
	FavoriteTopics []string
	ResponseStyle  string
	Chattiness     float64 // 0.4..0.7, base probability of chiming in
}

func newProfile(rng *rand.Rand) Profile {
	a := archetypes[rng.Intn(len(archetypes))]
	return Profile{
		Name:           commonNames[rng.Intn(len(commonNames))],
		Personality:    a.Trait,
		FavoriteTopics: a.Topics,
		ResponseStyle:  a.ResponseStyle,
		Chattiness:     rng.Float64()*0.3 + 0.4,
	}
}

// newSimulatedParticipant builds the roster entry plus its profile. The index
// picks the avatar so spawned bots stay visually distinct.
func newSimulatedParticipant(rng *rand.Rand, index int) (*session.Participant, Profile) {
	profile := newProfile(rng)
	p := &session.Participant{
		ID:     uuid.New(),
		Name:   profile.Name,
		Avatar: simulatedAvatars[index%len(simulatedAvatars)],
		Kind:   session.KindSimulated,
	}
	return p, profile
}
