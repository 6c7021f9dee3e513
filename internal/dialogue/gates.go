// internal/dialogue/gates.go
package dialogue

import (
	"math/rand"
	"strings"
	"time"
)

// historyEntry is one remembered line of lobby conversation.
type historyEntry struct {
	Speaker   string
	Text      string
	At        time.Time
	Simulated bool
}

// topicWords is the vocabulary the topic extractor recognizes.
var topicWords = []string{
	"music", "movie", "film", "book", "game", "sport", "food", "travel",
	"work", "school", "family", "friend", "weather", "technology", "art",
	"science", "politics", "news", "hobby", "pet", "car", "house", "money",
	"love", "relationship", "adventure", "creative", "design", "space",
	"quantum", "brain", "psychology", "philosophy", "nature", "ocean",
}

// extractTopics returns the recognized topic words contained in the message.
func extractTopics(message string) []string {
	lower := strings.ToLower(message)
	var out []string
	for _, w := range topicWords {
		if strings.Contains(lower, w) {
			out = append(out, w)
		}
	}
	return out
}

// sharesTopic reports whether the message touches any of the profile's
// favorite topics. Matching is substring in either direction so "movies"
// catches "movie".
func sharesTopic(message string, profile Profile) bool {
	for _, topic := range extractTopics(message) {
		for _, fav := range profile.FavoriteTopics {
			if strings.Contains(topic, fav) || strings.Contains(fav, topic) {
				return true
			}
		}
	}
	return false
}

// shouldRespond decides whether one simulated participant chimes in on a
// message. The gates are evaluated in a fixed priority order and the first
// one that applies decides; rng is injected so tests pin the dice.
//
//  1. Never reply to yourself.
//  2. Mentioned by name: 0.8.
//  3. Message touches a favorite topic: 0.7.
//  4. Message is a question: 0.6.
//  5. Two of the last three lines were simulated: 0.2 (back off, let the
//     humans talk).
//  6. Otherwise the profile's chattiness.
func shouldRespond(rng *rand.Rand, speaker, message string, profile Profile, history []historyEntry) bool {
	if speaker == profile.Name {
		return false
	}
	if strings.Contains(strings.ToLower(message), strings.ToLower(profile.Name)) {
		return rng.Float64() < 0.8
	}
	if sharesTopic(message, profile) {
		return rng.Float64() < 0.7
	}
	if strings.Contains(message, "?") {
		return rng.Float64() < 0.6
	}
	recent := history
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	simulated := 0
	for _, h := range recent {
		if h.Simulated {
			simulated++
		}
	}
	if simulated >= 2 {
		return rng.Float64() < 0.2
	}
	return rng.Float64() < profile.Chattiness
}
