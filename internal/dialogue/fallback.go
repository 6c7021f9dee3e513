// internal/dialogue/fallback.go
package dialogue

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
)

// genericPhrases are filler replies a completion endpoint sometimes emits.
// Short messages built around them get swapped for a templated line.
var genericPhrases = []string{
	"totally", "you right", "exactly", "true that", "for sure",
	"nice", "cool", "awesome", "yeah", "definitely", "agreed",
	"same here", "makes sense", "good point", "i agree",
	"that's interesting", "sounds good", "absolutely", "right on",
}

// isGenericResponse flags low-content replies: a known filler phrase inside a
// message under 25 characters.
func isGenericResponse(response string) bool {
	if len(response) >= 25 {
		return false
	}
	lower := strings.ToLower(response)
	for _, phrase := range genericPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// fallbackReply substitutes a profile-flavored line when generation failed or
// came back generic.
func fallbackReply(rng *rand.Rand, profile Profile) string {
	t := profile.FavoriteTopics
	replies := []string{
		fmt.Sprintf("That connects to something I read about %s", t[0]),
		fmt.Sprintf("Interesting perspective on %s", t[1]),
		"Makes me think of this study I saw recently",
		fmt.Sprintf("The %s angle is fascinating here", t[0]),
		"Never thought about it from that direction",
		fmt.Sprintf("That's like the opposite of what happens in %s", t[2]),
		"Reminds me of this counterintuitive fact I learned",
	}
	return replies[rng.Intn(len(replies))]
}

// fallbackStarter substitutes a conversation opener when generation failed.
func fallbackStarter(rng *rand.Rand, profile Profile) string {
	t := profile.FavoriteTopics
	starters := []string{
		fmt.Sprintf("Just discovered this weird connection between %s and mathematics", t[0]),
		fmt.Sprintf("The way %s evolved is actually mind-bending", t[1]),
		fmt.Sprintf("Found this counterintuitive fact about %s today", t[2]),
		fmt.Sprintf("Been thinking about how %s defies common sense", t[0]),
		fmt.Sprintf("Stumbled upon something that completely changed my view on %s", t[1]),
		fmt.Sprintf("The science behind %s is way weirder than expected", t[2]),
	}
	return starters[rng.Intn(len(starters))]
}

var (
	leadingStageDirection = regexp.MustCompile(`^\*[^*]*\*\s*`)
	stageDirections       = regexp.MustCompile(`\*[^*]*\*`)
	rolePrefix            = regexp.MustCompile(`(?i)^(AI|Bot|Assistant):\s*`)
	personaPrefix         = regexp.MustCompile(`(?i)^(As |Being |I'm |I am )`)
	sentenceEnd           = regexp.MustCompile(`[.!?]$`)
)

// cleanResponse strips the artifacts completion endpoints wrap replies in:
// stage directions, speaker prefixes, surrounding quotes, persona openers.
// Replies over 120 characters are cut back to their first sentence.
func cleanResponse(response, botName string) string {
	response = leadingStageDirection.ReplaceAllString(response, "")
	response = stageDirections.ReplaceAllString(response, "")
	namePrefix := regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(botName) + `:\s*`)
	response = namePrefix.ReplaceAllString(response, "")
	response = rolePrefix.ReplaceAllString(response, "")
	response = strings.Trim(response, `"'`)
	response = personaPrefix.ReplaceAllString(response, "")

	if len(response) > 120 {
		parts := regexp.MustCompile(`[.!?]+`).Split(response, -1)
		response = parts[0]
		if !sentenceEnd.MatchString(response) {
			response += "."
		}
	}
	return strings.TrimSpace(response)
}
