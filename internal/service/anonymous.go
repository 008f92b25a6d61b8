package service

import (
	"fmt"
	"strings"

	"github.com/sakif/starlit/internal/engagement"
)

var anonAdjectives = []string{
	"Whispering", "Dancing", "Soaring", "Gentle", "Mystic",
	"Radiant", "Serene", "Vibrant", "Cosmic", "Ethereal",
	"Luminous", "Tranquil", "Enchanted", "Harmonious", "Celestial",
	"Dreamy", "Melodic", "Peaceful", "Magical", "Stellar",
	"Wandering", "Floating", "Glowing", "Twinkling", "Breezy",
	"Sparkling", "Misty", "Shimmering", "Drifting", "Gliding",
	"Swaying", "Murmuring", "Rustling", "Swishing", "Sighing",
	"Bubbling", "Gurgling", "Rippling", "Splashing", "Trickling",
	"Humming", "Buzzing", "Chirping", "Singing", "Whistling",
}

var anonNouns = []string{
	"Dreamer", "Wanderer", "Explorer", "Seeker", "Traveler",
	"Observer", "Listener", "Thinker", "Creator", "Artist",
	"Poet", "Writer", "Sage", "Mystic", "Visionary",
	"Spirit", "Soul", "Heart", "Mind", "Star",
	"Moon", "Sun", "Cloud", "Wind", "River",
	"Ocean", "Mountain", "Forest", "Garden", "Flower",
	"Tree", "Bird", "Butterfly", "Dragonfly", "Phoenix",
	"Dragon", "Unicorn", "Pegasus", "Griffin", "Angel",
	"Fairy", "Elf", "Dwarf", "Wizard", "Knight",
	"Princess", "Prince", "Queen", "King",
}

// AnonymousName builds the pen name shown on public entries: a random
// adjective and noun followed by a number derived from the nickname, e.g.
// "GentleRiver433".
func AnonymousName(nickname string, rnd engagement.Rand) string {
	adj := anonAdjectives[rnd.IntN(len(anonAdjectives))]
	noun := anonNouns[rnd.IntN(len(anonNouns))]
	return fmt.Sprintf("%s%s%d", adj, noun, nicknameHash(nickname))
}

// nicknameHash sums the code points of the lowercase ASCII letters and
// digits in nickname, mod 10000.
func nicknameHash(nickname string) int {
	sum := 0
	for _, r := range strings.ToLower(nickname) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sum += int(r)
		}
	}
	return sum % 10000
}
