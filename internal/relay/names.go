package relay

import (
	"crypto/rand"
	"math/big"
	"strings"
)

var (
	moods = []string{
		"amber", "brisk", "calm", "dusky", "eager", "fuzzy", "gentle", "hushed",
		"idle", "jolly", "keen", "lucid", "mellow", "nimble", "odd", "plucky",
		"quiet", "rusty", "sunny", "tidy", "upbeat", "vivid", "witty", "zesty",
	}
	things = []string{
		"anchor", "beacon", "cobalt", "dynamo", "ember", "fjord", "glacier", "harbor",
		"island", "jetty", "kettle", "lantern", "meadow", "nebula", "orchard", "pebble",
		"quartz", "ripple", "summit", "tundra", "valley", "willow", "yarrow", "zephyr",
	}
	creatures = []string{
		"otter", "heron", "lynx", "marmot", "newt", "osprey", "puffin", "quail",
		"raven", "stoat", "tapir", "vole", "wombat", "badger", "crane", "dingo",
	}
)

// RoomName returns a random, easy to read room id such as
// "plucky-harbor-otter".
func RoomName() string {
	return strings.Join([]string{pick(moods), pick(things), pick(creatures)}, "-")
}

func pick(words []string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		return words[0]
	}
	return words[n.Int64()]
}
