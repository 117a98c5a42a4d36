package loadgen

import (
	"fmt"
	"math/rand"
)

// Synthetic site shape: a handful of hot paths and a long tail.
var hotPaths = []string{
	"/", "/about", "/blog", "/contact", "/downloads/cv.pdf",
}

var actions = []string{"view", "click", "scroll", "download", "share"}

// Action mix: views dominate real traffic.
const viewBias = 0.7

// generateEvents builds the synthetic batch. Visitors are drawn from a
// fixed pool so unique-visitor counts are predictable.
func generateEvents(cfg *Config) []event {
	events := make([]event, cfg.NumEvents)
	for i := range events {
		events[i] = event{
			Action:  randomAction(),
			Path:    randomPath(i),
			Visitor: fmt.Sprintf("203.0.113.%d", rand.Intn(cfg.Visitors)),
		}
	}
	return events
}

func randomAction() string {
	if rand.Float64() < viewBias {
		return "view"
	}
	return actions[1+rand.Intn(len(actions)-1)]
}

func randomPath(i int) string {
	if rand.Intn(4) > 0 {
		return hotPaths[rand.Intn(len(hotPaths))]
	}
	return fmt.Sprintf("/blog/post-%d", i%50)
}
