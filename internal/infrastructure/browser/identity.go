package browser

import (
	"math/rand"
	"sync"

	"github.com/partpicker/pricesync/internal/domain"
)

// defaultUserAgents is a small set of current desktop browser strings.
// Rotation reduces fingerprinting-based blocking; it is not a correctness
// or security mechanism.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
}

// IdentityPool hands out rotating identity profiles: round-robin over the
// user-agent list with a jittered viewport per call.
type IdentityPool struct {
	mu     sync.Mutex
	agents []string
	next   int
	rand   *rand.Rand
}

// NewIdentityPool creates a pool over the default user-agent set.
func NewIdentityPool(seed int64) *IdentityPool {
	return &IdentityPool{
		agents: defaultUserAgents,
		rand:   rand.New(rand.NewSource(seed)),
	}
}

// Next returns the next identity profile in rotation.
func (p *IdentityPool) Next() domain.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := domain.Identity{
		UserAgent:      p.agents[p.next%len(p.agents)],
		ViewportWidth:  1280 + p.rand.Intn(640),
		ViewportHeight: 720 + p.rand.Intn(360),
	}
	p.next++
	return id
}
