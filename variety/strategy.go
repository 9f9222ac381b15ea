package variety

// Strategy controls how wide a net a pick casts over the provider's pages.
type Strategy int

const (
	// StrategyExploring serves early picks straight off the first page.
	StrategyExploring Strategy = iota

	// StrategyExpanding widens to the first ten pages once the first page
	// wears thin.
	StrategyExpanding

	// StrategyDeepSearch distributes picks across the provider's full page
	// range by hashing.
	StrategyDeepSearch
)

func (s Strategy) String() string {
	switch s {
	case StrategyExploring:
		return "exploring"
	case StrategyExpanding:
		return "expanding"
	case StrategyDeepSearch:
		return "deep-search"
	default:
		return "unknown"
	}
}

// Policy holds the tunable constants of the engine. The defaults match the
// documented behavior; they are plumbed through config so deployments can
// tighten or loosen the progression.
type Policy struct {
	// ExploringLimit is the shown count below which picks stay on page 1.
	ExploringLimit int

	// ExpandingLimit is the shown count below which picks cover the
	// expanding page window.
	ExpandingLimit int

	// Page windows per strategy, in pages from page 1 (deep search instead
	// hashes across DeepPages).
	ExploringPages int
	ExpandingPages int
	DeepPages      int

	// ProbeStride is the index step when a candidate was already shown.
	ProbeStride int

	// ProbeAttempts bounds how many strides are tried before falling back
	// to the least-recently-shown candidate.
	ProbeAttempts int
}

// DefaultPolicy returns the standard progression: 10 picks exploring,
// 30 picks expanding over 10 pages, then deep search over 100 pages with a
// stride-7, 5-attempt probe.
func DefaultPolicy() Policy {
	return Policy{
		ExploringLimit: 10,
		ExpandingLimit: 30,
		ExploringPages: 1,
		ExpandingPages: 10,
		DeepPages:      100,
		ProbeStride:    7,
		ProbeAttempts:  5,
	}
}

// normalize backfills unset policy fields with the defaults.
func (p Policy) normalize() Policy {
	def := DefaultPolicy()
	if p.ExploringLimit <= 0 {
		p.ExploringLimit = def.ExploringLimit
	}
	if p.ExpandingLimit <= p.ExploringLimit {
		p.ExpandingLimit = p.ExploringLimit + def.ExpandingLimit - def.ExploringLimit
	}
	if p.ExploringPages <= 0 {
		p.ExploringPages = def.ExploringPages
	}
	if p.ExpandingPages <= 0 {
		p.ExpandingPages = def.ExpandingPages
	}
	if p.DeepPages <= 0 {
		p.DeepPages = def.DeepPages
	}
	if p.ProbeStride <= 0 {
		p.ProbeStride = def.ProbeStride
	}
	if p.ProbeAttempts <= 0 {
		p.ProbeAttempts = def.ProbeAttempts
	}
	return p
}

// Select maps the number of images already shown for a query to a strategy.
// Pure function of its argument.
func (p Policy) Select(shownCount int) Strategy {
	switch {
	case shownCount < p.ExploringLimit:
		return StrategyExploring
	case shownCount < p.ExpandingLimit:
		return StrategyExpanding
	default:
		return StrategyDeepSearch
	}
}

// window returns how many pages a strategy spans.
func (p Policy) window(s Strategy) int {
	switch s {
	case StrategyExploring:
		return p.ExploringPages
	case StrategyExpanding:
		return p.ExpandingPages
	default:
		return p.DeepPages
	}
}
