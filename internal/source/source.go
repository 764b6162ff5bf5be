// Package source discovers candidate companies through Places text search,
// rotating cities and queries so daily passes do not hammer one market.
package source

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/outboundlabs/leadflow/internal/resilience"
	"github.com/outboundlabs/leadflow/pkg/places"
)

// City is one target location for discovery.
type City struct {
	Name    string
	Country string
}

// Config controls a discovery pass.
type Config struct {
	Cities           []City
	Queries          []string
	QueriesPerCity   int
	PerLocationLimit int
	CallBudget       int
	ExcludeKeywords  []string
	Delay            time.Duration
}

// Report is the outcome of one discovery pass: the candidates found plus
// the classified per-pair provider failures, which the caller folds into
// the run summary.
type Report struct {
	Candidates []Candidate
	Failures   []error
}

// Candidate is a discovered company before enrichment.
type Candidate struct {
	PlaceID     string
	Company     string
	Address     string
	Phone       string
	Website     string
	City        string
	Country     string
	Rating      float64
	ReviewCount int
}

// Sourcer runs discovery against the Places API.
type Sourcer struct {
	client  places.Client
	cfg     Config
	rng     *rand.Rand
	limiter *rate.Limiter
}

// Option configures a Sourcer.
type Option func(*Sourcer)

// WithRand injects a deterministic random source for tests.
func WithRand(rng *rand.Rand) Option {
	return func(s *Sourcer) {
		s.rng = rng
	}
}

// New creates a Sourcer. City and query order is randomized per pass.
func New(client places.Client, cfg Config, opts ...Option) *Sourcer {
	if cfg.QueriesPerCity <= 0 {
		cfg.QueriesPerCity = 3
	}
	if cfg.PerLocationLimit <= 0 {
		cfg.PerLocationLimit = 5
	}
	if cfg.CallBudget <= 0 {
		cfg.CallBudget = 60
	}
	delay := cfg.Delay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	s := &Sourcer{
		client:  client,
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		limiter: rate.NewLimiter(rate.Every(delay), 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Discover walks shuffled cities, sampling queries per city until the call
// budget runs out. A provider failure skips the remaining work for that
// query only; the pass carries on and the classified failure is reported.
func (s *Sourcer) Discover(ctx context.Context) (*Report, error) {
	log := zap.L().Named("source")

	cities := make([]City, len(s.cfg.Cities))
	copy(cities, s.cfg.Cities)
	s.rng.Shuffle(len(cities), func(i, j int) {
		cities[i], cities[j] = cities[j], cities[i]
	})

	budget := s.cfg.CallBudget
	seen := make(map[string]bool)
	rep := &Report{}

	for _, city := range cities {
		for _, query := range s.sampleQueries() {
			if budget <= 0 {
				log.Info("call budget exhausted",
					zap.Int("candidates", len(rep.Candidates)))
				return rep, nil
			}
			budget--

			if err := s.limiter.Wait(ctx); err != nil {
				return rep, err
			}

			text := query + " in " + city.Name + ", " + city.Country
			resp, err := s.client.TextSearch(ctx, text, s.cfg.PerLocationLimit)
			if err != nil {
				if ctx.Err() != nil {
					return rep, ctx.Err()
				}
				classified := classify(err)
				rep.Failures = append(rep.Failures, classified)
				log.Warn("text search failed, skipping query",
					zap.String("query", text),
					zap.Error(classified))
				continue
			}

			for _, p := range resp.Places {
				if p.BusinessStatus != "" && p.BusinessStatus != "OPERATIONAL" {
					continue
				}
				if s.excluded(p.DisplayName.Text) {
					continue
				}
				// Adjacent city/query pairs can return the same place.
				if p.ID != "" && seen[p.ID] {
					continue
				}
				seen[p.ID] = true
				rep.Candidates = append(rep.Candidates, Candidate{
					PlaceID:     p.ID,
					Company:     p.DisplayName.Text,
					Address:     p.FormattedAddress,
					Phone:       p.NationalPhoneNumber,
					Website:     p.WebsiteURI,
					City:        city.Name,
					Country:     city.Country,
					Rating:      p.Rating,
					ReviewCount: p.UserRatingCount,
				})
			}
		}
	}

	log.Info("discovery pass complete",
		zap.Int("candidates", len(rep.Candidates)),
		zap.Int("failures", len(rep.Failures)),
		zap.Int("calls_remaining", budget))
	return rep, nil
}

// sampleQueries picks up to QueriesPerCity distinct queries.
func (s *Sourcer) sampleQueries() []string {
	n := s.cfg.QueriesPerCity
	if n > len(s.cfg.Queries) {
		n = len(s.cfg.Queries)
	}
	idx := s.rng.Perm(len(s.cfg.Queries))[:n]

	out := make([]string, n)
	for i, j := range idx {
		out[i] = s.cfg.Queries[j]
	}
	return out
}

func (s *Sourcer) excluded(company string) bool {
	name := strings.ToLower(company)
	for _, kw := range s.cfg.ExcludeKeywords {
		if kw != "" && strings.Contains(name, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// classify tags provider-side failures so run summaries can count them.
func classify(err error) error {
	var se *places.StatusError
	if errors.As(err, &se) && resilience.IsTransientHTTPStatus(se.StatusCode) {
		return resilience.Unavailable("places", err)
	}
	if resilience.IsTransient(err) {
		return resilience.Unavailable("places", err)
	}
	return err
}
