// Package dedupe builds the in-memory identity index used to drop
// already-known companies before they re-enter the pipeline.
package dedupe

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/outboundlabs/leadflow/internal/store"
)

// normalize applies NFKC normalization, lowercases, and collapses runs of
// whitespace so cosmetic differences in provider data do not defeat dedup.
func normalize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// Fingerprint derives the stable identity key for a company in a city.
func Fingerprint(company, city string) string {
	return normalize(company) + "|" + normalize(city)
}

// NormalizeEmail canonicalizes an email for identity comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Index holds the known fingerprints and emails for one run. It is built
// once at run start and updated as new leads are stored, so a single pass
// never inserts the same company twice.
type Index struct {
	fingerprints map[string]struct{}
	emails       map[string]struct{}
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		fingerprints: make(map[string]struct{}),
		emails:       make(map[string]struct{}),
	}
}

// Build loads every stored lead's identity into a fresh index.
func Build(ctx context.Context, st store.Store) (*Index, error) {
	pairs, err := st.IdentityPairs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "dedupe: build index")
	}

	ix := NewIndex()
	for _, p := range pairs {
		ix.Register(p.Fingerprint, p.Email)
	}
	return ix, nil
}

// Exists reports whether the fingerprint or a non-empty email is already
// known.
func (ix *Index) Exists(fingerprint, email string) bool {
	if _, ok := ix.fingerprints[fingerprint]; ok {
		return true
	}
	if email = NormalizeEmail(email); email != "" {
		if _, ok := ix.emails[email]; ok {
			return true
		}
	}
	return false
}

// Register adds a lead's identity to the index. Empty emails are not
// indexed; two leads without email never collide on it.
func (ix *Index) Register(fingerprint, email string) {
	if fingerprint != "" {
		ix.fingerprints[fingerprint] = struct{}{}
	}
	if email = NormalizeEmail(email); email != "" {
		ix.emails[email] = struct{}{}
	}
}
