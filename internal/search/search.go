package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/EmpoweredVote/appellations-backend/internal/catalog"
	"github.com/sahilm/fuzzy"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Tier scores. Higher is better.
const (
	ScoreExact     = 100
	ScorePrefix    = 90
	ScoreSubstring = 70
	ScoreAllWords  = 50
)

// DefaultMaxResults caps Search when the caller passes a non-positive limit.
const DefaultMaxResults = 20

// MinQueryLength is the shortest normalized query that is searched at all.
const MinQueryLength = 2

// Result is a catalog entry with its match score.
type Result struct {
	catalog.ParcelSummary
	Score int `json:"score"`
}

// Engine ranks catalog entries against short, human-typed appellation names.
// It favours recall: partial names and word fragments still match.
type Engine struct {
	catalog catalog.Provider
	lang    language.Tag
}

// New creates an engine over the live catalog.
func New(p catalog.Provider) *Engine {
	return &Engine{catalog: p, lang: language.French}
}

// NormalizeQuery trims and lower-cases a query.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// Search runs the three matching tiers and returns at most maxResults results,
// best score first and alphabetical by nom within a score.
func (e *Engine) Search(query string, maxResults int) []Result {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	q := NormalizeQuery(query)
	if utf8.RuneCountInString(q) < MinQueryLength {
		return nil
	}
	idx := e.catalog.Current()
	if idx == nil {
		return nil
	}

	var results []Result
	seen := make(map[string]struct{})
	add := func(p catalog.ParcelSummary, score int) {
		key := p.Nom + "-" + p.Commune
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		results = append(results, Result{ParcelSummary: p, Score: score})
	}

	// Exact names come straight from the accelerator.
	for _, i := range idx.ByNormalizedName(q) {
		add(idx.At(i), ScoreExact)
	}

	for i := 0; i < idx.Len(); i++ {
		p := idx.At(i)
		nom := catalog.NormalizeName(p.Nom)
		if strings.HasPrefix(nom, q) {
			add(p, ScorePrefix)
		} else if strings.Contains(catalog.NormalizeName(p.NomComplet), q) {
			add(p, ScoreSubstring)
		}
	}

	words := strings.Fields(q)
	for i := 0; i < idx.Len(); i++ {
		p := idx.At(i)
		nom := catalog.NormalizeName(p.Nom)
		complet := catalog.NormalizeName(p.NomComplet)
		if containsAll(nom, complet, words) {
			add(p, ScoreAllWords)
		}
	}

	col := collate.New(e.lang)
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return col.CompareString(results[i].Nom, results[j].Nom) < 0
	})

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

func containsAll(nom, complet string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(nom, w) && !strings.Contains(complet, w) {
			return false
		}
	}
	return true
}

// Matching returns up to limit entries whose nom or nomComplet contains the
// query, in catalog order. It backs the free-text results page.
func (e *Engine) Matching(query string, limit int) []catalog.ParcelSummary {
	q := strings.ToLower(query)
	if q == "" {
		return nil
	}
	idx := e.catalog.Current()
	if idx == nil {
		return nil
	}

	var out []catalog.ParcelSummary
	for i := 0; i < idx.Len(); i++ {
		p := idx.At(i)
		if strings.Contains(catalog.NormalizeName(p.NomComplet), q) || strings.Contains(catalog.NormalizeName(p.Nom), q) {
			out = append(out, p)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

// Suggest proposes appellation names close to a misspelt query. It is only
// meant for "did you mean" hints when Search finds nothing.
func (e *Engine) Suggest(query string, limit int) []string {
	q := NormalizeQuery(query)
	if utf8.RuneCountInString(q) < MinQueryLength {
		return nil
	}
	idx := e.catalog.Current()
	if idx == nil {
		return nil
	}

	names, keys := distinctNames(idx)
	matches := fuzzy.Find(q, keys)

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, names[m.Index])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// distinctNames lists each appellation name once in first-seen order, along
// with its lower-cased match key.
func distinctNames(idx *catalog.Index) (names, keys []string) {
	seen := make(map[string]struct{})
	for i := 0; i < idx.Len(); i++ {
		nom := idx.At(i).Nom
		k := catalog.NormalizeName(nom)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		names = append(names, nom)
		keys = append(keys, k)
	}
	return names, keys
}
