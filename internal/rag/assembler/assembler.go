package assembler

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/internal/domain/ragErrors"
	"github.com/akolanti/GroundedQA/internal/rag/vectorDB"
)

const noContext = "No relevant context found."

// Assembler merges document hits and web snippets into one ranked context
// that fits the budget. It holds no state besides its settings.
type Assembler struct {
	webWeight      float64
	dedupThreshold float64
}

func New(webWeight float64, dedupThreshold float64) (*Assembler, error) {
	if webWeight < 0 {
		return nil, ragErrors.InvalidConfig("web weight must not be negative, got %v", webWeight)
	}
	if dedupThreshold <= 0 || dedupThreshold > 1 {
		return nil, ragErrors.InvalidConfig("dedup threshold must be in (0, 1], got %v", dedupThreshold)
	}
	return &Assembler{webWeight: webWeight, dedupThreshold: dedupThreshold}, nil
}

type candidate struct {
	entry  commonModels.ContextEntry
	tokens map[string]struct{}
	order  int
}

// Assemble ranks by score (documents win ties, then input order), drops
// duplicates and stops at the first entry that no longer fits the budget.
// budget counts runes.
func (a *Assembler) Assemble(docs []vectorDB.ScoredEntry, web []commonModels.WebSnippet, budget int) (commonModels.RetrievedContext, error) {
	if budget <= 0 {
		return commonModels.RetrievedContext{}, ragErrors.InvalidConfig("context budget must be positive, got %d", budget)
	}

	candidates := make([]candidate, 0, len(docs)+len(web))
	for _, d := range docs {
		candidates = append(candidates, candidate{
			entry: commonModels.ContextEntry{
				Text:        d.Entry.Chunk.Text,
				SourceLabel: d.Entry.Label(),
				Score:       d.Score,
				Kind:        commonModels.SourceDocument,
				Key:         d.Entry.Key(),
			},
			order: len(candidates),
		})
	}
	for i, w := range web {
		candidates = append(candidates, candidate{
			entry: commonModels.ContextEntry{
				Text:        w.Snippet,
				SourceLabel: webLabel(w),
				Score:       a.webWeight / float64(1+i),
				Kind:        commonModels.SourceWeb,
				Key:         "web:" + w.URL,
			},
			order: len(candidates),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.entry.Score != cj.entry.Score {
			return ci.entry.Score > cj.entry.Score
		}
		if ci.entry.Kind != cj.entry.Kind {
			return ci.entry.Kind == commonModels.SourceDocument
		}
		return ci.order < cj.order
	})

	var rc commonModels.RetrievedContext
	var kept []candidate
	seen := map[string]bool{}

	for _, c := range candidates {
		if strings.TrimSpace(c.entry.Text) == "" {
			continue
		}
		// snippets without a url have no identity to compare
		if c.entry.Key != "web:" && seen[c.entry.Key] {
			continue
		}
		c.tokens = tokenSet(c.entry.Text)
		if a.nearDuplicate(c, kept) {
			continue
		}

		size := utf8.RuneCountInString(c.entry.Text)
		if rc.Size+size > budget {
			break
		}

		rc.Entries = append(rc.Entries, c.entry)
		rc.Size += size
		seen[c.entry.Key] = true
		kept = append(kept, c)
	}
	return rc, nil
}

func (a *Assembler) nearDuplicate(c candidate, kept []candidate) bool {
	for _, k := range kept {
		if jaccard(c.tokens, k.tokens) >= a.dedupThreshold {
			return true
		}
	}
	return false
}

// Format renders the numbered context block handed to the model.
func Format(rc commonModels.RetrievedContext) string {
	if len(rc.Entries) == 0 {
		return noContext
	}
	parts := make([]string, len(rc.Entries))
	for i, e := range rc.Entries {
		parts[i] = fmt.Sprintf("[Document %d] (Source: %s), (Type: %s)\n%s", i+1, e.SourceLabel, e.Kind, e.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Citations lists every entry of the context in rank order.
func Citations(rc commonModels.RetrievedContext) []commonModels.Citation {
	out := make([]commonModels.Citation, len(rc.Entries))
	for i, e := range rc.Entries {
		out[i] = commonModels.Citation{Label: e.SourceLabel, Kind: e.Kind, Rank: i + 1}
	}
	return out
}

func webLabel(w commonModels.WebSnippet) string {
	if w.URL != "" {
		return w.URL
	}
	return w.Title
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
