package briefing

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agenthands/moodmap/internal/core/common"
	"github.com/agenthands/moodmap/internal/core/model"
)

type moodPayload struct {
	Composite         float64  `json:"composite_score"`
	Category          string   `json:"category"`
	HeuristicTone     float64  `json:"heuristic_tone_normalized"`
	ExternalSentiment *float64 `json:"external_sentiment"`
	Degraded          bool     `json:"degraded"`
}

type analogPayload struct {
	Country    string  `json:"country"`
	Day        string  `json:"day"`
	Similarity float64 `json:"similarity"`
	Snippet    string  `json:"snippet"`
}

// Payload is the structured request handed to the generation service.
type Payload struct {
	Country   string          `json:"country"`
	Day       string          `json:"day"`
	Headlines int             `json:"headlines"`
	Context   string          `json:"context"`
	TopLabels []string        `json:"top_labels"`
	TopPeople []string        `json:"top_people,omitempty"`
	Mood      moodPayload     `json:"mood"`
	Analogs   []analogPayload `json:"analogs"`
}

func (a *Assembler) payload(doc model.CountryDayDocument, score model.MoodScore, analogs []model.SearchResult) Payload {
	p := Payload{
		Country:   doc.Country,
		Day:       doc.Day.Format(model.DayLayout),
		Headlines: doc.EventCount,
		Context:   common.Truncate(StripURLs(doc.TopicDoc), a.cfg.ContextChars),
		TopLabels: ReadableLabels(doc.TopLabels),
		TopPeople: readablePeople(doc.TopActors),
		Mood: moodPayload{
			Composite:         score.Composite,
			Category:          string(score.Category),
			HeuristicTone:     score.HeuristicTone,
			ExternalSentiment: score.ExternalSentiment,
			Degraded:          score.Degraded,
		},
		Analogs: make([]analogPayload, 0, len(analogs)),
	}
	for _, r := range analogs {
		p.Analogs = append(p.Analogs, analogPayload{
			Country:    r.Country,
			Day:        r.Day,
			Similarity: r.Similarity,
			Snippet:    common.Truncate(StripURLs(r.TopicDoc), a.cfg.SnippetChars),
		})
	}
	return p
}

var (
	urlRe        = regexp.MustCompile(`https?://\S+`)
	spaceRe      = regexp.MustCompile(`\s{2,}`)
	uspecRe      = regexp.MustCompile(`uspec_`)
	wbRe         = regexp.MustCompile(`wb_\d+_`)
	taxRe        = regexp.MustCompile(`tax_fncact_`)
	crisislexRe  = regexp.MustCompile(`crisislex_\S+`)
	noisyPersons = map[string]bool{"los angeles": true}
)

// StripURLs removes links, which only waste prompt budget.
func StripURLs(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(urlRe.ReplaceAllString(s, ""), " "))
}

// ReadableLabel turns a GDELT-style taxonomy token into plain words,
// e.g. "WB_2432_FRAGILITY_CONFLICT_AND_VIOLENCE" -> "Fragility Conflict And Violence".
func ReadableLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = uspecRe.ReplaceAllString(s, "")
	s = wbRe.ReplaceAllString(s, "")
	s = taxRe.ReplaceAllString(s, "tax ")
	s = crisislexRe.ReplaceAllString(s, "crisis response")
	s = strings.Join(strings.Fields(strings.ReplaceAll(s, "_", " ")), " ")
	return title(s)
}

// ReadableLabels maps and de-duplicates labels, keeping rank order.
func ReadableLabels(labels []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		r := ReadableLabel(l)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

func readablePeople(people []string) []string {
	var out []string
	for _, p := range people {
		p = strings.TrimSpace(p)
		if p == "" || noisyPersons[strings.ToLower(p)] {
			continue
		}
		out = append(out, title(p))
	}
	return out
}

// title builds a caser per call; a Caser must not be shared between goroutines.
func title(s string) string {
	return cases.Title(language.English).String(s)
}
