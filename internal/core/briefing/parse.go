package briefing

import (
	"regexp"
	"strings"

	"github.com/agenthands/moodmap/internal/core/common"
	"github.com/agenthands/moodmap/internal/core/model"
)

var headingRe = regexp.MustCompile(`(?i)\[\s*(what happened|key drivers|impact|watch next|what to watch)\s*\]`)

var headingSection = map[string]string{
	"what happened": model.SectionWhatHappened,
	"key drivers":   model.SectionKeyDrivers,
	"impact":        model.SectionImpact,
	"watch next":    model.SectionWhatToWatch,
	"what to watch": model.SectionWhatToWatch,
}

// ParseSections reads a generated briefing, either as a JSON object with the
// four section keys or as the bracketed "[What happened] ..." template. It
// returns the names of the sections that are missing or blank.
func ParseSections(response string) (model.Sections, []string) {
	fromJSON, err := common.ParseJSON[model.Sections](response)
	if err == nil {
		fromJSON = trimSections(fromJSON)
		if missing := MissingSections(fromJSON); len(missing) == 0 {
			return fromJSON, nil
		}
	}

	fromText := parseBracketed(response)
	textMissing := MissingSections(fromText)
	if err == nil {
		if jsonMissing := MissingSections(fromJSON); len(jsonMissing) <= len(textMissing) {
			return fromJSON, jsonMissing
		}
	}
	return fromText, textMissing
}

func parseBracketed(response string) model.Sections {
	var s model.Sections
	locs := headingRe.FindAllStringSubmatchIndex(response, -1)
	for i, loc := range locs {
		end := len(response)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		name := headingSection[strings.ToLower(strings.Join(strings.Fields(response[loc[2]:loc[3]]), " "))]
		body := strings.TrimSpace(response[loc[1]:end])
		if body == "" {
			continue
		}
		switch name {
		case model.SectionWhatHappened:
			s.WhatHappened = body
		case model.SectionKeyDrivers:
			s.KeyDrivers = body
		case model.SectionImpact:
			s.Impact = body
		case model.SectionWhatToWatch:
			s.WhatToWatch = body
		}
	}
	return s
}

func trimSections(s model.Sections) model.Sections {
	return model.Sections{
		WhatHappened: strings.TrimSpace(s.WhatHappened),
		KeyDrivers:   strings.TrimSpace(s.KeyDrivers),
		Impact:       strings.TrimSpace(s.Impact),
		WhatToWatch:  strings.TrimSpace(s.WhatToWatch),
	}
}

func MissingSections(s model.Sections) []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{model.SectionWhatHappened, s.WhatHappened},
		{model.SectionKeyDrivers, s.KeyDrivers},
		{model.SectionImpact, s.Impact},
		{model.SectionWhatToWatch, s.WhatToWatch},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}
