package config

// DefaultPrompts are used for any prompt left empty in the TOML file.
// Each briefing prompt takes the JSON request payload as its only argument;
// the sentiment prompt takes the country-day context text.
func DefaultPrompts() Prompts {
	return Prompts{
		Briefing: `You are a news analyst. Country is an ISO code.
Write a concise daily briefing for the country-day described in the JSON payload below.
Return ONLY a JSON object with exactly these keys:
{"what_happened": "...", "key_drivers": "...", "impact": "...", "what_to_watch": "..."}
Rules:
- Only summarize events for the country in the payload.
- Use at least two items from "top_labels" and one name from "top_people" when present.
- Do not output raw taxonomy tokens or event codes.
- Include at least one concrete number if available.
- Use the analogs as historical context where relevant.
- Limit each section to 1-2 sentences.

Payload:
%s`,
		BriefingStrict: `Your previous answer did not follow the required format.
Return ONLY a JSON object, no prose and no markdown, with exactly these four non-empty string keys:
"what_happened", "key_drivers", "impact", "what_to_watch".
Each value must be 1-2 sentences about the country-day in the payload below.

Payload:
%s`,
		Sentiment: `You are a sentiment analysis model. Read the news context and respond with a single number between -1 (very negative) and 1 (very positive).
Context:
%s
Sentiment score:`,
	}
}
