package model

type Match struct {
	DocumentID string  `json:"document_id"`
	Similarity float64 `json:"similarity"`
}

type SearchResult struct {
	Match
	Country  string `json:"country"`
	Day      string `json:"day"`
	TopicDoc string `json:"topic_doc"`
}
