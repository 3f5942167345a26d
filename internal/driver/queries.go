package driver

const (
	SaveCountriesQuery = `
		UNWIND $rows AS row
		MERGE (c:Country {code: row.code})
		SET c.name = row.name
	`

	SaveCountryDaysQuery = `
		UNWIND $rows AS row
		MERGE (d:CountryDay {id: row.id})
		SET d.country = row.country,
			d.day = row.day,
			d.event_count = row.event_count,
			d.mean_tone = row.mean_tone,
			d.min_tone = row.min_tone,
			d.max_tone = row.max_tone,
			d.top_labels = row.top_labels,
			d.top_people = row.top_people,
			d.topic_doc = row.topic_doc,
			d.composite_score = row.composite_score,
			d.heuristic_tone = row.heuristic_tone,
			d.category = row.category,
			d.degraded = row.degraded,
			d.run_id = row.run_id
		WITH d, row
		MATCH (c:Country {code: row.country})
		MERGE (c)-[:HAS_DAY]->(d)
	`

	// A new generation replaces the similarity edges of the days it covers.
	DeleteSimilarQuery = `
		UNWIND $ids AS id
		MATCH (:CountryDay {id: id})-[r:SIMILAR_TO]->()
		DELETE r
	`

	SaveSimilarQuery = `
		UNWIND $rows AS row
		MATCH (a:CountryDay {id: row.source_id})
		MATCH (b:CountryDay {id: row.target_id})
		MERGE (a)-[r:SIMILAR_TO]->(b)
		SET r.similarity = row.similarity,
			r.rank = row.rank,
			r.generation_id = row.generation_id
	`

	SaveThemesQuery = `
		UNWIND $rows AS row
		MATCH (d:CountryDay {id: row.id})
		SET d.theme = row.theme,
			d.theme_size = row.theme_size,
			d.theme_generation_id = row.generation_id
	`

	SaveBriefingsQuery = `
		UNWIND $rows AS row
		MATCH (d:CountryDay {id: row.id})
		SET d.what_happened = row.what_happened,
			d.key_drivers = row.key_drivers,
			d.impact = row.impact,
			d.what_to_watch = row.what_to_watch,
			d.briefed_at = row.generated_at
	`

	GetSimilarQuery = `
		MATCH (a:CountryDay {id: $id})-[r:SIMILAR_TO]->(b:CountryDay)
		RETURN b.id AS id, b.country AS country, b.day AS day, r.similarity AS similarity
		ORDER BY r.similarity DESC, b.id ASC
		LIMIT $limit
	`
)
