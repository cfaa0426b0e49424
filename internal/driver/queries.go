package driver

const (
	UpsertRecordQuery = `
		MERGE (r:Record {id: $id})
		ON CREATE SET r.ingested_at = $ingested_at
		SET r += $props
		RETURN r.id AS id
	`

	UpdateRecordQuery = `
		MATCH (r:Record {id: $id})
		SET r += $props
		RETURN r.id AS id
	`

	// FetchRecordsQuery is completed with a WHERE clause built from a Filter.
	FetchRecordsQuery = `
		MATCH (r:Record)
		%s
		RETURN properties(r) AS props
		ORDER BY r.ingested_at, r.id
	`
)
