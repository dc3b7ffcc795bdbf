package mysql

const insertBatchSQL = `
INSERT INTO batches (id, source, created_at, total, failed)
VALUES (?, ?, ?, ?, ?)
`

// Note: `text` is reserved; keep it quoted everywhere.
const insertResultsPrefix = "INSERT INTO analysis_results\n  (batch_id, position, customer_id, `text`, rating, sentiment, confidence, score, issues, failure)\nVALUES "

// 10 params per row; keeps a chunk well under the 65535 placeholder limit.
const resultsPerInsert = 500

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const getBatchSQL = `
SELECT id, source, created_at
FROM batches
WHERE id = ?
`

const listResultsSQL = "SELECT customer_id, `text`, rating, sentiment, confidence, score, issues, failure\n" +
	"FROM analysis_results\n" +
	"WHERE batch_id = ?\n" +
	"ORDER BY position"

const listBatchesSQL = `
SELECT id, source, created_at, total, failed
FROM batches
ORDER BY created_at DESC, id
LIMIT ?
`
