package chunking

import (
	"shipclass/internal/models"
)

const (
	// DefaultBatchSize is the number of rows sent to the classifier per call.
	DefaultBatchSize = 100
	// DefaultChunkSize is the number of rows written to each chunk file.
	DefaultChunkSize = 5000
)

// Split cuts records into ordered, contiguous batches of size rows. Only the
// last batch may be shorter. A non-positive size yields a single batch.
func Split(records []models.Record, size int) []models.Batch {
	if len(records) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(records)
	}

	batches := make([]models.Batch, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, models.Batch{
			Number:  len(batches),
			Start:   records[start].Index,
			Records: records[start:end],
		})
	}
	return batches
}

// Ranges returns the [start, end) row ranges Split would produce for n rows.
// It is used where rows are not yet materialized as records, e.g. when cutting
// a source table into chunk files.
func Ranges(n, size int) [][2]int {
	if n <= 0 {
		return nil
	}
	if size <= 0 {
		size = n
	}
	ranges := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		ranges = append(ranges, [2]int{start, end})
	}
	return ranges
}
