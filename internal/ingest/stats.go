package ingest

import "github.com/RoaringBitmap/roaring/roaring64"

// Stats accumulates the outcome of one export run. The bitmaps hold note
// primary keys.
type Stats struct {
	Processed *roaring64.Bitmap // written, decoded or scraped
	Scraped   *roaring64.Bitmap // written from the raw-text fallback
	Skipped   *roaring64.Bitmap // unchanged since the previous manifest
	Failed    *roaring64.Bitmap

	Attachments int // attachment files exported
	Degraded    int // attachments replaced by a placeholder
}

func NewStats() *Stats {
	return &Stats{
		Processed: roaring64.New(),
		Scraped:   roaring64.New(),
		Skipped:   roaring64.New(),
		Failed:    roaring64.New(),
	}
}

// Total is the number of notes the run looked at.
func (s *Stats) Total() uint64 {
	return s.Processed.GetCardinality() + s.Skipped.GetCardinality() + s.Failed.GetCardinality()
}

func key(id int64) uint64 { return uint64(id) }
