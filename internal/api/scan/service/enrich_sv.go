package scanService

import (
	"sync"

	"Shelfscan/internal/api/scan"
	contextPkg "Shelfscan/pkg/context"
	"Shelfscan/pkg/log"

	"golang.org/x/net/context"
)

// Lookups run concurrently but bounded, to respect the external catalog's
// own rate limits.
const maxConcurrentLookups = 5

// enrichWithMetadata fills ExternalMetadata for every book not already in the
// collection. Each goroutine writes only its own index, so detection order is
// preserved and no lock is needed. A failed lookup degrades that one book and
// never the batch.
func (s *scanService) enrichWithMetadata(ctx context.Context, books []scan.EnrichedDetectedBook) {
	if s.lookup == nil {
		return
	}

	requestID := contextPkg.GetRequestID(ctx)

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentLookups)

	for i := range books {
		if books[i].InCollection {
			continue
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			book := &books[i]

			record, err := s.lookup.Lookup(ctx, book.Title, book.Author, book.ISBN)
			if err != nil {
				s.log.WithFields(log.Fields{
					"request_id": requestID,
					"title":      book.Title,
					"error":      err.Error(),
				}).Warn("External metadata lookup failed")
				return
			}
			if record == nil {
				return
			}

			book.ExternalMetadata = &scan.ExternalMetadata{
				CoverURL:  record.CoverURL,
				Publisher: record.Publisher,
				Year:      record.Year,
				Category:  record.Category,
				ISBN:      record.ISBN,
			}

			// The catalog's ISBN is a fallback only; a detected ISBN wins.
			if book.ISBN == "" && record.ISBN != "" {
				book.ISBN = record.ISBN
			}
		}(i)
	}

	wg.Wait()
}
