package scanService

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"sync"
	"testing"
	"time"

	"Shelfscan/internal/api/scan"
	scanRepository "Shelfscan/internal/api/scan/repository"
	"Shelfscan/internal/entity"
	"Shelfscan/pkg/booklookup"
	"Shelfscan/pkg/provider"
	"Shelfscan/pkg/utils"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

type fakeProvider struct {
	shelfResult  *provider.ShelfAnalysisResult
	singleResult *provider.SingleBookResult
	err          error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) AnalyzeShelf(_ context.Context, _ []byte, _ provider.AnalyzeOptions) (*provider.ShelfAnalysisResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.shelfResult, nil
}

func (f *fakeProvider) AnalyzeSingleBook(_ context.Context, _ []byte, _ provider.AnalyzeOptions) (*provider.SingleBookResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.singleResult, nil
}

func (f *fakeProvider) ValidateConfig() error {
	return nil
}

func (f *fakeProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{MaxImageSizeMB: 20, SupportsVision: true}
}

type fakeRepository struct {
	mu         sync.Mutex
	books      []entity.Book
	listErr    error
	createErr  error
	created    []entity.Book
	committed  bool
	rolledBack bool
}

func (f *fakeRepository) NewClient(_ bool) (scanRepository.Client, error) {
	return scanRepository.Client{
		Book: &fakeBookStore{repo: f},
		Commit: func() error {
			f.committed = true
			return nil
		},
		Rollback: func() error {
			f.rolledBack = true
			return nil
		},
	}, nil
}

type fakeBookStore struct {
	repo *fakeRepository
}

func (s *fakeBookStore) GetBooksByUserID(_ context.Context, _ string) ([]entity.Book, error) {
	if s.repo.listErr != nil {
		return nil, s.repo.listErr
	}
	return s.repo.books, nil
}

func (s *fakeBookStore) CreateBook(_ context.Context, book entity.Book) error {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	if s.repo.createErr != nil && len(s.repo.created) == 1 {
		return s.repo.createErr
	}
	s.repo.created = append(s.repo.created, book)
	return nil
}

type fakeLookup struct {
	mu       sync.Mutex
	records  map[string]*booklookup.Record
	failures map[string]error
	calls    []string
}

func (f *fakeLookup) Lookup(_ context.Context, title, _, _ string) (*booklookup.Record, error) {
	f.mu.Lock()
	f.calls = append(f.calls, title)
	f.mu.Unlock()

	if err, ok := f.failures[title]; ok {
		return nil, err
	}
	return f.records[title], nil
}

type fakeUtils struct {
	counter int
}

func (f *fakeUtils) NewULIDFromTimestamp(_ time.Time) (string, error) {
	f.counter++
	return fmt.Sprintf("ulid-%d", f.counter), nil
}

func (f *fakeUtils) ValidateImageFile(_ *multipart.FileHeader) error { return nil }

func (f *fakeUtils) ReadFileBytes(_ multipart.File) ([]byte, error) { return nil, nil }

func (f *fakeUtils) DecodeBase64Image(_ string) ([]byte, error) { return nil, nil }

func (f *fakeUtils) OptimizeImage(data []byte, _, _ int) ([]byte, error) { return data, nil }

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestService(fp *fakeProvider, repo *fakeRepository, lookup *fakeLookup, u utils.IUtils) IScanService {
	return NewScanService(newTestLogger(), repo, fp, lookup, nil, u)
}

func confPtr(v float64) *float64 { return &v }

func TestAnalyzeShelf_MatchesAndEnriches(t *testing.T) {
	fp := &fakeProvider{
		shelfResult: &provider.ShelfAnalysisResult{
			Books: []provider.DetectedBook{
				{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593", Confidence: confPtr(0.95)},
				{Title: "The Hobbit", Confidence: confPtr(0.9)},
				{Title: "", ReadabilityStatus: provider.ReadabilityUnreadable, Confidence: confPtr(0.2)},
			},
			TotalDetected: 3,
		},
	}
	repo := &fakeRepository{
		books: []entity.Book{
			{ID: "dune-id", Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593"},
		},
	}
	lookup := &fakeLookup{
		records: map[string]*booklookup.Record{
			"The Hobbit": {
				Author:    "J.R.R. Tolkien",
				Publisher: "Allen & Unwin",
				Year:      "1937",
				ISBN:      "9780048231888",
				CoverURL:  "https://covers.example/hobbit.jpg",
			},
		},
	}

	svc := newTestService(fp, repo, lookup, &fakeUtils{})

	result, err := svc.AnalyzeShelf(context.Background(), "user-1", []byte("img"), provider.AnalyzeOptions{})
	require.NoError(t, err)
	require.Len(t, result.EnrichedBooks, 3)

	// Detection order is preserved through matching and enrichment.
	assert.Equal(t, "Dune", result.EnrichedBooks[0].Title)
	assert.Equal(t, "The Hobbit", result.EnrichedBooks[1].Title)
	assert.Equal(t, "", result.EnrichedBooks[2].Title)

	assert.True(t, result.EnrichedBooks[0].InCollection)
	assert.Equal(t, "dune-id", result.EnrichedBooks[0].ExistingBookID)
	assert.Nil(t, result.EnrichedBooks[0].ExternalMetadata)

	require.NotNil(t, result.EnrichedBooks[1].ExternalMetadata)
	assert.Equal(t, "Allen & Unwin", result.EnrichedBooks[1].ExternalMetadata.Publisher)
	// The catalog ISBN backfills a detection that had none.
	assert.Equal(t, "9780048231888", result.EnrichedBooks[1].ISBN)

	assert.Equal(t, 3, result.Stats.TotalDetected)
	assert.Equal(t, 1, result.Stats.InCollection)
	assert.Equal(t, 2, result.Stats.NotInCollection)

	// Default selection skips owned and unreadable detections.
	assert.Equal(t, []int{1}, result.DefaultSelection())
}

func TestAnalyzeShelf_ProviderErrorIsFatal(t *testing.T) {
	provErr := provider.NewError(provider.CodeRateLimitExceeded, "fake", "slow down", nil)
	fp := &fakeProvider{err: provErr}

	svc := newTestService(fp, &fakeRepository{}, &fakeLookup{}, &fakeUtils{})

	_, err := svc.AnalyzeShelf(context.Background(), "user-1", []byte("img"), provider.AnalyzeOptions{})
	require.Error(t, err)

	var coded *provider.Error
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, provider.CodeRateLimitExceeded, coded.Code)
}

func TestAnalyzeShelf_StorageFailureDegradesMatching(t *testing.T) {
	fp := &fakeProvider{
		shelfResult: &provider.ShelfAnalysisResult{
			Books:         []provider.DetectedBook{{Title: "Dune", ISBN: "9780441013593"}},
			TotalDetected: 1,
		},
	}
	repo := &fakeRepository{listErr: errors.New("connection refused")}

	svc := newTestService(fp, repo, &fakeLookup{}, &fakeUtils{})

	result, err := svc.AnalyzeShelf(context.Background(), "user-1", []byte("img"), provider.AnalyzeOptions{})
	require.NoError(t, err)
	require.Len(t, result.EnrichedBooks, 1)
	assert.False(t, result.EnrichedBooks[0].InCollection)
}

func TestAnalyzeShelf_ThresholdFiltersLowConfidence(t *testing.T) {
	fp := &fakeProvider{
		shelfResult: &provider.ShelfAnalysisResult{
			Books: []provider.DetectedBook{
				{Title: "Kept", Confidence: confPtr(0.9)},
				{Title: "Dropped", Confidence: confPtr(0.3)},
				{Title: "No Confidence"},
			},
			TotalDetected: 3,
		},
	}

	svc := newTestService(fp, &fakeRepository{}, &fakeLookup{}, &fakeUtils{})

	result, err := svc.AnalyzeShelf(context.Background(), "user-1", []byte("img"), provider.AnalyzeOptions{
		DetectionThreshold: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, result.EnrichedBooks, 2)

	assert.Equal(t, "Kept", result.EnrichedBooks[0].Title)
	// A detection without reported confidence is retained.
	assert.Equal(t, "No Confidence", result.EnrichedBooks[1].Title)
}

func TestAnalyzeShelf_EnrichmentFailureIsIsolated(t *testing.T) {
	fp := &fakeProvider{
		shelfResult: &provider.ShelfAnalysisResult{
			Books: []provider.DetectedBook{
				{Title: "First"},
				{Title: "Second"},
				{Title: "Third"},
			},
			TotalDetected: 3,
		},
	}
	lookup := &fakeLookup{
		records: map[string]*booklookup.Record{
			"First": {Publisher: "Pub A"},
			"Third": {Publisher: "Pub C"},
		},
		failures: map[string]error{
			"Second": errors.New("catalog unavailable"),
		},
	}

	svc := newTestService(fp, &fakeRepository{}, lookup, &fakeUtils{})

	result, err := svc.AnalyzeShelf(context.Background(), "user-1", []byte("img"), provider.AnalyzeOptions{})
	require.NoError(t, err)
	require.Len(t, result.EnrichedBooks, 3)

	require.NotNil(t, result.EnrichedBooks[0].ExternalMetadata)
	assert.Nil(t, result.EnrichedBooks[1].ExternalMetadata)
	require.NotNil(t, result.EnrichedBooks[2].ExternalMetadata)
	assert.Equal(t, "Pub C", result.EnrichedBooks[2].ExternalMetadata.Publisher)
}

func TestAnalyzeSingleBook(t *testing.T) {
	fp := &fakeProvider{
		singleResult: &provider.SingleBookResult{
			Title:             "Snow Crash",
			Author:            "Neal Stephenson",
			ReadabilityStatus: provider.ReadabilityClear,
		},
	}

	svc := newTestService(fp, &fakeRepository{}, &fakeLookup{}, &fakeUtils{})

	result, err := svc.AnalyzeSingleBook(context.Background(), []byte("img"), provider.AnalyzeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Snow Crash", result.Title)
}

func TestConfirmBooks(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(&fakeProvider{}, repo, &fakeLookup{}, &fakeUtils{})

	ids, err := svc.ConfirmBooks(context.Background(), scan.ConfirmBooksRequest{
		UserID: "user-1",
		Books: []scan.ConfirmBook{
			{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593"},
			{Title: "The Hobbit", Author: "J.R.R. Tolkien"},
		},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	assert.True(t, repo.committed)
	assert.False(t, repo.rolledBack)
	require.Len(t, repo.created, 2)
	assert.Equal(t, "user-1", repo.created[0].UserID)
	assert.Equal(t, "Dune", repo.created[0].Title)
	assert.Equal(t, ids[0], repo.created[0].ID)
}

func TestConfirmBooks_RollbackOnFailure(t *testing.T) {
	repo := &fakeRepository{createErr: errors.New("unique violation")}
	svc := newTestService(&fakeProvider{}, repo, &fakeLookup{}, &fakeUtils{})

	_, err := svc.ConfirmBooks(context.Background(), scan.ConfirmBooksRequest{
		UserID: "user-1",
		Books: []scan.ConfirmBook{
			{Title: "Dune"},
			{Title: "The Hobbit"},
		},
	})
	require.Error(t, err)
	assert.True(t, repo.rolledBack)
	assert.False(t, repo.committed)
}

func TestFilterByThreshold(t *testing.T) {
	books := []provider.DetectedBook{
		{Title: "High", Confidence: confPtr(0.95)},
		{Title: "Low", Confidence: confPtr(0.2)},
		{Title: "Unknown"},
	}

	filtered := filterByThreshold(books, 0.5)
	require.Len(t, filtered, 2)
	assert.Equal(t, "High", filtered[0].Title)
	assert.Equal(t, "Unknown", filtered[1].Title)

	// Zero threshold disables filtering.
	assert.Len(t, filterByThreshold(books, 0), 3)
}
