package scanService

import (
	"Shelfscan/internal/api/scan"
	scanRepository "Shelfscan/internal/api/scan/repository"
	"Shelfscan/pkg/booklookup"
	"Shelfscan/pkg/provider"
	"Shelfscan/pkg/s3"
	"Shelfscan/pkg/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type IScanService interface {
	AnalyzeShelf(ctx context.Context, userID string, image []byte, opts provider.AnalyzeOptions) (*scan.ShelfAnalysisWithCollection, error)
	AnalyzeSingleBook(ctx context.Context, image []byte, opts provider.AnalyzeOptions) (*provider.SingleBookResult, error)
	ConfirmBooks(ctx context.Context, req scan.ConfirmBooksRequest) ([]string, error)
}

type scanService struct {
	log      *logrus.Logger
	repo     scanRepository.Repository
	provider provider.Provider
	lookup   booklookup.ILookup
	s3Client s3.ItfS3
	utils    utils.IUtils
}

func NewScanService(
	log *logrus.Logger,
	repo scanRepository.Repository,
	prov provider.Provider,
	lookup booklookup.ILookup,
	s3Client s3.ItfS3,
	utils utils.IUtils,
) IScanService {
	return &scanService{
		log:      log,
		repo:     repo,
		provider: prov,
		lookup:   lookup,
		s3Client: s3Client,
		utils:    utils,
	}
}
