package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cleanistic/config"
	"cleanistic/estimate"
	"cleanistic/models"
	"cleanistic/storage"
)

var jpegData = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")

type stubVision struct {
	mu       sync.Mutex
	features []models.ImageFeatures
	err      error
	calls    int
}

func (v *stubVision) AnalyzeImages(ctx context.Context, images []models.ImageInput) ([]models.ImageFeatures, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	if v.err != nil {
		return nil, v.err
	}
	return v.features, nil
}

type stubLookup struct {
	attrs *models.PropertyAttributes
	err   error
}

func (l *stubLookup) LookupProperty(ctx context.Context, address string) (*models.PropertyAttributes, error) {
	if l.err != nil {
		return nil, l.err
	}
	a := *l.attrs
	a.Address = address
	return &a, nil
}

type recordingQueue struct {
	jobs []models.Media
}

func (q *recordingQueue) Enqueue(m models.Media) bool {
	q.jobs = append(q.jobs, m)
	return true
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

var fixedNow = time.Date(2024, 1, 31, 15, 30, 0, 0, time.UTC)

type fixture struct {
	store    *storage.MemoryStore
	vision   *stubVision
	lookup   *stubLookup
	queue    *recordingQueue
	analyses *AnalysisService
	quotes   *QuoteService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store: storage.NewMemoryStore(),
		vision: &stubVision{features: []models.ImageFeatures{
			{Windows: 12, Doors: 2, Skylights: 0, Confidence: 0.97, Angle: models.AngleFront},
		}},
		lookup: &stubLookup{attrs: &models.PropertyAttributes{
			PropertyType:  "Single Family Residential",
			SquareFootage: 1800,
			Coordinates:   &models.Coordinates{Lat: 39.7817, Lng: -89.6501},
		}},
		queue: &recordingQueue{},
	}

	media := NewMediaService(config.S3Config{}, f.queue)
	f.analyses = NewAnalysisService(f.store, f.vision, f.lookup, estimate.NewEngine(nil), media,
		config.AnalysisConfig{DefaultSquareFootage: 2000})
	f.analyses.now = func() time.Time { return fixedNow }
	f.analyses.newID = sequentialIDs("analysis")

	f.quotes = NewQuoteService(f.store, config.QuoteConfig{ValidityDays: 30, StrictTransitions: true})
	f.quotes.now = func() time.Time { return fixedNow }
	f.quotes.newID = sequentialIDs("quote")

	return f
}

func (f *fixture) analyze(t *testing.T, services ...models.ServiceType) *models.PropertyAnalysis {
	t.Helper()
	a, err := f.analyses.AnalyzeProperty(context.Background(), AnalysisRequest{
		Address:  "123 Main Street, Springfield, IL",
		Images:   []models.ImageInput{{Filename: "front.jpg", Data: jpegData}},
		Services: services,
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) storedAnalyses(t *testing.T) int {
	t.Helper()
	list, err := f.store.ListAnalyses(context.Background())
	require.NoError(t, err)
	return len(list)
}

func TestAnalyzeProperty_TwoStoryHouse(t *testing.T) {
	f := newFixture(t)

	a := f.analyze(t, models.ServiceWindowCleaning, models.ServiceGutterCleaning)

	require.Equal(t, 1800.0, a.PropertyData.Size)
	require.Equal(t, 2, a.PropertyData.Stories)
	require.Equal(t, models.PropertyTypeResidential, a.PropertyData.Type)
	require.Equal(t, 170, a.Features.GutterFeet)
	require.Equal(t, 2340, a.Features.RoofArea)

	require.Len(t, a.Services, 2)
	require.Equal(t, models.ServiceWindowCleaning, a.Services[0].Service)
	require.Equal(t, 125, a.Services[0].Price)
	require.InDelta(t, 1.3, a.Services[0].Details.Difficulty, 1e-9)
	require.Equal(t, models.ServiceGutterCleaning, a.Services[1].Service)
	require.Equal(t, 2652, a.Services[1].Price)
	require.Equal(t, 2777, a.TotalEstimate)
	require.Equal(t, 0.97, a.Confidence)

	require.Equal(t, fixedNow, a.Timestamp)
	require.Equal(t, 39.7817, a.Coordinates.Lat)
	require.Len(t, a.Images, 1)
	require.Equal(t, models.AngleFront, a.Images[0].Analysis.Angle)

	stored, err := f.analyses.GetAnalysis(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, a.TotalEstimate, stored.TotalEstimate)
	require.Equal(t, a.Services, stored.Services)
}

func TestAnalyzeProperty_TotalIsSumOfPrices(t *testing.T) {
	f := newFixture(t)

	a := f.analyze(t, models.AllServices...)

	sum := 0
	for _, s := range a.Services {
		sum += s.Price
	}
	require.Equal(t, sum, a.TotalEstimate)
	require.Len(t, a.Services, 4)
}

func TestAnalyzeProperty_NoImages(t *testing.T) {
	f := newFixture(t)

	_, err := f.analyses.AnalyzeProperty(context.Background(), AnalysisRequest{
		Address:  "123 Main Street",
		Services: []models.ServiceType{models.ServiceWindowCleaning},
	})

	var aerr *models.AnalysisError
	require.True(t, errors.As(err, &aerr))
	require.Equal(t, "no image data", aerr.Reason)
	require.Equal(t, 0, f.storedAnalyses(t))
	require.Equal(t, 0, f.vision.calls)
}

func TestAnalyzeProperty_NoServices(t *testing.T) {
	f := newFixture(t)

	_, err := f.analyses.AnalyzeProperty(context.Background(), AnalysisRequest{
		Address: "123 Main Street",
		Images:  []models.ImageInput{{Filename: "front.jpg", Data: jpegData}},
	})

	var aerr *models.AnalysisError
	require.True(t, errors.As(err, &aerr))
	require.Equal(t, 0, f.storedAnalyses(t))
}

func TestAnalyzeProperty_UnsupportedService(t *testing.T) {
	f := newFixture(t)

	_, err := f.analyses.AnalyzeProperty(context.Background(), AnalysisRequest{
		Address:  "123 Main Street",
		Images:   []models.ImageInput{{Filename: "front.jpg", Data: jpegData}},
		Services: []models.ServiceType{models.ServiceWindowCleaning, "lawn_mowing"},
	})

	var uerr *models.UnsupportedServiceError
	require.True(t, errors.As(err, &uerr))
	require.Equal(t, "lawn_mowing", uerr.Service)
	require.Equal(t, 0, f.storedAnalyses(t))
	require.Empty(t, f.queue.jobs)
}

func TestAnalyzeProperty_ProviderFailures(t *testing.T) {
	imageErr := &models.ImageAnalysisError{Image: "front.jpg", Err: errors.New("corrupt")}
	lookupErr := &models.PropertyLookupError{Address: "123 Main Street", Err: errors.New("no record")}

	t.Run("vision", func(t *testing.T) {
		f := newFixture(t)
		f.vision.err = imageErr

		_, err := f.analyses.AnalyzeProperty(context.Background(), AnalysisRequest{
			Address:  "123 Main Street",
			Images:   []models.ImageInput{{Filename: "front.jpg", Data: jpegData}},
			Services: []models.ServiceType{models.ServiceWindowCleaning},
		})

		var aerr *models.AnalysisError
		require.True(t, errors.As(err, &aerr))
		var ierr *models.ImageAnalysisError
		require.True(t, errors.As(err, &ierr))
		require.Equal(t, 0, f.storedAnalyses(t))
	})

	t.Run("lookup", func(t *testing.T) {
		f := newFixture(t)
		f.lookup.err = lookupErr

		_, err := f.analyses.AnalyzeProperty(context.Background(), AnalysisRequest{
			Address:  "123 Main Street",
			Images:   []models.ImageInput{{Filename: "front.jpg", Data: jpegData}},
			Services: []models.ServiceType{models.ServiceWindowCleaning},
		})

		var aerr *models.AnalysisError
		require.True(t, errors.As(err, &aerr))
		var lerr *models.PropertyLookupError
		require.True(t, errors.As(err, &lerr))
		require.Equal(t, 0, f.storedAnalyses(t))
		require.Empty(t, f.queue.jobs)
	})
}

func TestAnalyzeProperty_FallbackSize(t *testing.T) {
	f := newFixture(t)
	f.lookup.attrs = &models.PropertyAttributes{PropertyType: "Single Family Residential"}

	a := f.analyze(t, models.ServiceRoofCleaning)

	require.Equal(t, 2000.0, a.PropertyData.Size)
	require.Equal(t, 2, a.PropertyData.Stories)
	require.Equal(t, 2600, a.Features.RoofArea)
	require.True(t, a.Coordinates.IsZero())
}

func TestAnalyzeProperty_QueuesImagesAfterStore(t *testing.T) {
	f := newFixture(t)

	a := f.analyze(t, models.ServiceWindowCleaning)

	require.Len(t, f.queue.jobs, 1)
	job := f.queue.jobs[0]
	require.Equal(t, a.ID, job.AnalysisID)
	require.Equal(t, a.Images[0].ID, job.ImageID)
	require.Equal(t, "image/jpeg", job.MimeType)
	require.Equal(t, fmt.Sprintf("media/%s/%s.jpg", job.ContentHash[:2], job.ContentHash), job.Key)
	require.Equal(t, job.Key, a.Images[0].URL)
}

func TestMediaService_PublicURL(t *testing.T) {
	s := NewMediaService(config.S3Config{Bucket: "estimates", Region: "us-west-2"}, nil)

	m := s.Prepare("img-1", models.ImageInput{Filename: "front.jpg", Data: jpegData})
	require.Equal(t, "https://estimates.s3.us-west-2.amazonaws.com/"+m.Key, m.URL)
	require.Equal(t, 0, s.Enqueue("a-1", []models.Media{m}))

	again := s.Prepare("img-2", models.ImageInput{Filename: "copy.jpg", Data: jpegData})
	require.Equal(t, m.Key, again.Key)
}

func TestListAnalyses_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.analyze(t, models.ServiceWindowCleaning)

	f.lookup.attrs = &models.PropertyAttributes{
		SquareFootage: 2400,
		Coordinates:   &models.Coordinates{Lat: 47.6062, Lng: -122.3321},
	}
	_, err := f.analyses.AnalyzeProperty(ctx, AnalysisRequest{
		Address:  "77 Pine Court, Seattle, WA",
		Images:   []models.ImageInput{{Filename: "front.jpg", Data: jpegData}},
		Services: []models.ServiceType{models.ServiceWindowCleaning},
	})
	require.NoError(t, err)

	all, err := f.analyses.ListAnalyses(ctx, AnalysisFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	byAddress, err := f.analyses.ListAnalyses(ctx, AnalysisFilter{Address: "main st springfield"})
	require.NoError(t, err)
	require.Len(t, byAddress, 1)
	require.Equal(t, "123 Main Street, Springfield, IL", byAddress[0].Address)

	near, err := f.analyses.ListAnalyses(ctx, AnalysisFilter{
		Near:     &models.Coordinates{Lat: 47.61, Lng: -122.33},
		RadiusKm: 10,
	})
	require.NoError(t, err)
	require.Len(t, near, 1)
	require.Equal(t, "77 Pine Court, Seattle, WA", near[0].Address)
}

func TestGetAnalysis_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.analyses.GetAnalysis(context.Background(), "missing")
	var nerr *models.AnalysisNotFoundError
	require.True(t, errors.As(err, &nerr))
	require.Equal(t, "missing", nerr.ID)
}

func TestGenerateQuote_CopiesAnalysis(t *testing.T) {
	f := newFixture(t)
	a := f.analyze(t, models.ServiceWindowCleaning, models.ServiceGutterCleaning)

	customer := models.CustomerInfo{Name: "Dana Reyes", Email: "dana@example.com", Phone: "555-0100"}
	q, err := f.quotes.GenerateQuote(context.Background(), a.ID, customer, "gate code 4411")
	require.NoError(t, err)

	require.Equal(t, a.ID, q.PropertyAnalysisID)
	require.Equal(t, a.Services, q.Services)
	require.Equal(t, 2777, q.TotalPrice)
	require.Equal(t, models.QuoteStatusDraft, q.Status)
	require.Equal(t, customer, q.CustomerInfo)
	require.Equal(t, "gate code 4411", q.Notes)
	require.NotEqual(t, q.ID, q.CustomerID)
	require.Equal(t, fixedNow, q.CreatedAt)
	require.Equal(t, time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC), q.ValidUntil)

	stored, err := f.quotes.GetQuote(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, q.TotalPrice, stored.TotalPrice)
}

func TestGenerateQuote_MissingAnalysis(t *testing.T) {
	f := newFixture(t)

	_, err := f.quotes.GenerateQuote(context.Background(), "missing", models.CustomerInfo{Name: "x", Email: "x@example.com"}, "")

	var nerr *models.AnalysisNotFoundError
	require.True(t, errors.As(err, &nerr))

	quotes, err := f.quotes.ListQuotes(context.Background(), QuoteFilter{})
	require.NoError(t, err)
	require.Empty(t, quotes)
}

func TestUpdateQuoteStatus_Strict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.analyze(t, models.ServiceWindowCleaning)
	q, err := f.quotes.GenerateQuote(ctx, a.ID, models.CustomerInfo{Name: "x", Email: "x@example.com"}, "")
	require.NoError(t, err)

	var terr *models.InvalidStatusTransitionError

	_, err = f.quotes.UpdateQuoteStatus(ctx, q.ID, "accepted")
	require.True(t, errors.As(err, &terr))
	require.Equal(t, models.QuoteStatusDraft, terr.From)

	_, err = f.quotes.UpdateQuoteStatus(ctx, q.ID, "archived")
	require.True(t, errors.As(err, &terr))

	updated, err := f.quotes.UpdateQuoteStatus(ctx, q.ID, "draft")
	require.NoError(t, err)
	require.Equal(t, models.QuoteStatusDraft, updated.Status)

	for _, st := range []string{"sent", "accepted", "completed"} {
		updated, err = f.quotes.UpdateQuoteStatus(ctx, q.ID, st)
		require.NoError(t, err)
		require.Equal(t, models.QuoteStatus(st), updated.Status)
	}

	stored, err := f.quotes.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, models.QuoteStatusCompleted, stored.Status)
	require.Equal(t, q.TotalPrice, stored.TotalPrice)

	_, err = f.quotes.UpdateQuoteStatus(ctx, "missing", "sent")
	var nerr *models.QuoteNotFoundError
	require.True(t, errors.As(err, &nerr))
}

// lockstepStore holds the first two quote reads until both have happened,
// so two updates see the same starting status
type lockstepStore struct {
	*storage.MemoryStore
	mu      sync.Mutex
	reads   int
	release chan struct{}
}

func (s *lockstepStore) GetQuote(ctx context.Context, id string) (*models.Quote, error) {
	q, err := s.MemoryStore.GetQuote(ctx, id)
	s.mu.Lock()
	s.reads++
	if s.reads == 2 {
		close(s.release)
	}
	s.mu.Unlock()
	<-s.release
	return q, err
}

func TestUpdateQuoteStatus_ConcurrentDecisions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.analyze(t, models.ServiceWindowCleaning)
	q, err := f.quotes.GenerateQuote(ctx, a.ID, models.CustomerInfo{Name: "x", Email: "x@example.com"}, "")
	require.NoError(t, err)
	_, err = f.quotes.UpdateQuoteStatus(ctx, q.ID, "sent")
	require.NoError(t, err)

	f.quotes.store = &lockstepStore{MemoryStore: f.store, release: make(chan struct{})}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, st := range []string{"accepted", "declined"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.quotes.UpdateQuoteStatus(ctx, q.ID, st)
		}()
	}
	wg.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	require.Len(t, failed, 1, "exactly one decision should win")

	var terr *models.InvalidStatusTransitionError
	require.True(t, errors.As(failed[0], &terr))

	stored, err := f.store.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, stored.Status, terr.From)
	require.Contains(t, []models.QuoteStatus{models.QuoteStatusAccepted, models.QuoteStatusDeclined}, stored.Status)
}

func TestUpdateQuoteStatus_Permissive(t *testing.T) {
	f := newFixture(t)
	f.quotes.strict = false
	ctx := context.Background()
	a := f.analyze(t, models.ServiceWindowCleaning)
	q, err := f.quotes.GenerateQuote(ctx, a.ID, models.CustomerInfo{Name: "x", Email: "x@example.com"}, "")
	require.NoError(t, err)

	updated, err := f.quotes.UpdateQuoteStatus(ctx, q.ID, "completed")
	require.NoError(t, err)
	require.Equal(t, models.QuoteStatusCompleted, updated.Status)

	updated, err = f.quotes.UpdateQuoteStatus(ctx, q.ID, "draft")
	require.NoError(t, err)
	require.Equal(t, models.QuoteStatusDraft, updated.Status)

	_, err = f.quotes.UpdateQuoteStatus(ctx, q.ID, "archived")
	var terr *models.InvalidStatusTransitionError
	require.True(t, errors.As(err, &terr))
}

func TestListQuotes_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.analyze(t, models.ServiceWindowCleaning)
	b := f.analyze(t, models.ServiceRoofCleaning)
	customer := models.CustomerInfo{Name: "x", Email: "x@example.com"}

	q1, err := f.quotes.GenerateQuote(ctx, a.ID, customer, "")
	require.NoError(t, err)
	_, err = f.quotes.GenerateQuote(ctx, b.ID, customer, "")
	require.NoError(t, err)
	_, err = f.quotes.UpdateQuoteStatus(ctx, q1.ID, "sent")
	require.NoError(t, err)

	sent, err := f.quotes.ListQuotes(ctx, QuoteFilter{Status: models.QuoteStatusSent})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.Equal(t, q1.ID, sent[0].ID)

	forB, err := f.quotes.ListQuotes(ctx, QuoteFilter{AnalysisID: b.ID})
	require.NoError(t, err)
	require.Len(t, forB, 1)
	require.Equal(t, b.ID, forB[0].PropertyAnalysisID)
}

type staticMediaStats map[string]int

func (s staticMediaStats) QueueDepth() map[string]int { return s }

func TestReportService_Build(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.analyze(t, models.ServiceWindowCleaning, models.ServiceGutterCleaning)
	customer := models.CustomerInfo{Name: "x", Email: "x@example.com"}

	won, err := f.quotes.GenerateQuote(ctx, a.ID, customer, "")
	require.NoError(t, err)
	for _, st := range []string{"sent", "accepted"} {
		_, err = f.quotes.UpdateQuoteStatus(ctx, won.ID, st)
		require.NoError(t, err)
	}
	_, err = f.quotes.GenerateQuote(ctx, a.ID, customer, "")
	require.NoError(t, err)

	reports := NewReportService(f.store, staticMediaStats{models.MediaStatusUploaded: 2})
	reports.now = func() time.Time { return fixedNow.AddDate(0, 0, 45) }

	r, err := reports.Build(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, r.Analyses)
	require.Equal(t, 2, r.Quotes)
	require.Equal(t, 1, r.ByStatus[models.QuoteStatusAccepted])
	require.Equal(t, 1, r.ByStatus[models.QuoteStatusDraft])
	require.Equal(t, 0, r.ByStatus[models.QuoteStatusDeclined])
	require.Equal(t, 2*2777, r.QuotedValue)
	require.Equal(t, 2777, r.WonValue)
	require.Equal(t, 1, r.Expired)
	require.Equal(t, 2, r.Media[models.MediaStatusUploaded])
}

func TestParseServices(t *testing.T) {
	got, err := ParseServices([]string{"window_cleaning", " Roof_Cleaning "})
	require.NoError(t, err)
	require.Equal(t, []models.ServiceType{models.ServiceWindowCleaning, models.ServiceRoofCleaning}, got)

	_, err = ParseServices([]string{"lawn_mowing"})
	var uerr *models.UnsupportedServiceError
	require.True(t, errors.As(err, &uerr))
}
