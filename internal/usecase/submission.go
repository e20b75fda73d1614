package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/faces-api/internal/admission"
	"github.com/example/faces-api/internal/facedetect"
	"github.com/example/faces-api/internal/formdata"
	"github.com/example/faces-api/internal/imageprocessor"
	"github.com/example/faces-api/internal/logging"
	"github.com/example/faces-api/internal/publisher"
	"github.com/example/faces-api/internal/repository"
	"github.com/example/faces-api/internal/validation"
)

// Admitter decides whether a source may make another request.
type Admitter interface {
	CheckAndRecord(sourceKey string) bool
}

// PhotoWriter persists photo metadata.
type PhotoWriter interface {
	Insert(ctx context.Context, record *repository.PhotoRecord) error
}

// Submission is one incoming upload request.
type Submission struct {
	Method        string
	ContentType   string
	SourceAddress string
	Body          io.Reader
}

// SubmitResult is returned once the photo is published and recorded.
type SubmitResult struct {
	RequestID string
	URL       string
}

// SubmissionUseCase runs the validate-and-commit pipeline for photo uploads.
type SubmissionUseCase struct {
	admitter   Admitter
	normalizer imageprocessor.Normalizer
	detector   facedetect.Detector
	publisher  publisher.Publisher
	repo       PhotoWriter
	queryCache Cache
	retry      logging.Retrier
	logger     *zap.Logger
	folder     string
	now        func() time.Time
}

// NewSubmissionUseCase constructs a new use case instance.
func NewSubmissionUseCase(
	admitter Admitter,
	normalizer imageprocessor.Normalizer,
	detector facedetect.Detector,
	pub publisher.Publisher,
	repo PhotoWriter,
	folder string,
	logger *zap.Logger,
) *SubmissionUseCase {
	return &SubmissionUseCase{
		admitter:   admitter,
		normalizer: normalizer,
		detector:   detector,
		publisher:  pub,
		repo:       repo,
		retry:      logging.NewRetrier(logger.Named("submission_usecase")),
		logger:     logger.Named("submission_usecase"),
		folder:     folder,
		now:        time.Now,
	}
}

// WithQueryCache makes every stored photo bump the cached box generation so
// queries served from cache include it. A nil cache leaves this disabled.
func (uc *SubmissionUseCase) WithQueryCache(cache Cache) *SubmissionUseCase {
	uc.queryCache = cache
	return uc
}

// Submit runs admission, decoding, validation, normalization, the face check,
// publishing and persistence in that order. Every error it returns is a *Failure.
// Persistence only runs after a successful publish, so a persist failure leaves
// a published object without metadata; that case is logged with its storage id.
func (uc *SubmissionUseCase) Submit(ctx context.Context, sub Submission) (res *SubmitResult, err error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.submit_photo", requestID)

	defer func() {
		if rec := recover(); rec != nil {
			res, err = nil, fail(KindUnexpectedError, StageReceived, fmt.Errorf("panic: %v", rec))
		}
		uc.record(opLogger, err)
	}()

	sourceKey := sub.SourceAddress
	if sourceKey == "" {
		sourceKey = admission.UnknownSource
	}
	if !uc.admitter.CheckAndRecord(sourceKey) {
		return nil, fail(KindRateLimited, StageReceived, nil)
	}
	opLogger = opLogger.With(zap.String("source", sourceKey))
	opLogger.Debug("stage reached", zap.Stringer("stage", StageAdmitted))

	if sub.Method != http.MethodPost {
		return nil, fail(KindMethodNotAllowed, StageAdmitted, fmt.Errorf("method %s", sub.Method))
	}
	if sub.ContentType == "" {
		return nil, fail(KindMissingContentType, StageAdmitted, nil)
	}

	form, err := formdata.Decode(sub.Body, sub.ContentType)
	if err != nil {
		return nil, decodeFailure(err)
	}
	if form.File == nil {
		return nil, fail(KindNoFileProvided, StageAdmitted, nil)
	}
	opLogger.Debug("stage reached", zap.Stringer("stage", StageDecoded), zap.Int("file_bytes", len(form.File)))

	coords, err := validation.Validate(form.Fields)
	if err != nil {
		return nil, fail(KindInvalidCoordinates, StageDecoded, err)
	}
	opLogger.Debug("stage reached", zap.Stringer("stage", StageValidated),
		zap.Float64("x", coords.X), zap.Float64("y", coords.Y))

	normalized, err := uc.normalizer.Normalize(ctx, form.File)
	if err != nil {
		return nil, fail(KindProcessingError, StageValidated, logging.NewOperationError("usecase.normalize_image", requestID, err))
	}
	opLogger.Debug("stage reached", zap.Stringer("stage", StageNormalized),
		zap.Int("width", normalized.Width), zap.Int("height", normalized.Height))

	faces, err := uc.detector.DetectFaces(ctx, normalized.Data)
	if err != nil {
		return nil, fail(KindProcessingError, StageNormalized, logging.NewOperationError("usecase.detect_faces", requestID, err))
	}
	faceCountTotal.WithLabelValues(faceBucket(faces)).Inc()
	if faces != 1 {
		return nil, &Failure{Kind: KindFaceCheckFailed, Stage: StageNormalized, FaceCount: faces}
	}
	opLogger.Debug("stage reached", zap.Stringer("stage", StageFaceChecked))

	published, err := uc.publisher.Upload(ctx, normalized.Data, uc.folder)
	if err != nil {
		return nil, fail(KindPublishError, StageFaceChecked, logging.NewOperationError("usecase.publish_photo", requestID, err))
	}
	opLogger.Debug("stage reached", zap.Stringer("stage", StagePublished), zap.String("storage_id", published.ID))

	record := buildRecord(requestID, uc.now().UTC(), sourceKey, published, coords)
	if err := uc.repo.Insert(ctx, record); err != nil {
		orphanedPublishesTotal.Inc()
		opLogger.Error("photo published without metadata record",
			zap.String("storage_id", published.ID),
			zap.String("url", published.URL),
			zap.Error(err),
		)
		return nil, fail(KindPersistError, StagePublished, logging.NewOperationError("usecase.persist_photo", requestID, err))
	}
	opLogger.Debug("stage reached", zap.Stringer("stage", StagePersisted))
	uc.invalidateBoxes(ctx, opLogger, requestID)

	return &SubmitResult{RequestID: requestID, URL: published.URL}, nil
}

// invalidateBoxes never fails the submission; on error cached boxes can lag
// for at most the cache TTL.
func (uc *SubmissionUseCase) invalidateBoxes(ctx context.Context, opLogger *zap.Logger, requestID string) {
	if uc.queryCache == nil {
		return
	}
	err := uc.retry.Do(ctx, "cache.bump_box_generation", requestID, func() error {
		_, err := uc.queryCache.Incr(ctx, boxGenerationKey)
		return err
	})
	if err != nil {
		opLogger.Warn("failed to invalidate cached box queries", zap.Error(err))
	}
}

func (uc *SubmissionUseCase) record(opLogger *zap.Logger, err error) {
	if err == nil {
		submissionsTotal.WithLabelValues("ok").Inc()
		opLogger.Info("photo submitted", zap.Stringer("stage", StageDone))
		return
	}

	var failure *Failure
	if !errors.As(err, &failure) {
		submissionsTotal.WithLabelValues(string(KindUnexpectedError)).Inc()
		opLogger.Error("submission failed", zap.Error(err))
		return
	}
	submissionsTotal.WithLabelValues(string(failure.Kind)).Inc()

	fields := []zap.Field{
		zap.String("kind", string(failure.Kind)),
		zap.Stringer("stage", failure.Stage),
	}
	if failure.Kind == KindFaceCheckFailed {
		fields = append(fields, zap.Int("faces", failure.FaceCount))
	}
	if failure.StatusCode() >= http.StatusInternalServerError {
		opLogger.Error("submission failed", append(fields, zap.Error(failure.Err))...)
		return
	}
	opLogger.Info("submission rejected", append(fields, zap.NamedError("reason", failure.Err))...)
}

func decodeFailure(err error) *Failure {
	switch {
	case errors.Is(err, formdata.ErrMalformedContentType):
		return fail(KindMalformedContentType, StageAdmitted, err)
	case errors.Is(err, formdata.ErrPayloadTooLarge):
		return fail(KindPayloadTooLarge, StageAdmitted, err)
	default:
		return fail(KindDecodeError, StageAdmitted, err)
	}
}

func buildRecord(id string, createdAt time.Time, source string, published *publisher.Published, coords *validation.Coordinates) *repository.PhotoRecord {
	return &repository.PhotoRecord{
		ID:            id,
		URL:           published.URL,
		CreatedAt:     createdAt,
		SourceAddress: source,
		Source:        repository.OriginLambda,
		StorageID:     published.ID,
		Width:         published.Width,
		Height:        published.Height,
		Format:        published.Format,
		X:             coords.X,
		Y:             coords.Y,
		Age:           coords.Age,
		Gender:        coords.Gender,
		Tags:          coords.Tags,
	}
}
