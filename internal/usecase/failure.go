package usecase

import (
	"fmt"
	"net/http"
)

// Stage is a step of the submission pipeline. Stages run strictly in order.
type Stage int

const (
	StageReceived Stage = iota
	StageAdmitted
	StageDecoded
	StageValidated
	StageNormalized
	StageFaceChecked
	StagePublished
	StagePersisted
	StageDone
)

var stageNames = [...]string{
	"received", "admitted", "decoded", "validated", "normalized",
	"face_checked", "published", "persisted", "done",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// FailureKind classifies a terminal pipeline failure.
type FailureKind string

const (
	KindRateLimited          FailureKind = "rate_limited"
	KindMethodNotAllowed     FailureKind = "method_not_allowed"
	KindMissingContentType   FailureKind = "missing_content_type"
	KindMalformedContentType FailureKind = "malformed_content_type"
	KindPayloadTooLarge      FailureKind = "payload_too_large"
	KindDecodeError          FailureKind = "decode_error"
	KindNoFileProvided       FailureKind = "no_file_provided"
	KindInvalidCoordinates   FailureKind = "invalid_coordinates"
	KindFaceCheckFailed      FailureKind = "face_check_failed"
	KindProcessingError      FailureKind = "processing_error"
	KindPublishError         FailureKind = "publish_error"
	KindPersistError         FailureKind = "persist_error"
	KindUnexpectedError      FailureKind = "unexpected_error"
)

// Failure is the single error type returned by SubmissionUseCase.Submit.
// Stage is the last stage that was reached before the failing step.
type Failure struct {
	Kind  FailureKind
	Stage Stage
	// FaceCount is set for KindFaceCheckFailed.
	FaceCount int
	Err       error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s after %s: %v", f.Kind, f.Stage, f.Err)
	}
	return fmt.Sprintf("%s after %s", f.Kind, f.Stage)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// StatusCode maps the failure to its HTTP status.
func (f *Failure) StatusCode() int {
	switch f.Kind {
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindMissingContentType, KindMalformedContentType, KindDecodeError,
		KindNoFileProvided, KindInvalidCoordinates, KindFaceCheckFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON response payload for the failure. Zero and multiple faces
// share one message on purpose; FaceCount keeps them apart internally.
func (f *Failure) Body() map[string]string {
	switch f.Kind {
	case KindRateLimited:
		return map[string]string{"message": "Too many requests, slow down"}
	case KindMethodNotAllowed:
		return map[string]string{"message": "Method Not Allowed"}
	case KindPayloadTooLarge:
		return map[string]string{"message": "Payload Too Large"}
	case KindMissingContentType:
		return map[string]string{"message": "Missing Content-Type header"}
	case KindMalformedContentType, KindDecodeError:
		return map[string]string{"message": "Malformed multipart body"}
	case KindNoFileProvided:
		return map[string]string{"message": "No file found"}
	case KindInvalidCoordinates:
		return map[string]string{"message": "Missing or invalid x/y coordinates"}
	case KindFaceCheckFailed:
		return map[string]string{"message": "No human face detected"}
	}
	detail := ""
	if f.Err != nil {
		detail = f.Err.Error()
	}
	return map[string]string{"message": "Server Error", "error": detail}
}

func fail(kind FailureKind, stage Stage, err error) *Failure {
	return &Failure{Kind: kind, Stage: stage, Err: err}
}
