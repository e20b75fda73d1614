package facedetect

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

type stubRekognition struct {
	faces int
	err   error
	input *rekognition.DetectFacesInput
}

func (s *stubRekognition) DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
	s.input = params
	if s.err != nil {
		return nil, s.err
	}
	return &rekognition.DetectFacesOutput{FaceDetails: make([]types.FaceDetail, s.faces)}, nil
}

func TestRekognitionDetectorCountsFaces(t *testing.T) {
	api := &stubRekognition{faces: 2}
	d := NewRekognitionDetector(api)

	count, err := d.DetectFaces(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 faces, got %d", count)
	}
	if string(api.input.Image.Bytes) != "jpeg" {
		t.Fatal("image bytes were not forwarded")
	}
	if len(api.input.Attributes) != 1 || api.input.Attributes[0] != types.AttributeDefault {
		t.Fatalf("unexpected attributes: %v", api.input.Attributes)
	}
}

func TestRekognitionDetectorWrapsErrors(t *testing.T) {
	base := errors.New("throttled")
	d := NewRekognitionDetector(&stubRekognition{err: base})

	if _, err := d.DetectFaces(context.Background(), []byte("jpeg")); !errors.Is(err, base) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
