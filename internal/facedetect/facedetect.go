// Package facedetect counts human faces in an image.
package facedetect

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// Detector returns the number of faces found in imageBytes.
type Detector interface {
	DetectFaces(ctx context.Context, imageBytes []byte) (int, error)
}

// DetectFacesAPI is the Rekognition call used by RekognitionDetector.
type DetectFacesAPI interface {
	DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
}

// RekognitionDetector counts faces with AWS Rekognition.
type RekognitionDetector struct {
	api DetectFacesAPI
}

// NewRekognitionDetector wraps an existing client.
func NewRekognitionDetector(api DetectFacesAPI) *RekognitionDetector {
	return &RekognitionDetector{api: api}
}

// NewRekognitionDetectorFromEnv loads AWS credentials from the default chain.
func NewRekognitionDetectorFromEnv(ctx context.Context, region string) (*RekognitionDetector, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewRekognitionDetector(rekognition.NewFromConfig(cfg)), nil
}

func (d *RekognitionDetector) DetectFaces(ctx context.Context, imageBytes []byte) (int, error) {
	out, err := d.api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: imageBytes},
		Attributes: []types.Attribute{types.AttributeDefault},
	})
	if err != nil {
		return 0, fmt.Errorf("rekognition detect faces: %w", err)
	}
	return len(out.FaceDetails), nil
}
