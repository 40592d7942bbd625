// Package vision labels post images with the Google Cloud Vision API.
package vision

import (
	"context"
	"fmt"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"

	"foodshare_backend/internal/feature/posts/usecase"
)

const (
	// maxLabels caps the labels requested per image.
	maxLabels = 5

	// minScore drops low-confidence labels.
	minScore = 0.7
)

// annotator is the subset of the Vision client the labeler uses.
type annotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
}

// VisionLabeler detects labels such as "Food" or "Rice" in uploaded images.
type VisionLabeler struct {
	client annotator
	closer func() error
}

var _ usecase.ImageLabeler = (*VisionLabeler)(nil)

// NewVisionLabeler creates a labeler using Application Default Credentials.
func NewVisionLabeler(ctx context.Context) (*VisionLabeler, error) {
	client, err := gvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &VisionLabeler{client: client, closer: client.Close}, nil
}

// Close releases the Vision API client.
func (v *VisionLabeler) Close() error {
	if v.closer == nil {
		return nil
	}
	return v.closer()
}

// Labels returns the descriptions of confident label annotations, best first.
func (v *VisionLabeler) Labels(ctx context.Context, data []byte) ([]string, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: data},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: maxLabels},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision API request failed: %w", err)
	}
	if len(resp.Responses) == 0 {
		return nil, nil
	}
	if resp.Responses[0].Error != nil {
		return nil, fmt.Errorf("vision API error: %s", resp.Responses[0].Error.Message)
	}

	labels := make([]string, 0, len(resp.Responses[0].LabelAnnotations))
	for _, l := range resp.Responses[0].LabelAnnotations {
		if l.Score < minScore {
			continue
		}
		labels = append(labels, l.Description)
	}
	return labels, nil
}
