package providers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"cleanistic/models"
)

var errEmptyImage = errors.New("empty image data")

// ValidateImage checks that img holds image bytes and returns the detected MIME type
func ValidateImage(img models.ImageInput) (string, error) {
	if len(img.Data) == 0 {
		return "", &models.ImageAnalysisError{Image: img.Filename, Err: errEmptyImage}
	}
	mtype := mimetype.Detect(img.Data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", &models.ImageAnalysisError{
			Image: img.Filename,
			Err:   fmt.Errorf("not an image: %s", mtype.String()),
		}
	}
	return mtype.String(), nil
}

// angleFor assigns vantage points in shooting order when the provider does not report one
func angleFor(index int) models.Angle {
	return models.Angles[index%len(models.Angles)]
}
