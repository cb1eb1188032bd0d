package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"cleanistic/config"
	"cleanistic/models"
	"cleanistic/storage"
)

// MediaQueue accepts archive jobs. Enqueue reports false when the job was dropped.
type MediaQueue interface {
	Enqueue(m models.Media) bool
}

// MediaService names analysis images and hands them to the archive worker
type MediaService struct {
	s3    config.S3Config
	queue MediaQueue
}

// NewMediaService creates a new MediaService. queue may be nil, in which
// case images are named but never archived.
func NewMediaService(s3 config.S3Config, queue MediaQueue) *MediaService {
	return &MediaService{s3: s3, queue: queue}
}

// Prepare hashes an image and works out where it will be archived
func (s *MediaService) Prepare(imageID string, img models.ImageInput) models.Media {
	hash := sha256.Sum256(img.Data)
	contentHash := hex.EncodeToString(hash[:])

	mtype := mimetype.Detect(img.Data)
	// media/{hash_prefix}/{hash}.{ext}
	key := fmt.Sprintf("media/%s/%s%s", contentHash[:2], contentHash, mtype.Extension())

	url := key
	if s.s3.Enabled() {
		url = storage.PublicURL(s.s3, key)
	}

	return models.Media{
		ImageID:     imageID,
		Key:         key,
		URL:         url,
		ContentHash: contentHash,
		MimeType:    mtype.String(),
		Data:        img.Data,
		Status:      models.MediaStatusPending,
	}
}

// Enqueue queues prepared images of a stored analysis for upload and
// returns how many were accepted
func (s *MediaService) Enqueue(analysisID string, media []models.Media) int {
	if s.queue == nil {
		return 0
	}
	accepted := 0
	for _, m := range media {
		m.AnalysisID = analysisID
		if s.queue.Enqueue(m) {
			accepted++
		}
	}
	return accepted
}
