package orchestration

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tables "github.com/imposting/publish-core/dal/tables/v1"
	"github.com/imposting/publish-core/service/media"
	drivers "github.com/imposting/publish-core/service/orchestration/publisher-drivers"
)

// ImageNormalizer is the single media transform the preparer can run.
type ImageNormalizer interface {
	Normalize(ctx context.Context, imagePath string, text string) (string, error)
}

// S3MediaPreparer stages a post's media for the publisher fan-out: it
// downloads the object for drivers that upload bytes, derives the public
// URL for drivers that pull, and runs the normalizer first when the row
// asks for it. Normalized output replaces the row's media object so
// retry clones reuse it instead of normalizing again.
type S3MediaPreparer struct {
	normalizer ImageNormalizer
}

func NewMediaPreparer() *S3MediaPreparer {
	return &S3MediaPreparer{normalizer: media.NewNormalizer(media.NewPexelsClient())}
}

func NewMediaPreparerWithNormalizer(normalizer ImageNormalizer) *S3MediaPreparer {
	return &S3MediaPreparer{normalizer: normalizer}
}

func (p *S3MediaPreparer) Prepare(ctx context.Context, post *tables.ScheduledPost) (string, string, func(), error) {
	if post.ProcessImage && !post.ImageProcessed {
		if err := p.normalize(ctx, post); err != nil {
			return "", "", nil, err
		}
	}
	if post.MediaLookupKey == "" {
		return "", "", nil, nil
	}

	localPath, err := drivers.DownloadToTemp(post.MediaLookupKey)
	if err != nil {
		return "", "", nil, err
	}
	cleanup := func() {
		if err := os.Remove(localPath); err != nil {
			log.Printf("correlationID: %s error removing temp media %s: %s", post.PostID, localPath, err)
		}
	}
	return drivers.PublicMediaURL(post.MediaLookupKey), localPath, cleanup, nil
}

// normalize runs the image pipeline and swaps the row's media object for
// the processed artifact.
func (p *S3MediaPreparer) normalize(ctx context.Context, post *tables.ScheduledPost) error {
	sourcePath := ""
	if post.MediaLookupKey != "" {
		if !post.HasImage() {
			return fmt.Errorf("image processing requested for non-image media %s", post.MediaLookupKey)
		}
		downloaded, err := drivers.DownloadToTemp(post.MediaLookupKey)
		if err != nil {
			return err
		}
		defer os.Remove(downloaded)
		sourcePath = downloaded
	}

	processedPath, err := p.normalizer.Normalize(ctx, sourcePath, post.Description)
	if err != nil {
		return err
	}
	defer os.Remove(processedPath)

	processedKey := fmt.Sprintf("processed/%s%s", post.PostID, filepath.Ext(processedPath))
	if err := drivers.UploadFromPath(processedPath, processedKey); err != nil {
		return err
	}

	post.MediaLookupKey = processedKey
	post.MediaFileType = tables.MEDIA_IMAGE
	post.ImageProcessed = true
	log.Printf("correlationID: %s normalized media stored as %s", post.PostID, processedKey)
	return nil
}
