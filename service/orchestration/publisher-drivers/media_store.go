package publisherdrivers

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/google/uuid"
	configs "github.com/imposting/publish-core/configuration"
)

var s3_downloader = s3manager.NewDownloader(configs.GetAwsSession())
var s3_uploader = s3manager.NewUploader(configs.GetAwsSession())

// DownloadToTemp fetches a media object into /tmp and returns the local
// path. Callers own cleanup of the returned file.
func DownloadToTemp(contentLookupKey string) (string, error) {
	ext := strings.ToLower(filepath.Ext(contentLookupKey))
	localPath := filepath.Join(os.TempDir(), fmt.Sprintf("%s%s", uuid.New().String(), ext))

	file, err := os.Create(localPath)
	if err != nil {
		log.Printf("%s error creating temp file: %s", contentLookupKey, err)
		return "", err
	}
	defer file.Close()

	_, err = s3_downloader.Download(file,
		&s3.GetObjectInput{
			Bucket: aws.String(configs.GetEnvConfigs().S3MediaBucket),
			Key:    aws.String(contentLookupKey),
		})
	if err != nil {
		log.Printf("%s error downloading media object: %s", contentLookupKey, err)
		os.Remove(localPath)
		return "", err
	}

	return localPath, nil
}

func UploadFromPath(localPath string, contentLookupKey string) error {
	file, err := os.Open(localPath)
	if err != nil {
		log.Printf("%s error opening local media file: %s", localPath, err)
		return err
	}
	defer file.Close()

	_, err = s3_uploader.Upload(&s3manager.UploadInput{
		Bucket: aws.String(configs.GetEnvConfigs().S3MediaBucket),
		Key:    aws.String(contentLookupKey),
		Body:   file,
	})
	if err != nil {
		log.Printf("%s error uploading media object: %s", contentLookupKey, err)
	}
	return err
}

// PublicMediaURL maps a media lookup key to the publicly reachable URL
// container-based platforms pull from.
func PublicMediaURL(contentLookupKey string) string {
	base := strings.TrimRight(configs.GetEnvConfigs().MediaPublicBaseURL, "/")
	return fmt.Sprintf("%s/%s", base, contentLookupKey)
}
