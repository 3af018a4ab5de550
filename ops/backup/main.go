package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/mholt/archives"
)

// Archives the payjoind datadir and uploads it to S3. Meant to run as
// a sidecar on a schedule, credentials and target come from the
// environment.
func main() {
	awsAccessKeyID := os.Getenv("AWS_ACCESS_KEY_ID")
	awsSecretAccessKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	awsRegion := os.Getenv("AWS_REGION")
	bucketName := os.Getenv("S3_BUCKET_NAME")
	dataDir := os.Getenv("PAYJOIND_DATADIR")

	if awsAccessKeyID == "" || awsSecretAccessKey == "" || awsRegion == "" || bucketName == "" || dataDir == "" {
		log.Fatal("Missing required environment variables")
	}

	tarFileName := fmt.Sprintf(
		"payjoind-backup-%s.tar.gz", time.Now().Format("2006-01-02-15-04-05"),
	)

	if err := archiveDatadir(dataDir, tarFileName); err != nil {
		log.Fatalf("Failed to archive datadir: %v", err)
	}
	// nolint:all
	defer os.Remove(tarFileName)

	if err := uploadBackup(awsRegion, bucketName, tarFileName); err != nil {
		log.Fatalf("Failed to upload backup: %v", err)
	}

	log.Printf("Successfully uploaded backup to s3://%s/%s", bucketName, tarFileName)
}

func archiveDatadir(dataDir, tarFileName string) error {
	out, err := os.Create(tarFileName)
	if err != nil {
		return err
	}
	defer out.Close()

	// Put the datadir contents at the root of the archive.
	files, err := archives.FilesFromDisk(context.Background(), nil, map[string]string{
		dataDir: "",
	})
	if err != nil {
		return err
	}

	format := archives.CompressedArchive{
		Compression: archives.Gz{},
		Archival:    archives.Tar{},
	}

	return format.Archive(context.Background(), out, files)
}

func uploadBackup(awsRegion, bucketName, tarFileName string) error {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(awsRegion),
	)
	if err != nil {
		return fmt.Errorf("unable to load SDK config: %v", err)
	}

	s3Client := s3.NewFromConfig(cfg)

	// Create the bucket on first use, with versioning so older backups
	// survive overwrites.
	_, err = s3Client.HeadBucket(context.TODO(), &s3.HeadBucketInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		_, err = s3Client.CreateBucket(context.TODO(), &s3.CreateBucketInput{
			Bucket: aws.String(bucketName),
			CreateBucketConfiguration: &types.CreateBucketConfiguration{
				LocationConstraint: types.BucketLocationConstraint(awsRegion),
			},
		})
		if err != nil {
			return fmt.Errorf("unable to create bucket: %v", err)
		}
		log.Printf("Created bucket: %s\n", bucketName)

		_, err = s3Client.PutBucketVersioning(context.TODO(), &s3.PutBucketVersioningInput{
			Bucket: aws.String(bucketName),
			VersioningConfiguration: &types.VersioningConfiguration{
				Status: types.BucketVersioningStatusEnabled,
			},
		})
		if err != nil {
			log.Printf("Warning: Failed to enable versioning: %v", err)
		}
	}

	tarFile, err := os.Open(tarFileName)
	if err != nil {
		return fmt.Errorf("failed to open tar file for upload: %v", err)
	}
	defer tarFile.Close()

	uploader := manager.NewUploader(s3Client)

	_, err = uploader.Upload(context.TODO(), &s3.PutObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(tarFileName),
		Body:   tarFile,
	})
	return err
}
