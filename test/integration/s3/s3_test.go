//go:build integration

package s3_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittodir/pkg/config"
	"github.com/marmos91/dittodir/pkg/files"
	"github.com/marmos91/dittodir/pkg/service"
	"github.com/marmos91/dittodir/pkg/store/blob"
	s3store "github.com/marmos91/dittodir/pkg/store/blob/s3"
	blobtesting "github.com/marmos91/dittodir/pkg/store/blob/testing"
	"github.com/marmos91/dittodir/pkg/token"
)

func localstackEndpoint() string {
	if endpoint := os.Getenv("LOCALSTACK_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	return "http://localhost:4566"
}

// setupBucket creates bucketName on Localstack and removes it, with its
// objects, when the test ends.
func setupBucket(t *testing.T, bucketName string) *s3.Client {
	t.Helper()
	ctx := context.Background()

	cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion("us-east-1"),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	if err != nil {
		t.Fatalf("Failed to load AWS config: %v", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(localstackEndpoint())
		o.UsePathStyle = true
	})

	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucketName)}); err != nil {
		t.Fatalf("Failed to create test bucket: %v", err)
	}

	t.Cleanup(func() {
		list, _ := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: aws.String(bucketName)})
		if list != nil {
			for _, obj := range list.Contents {
				_, _ = client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucketName), Key: obj.Key})
			}
		}
		_, _ = client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucketName)})
	})

	return client
}

// TestS3BlobStore_Integration runs the blob store suite against Localstack.
//
// Prerequisites:
//   - Localstack running on localhost:4566 (or LOCALSTACK_ENDPOINT)
//   - Run with: go test -tags=integration ./test/integration/s3/...
//
// To start Localstack:
//
//	docker run --rm -p 4566:4566 localstack/localstack
func TestS3BlobStore_Integration(t *testing.T) {
	const bucketName = "dittodir-test-bucket"
	client := setupBucket(t, bucketName)

	testCounter := 0
	suite := &blobtesting.StoreTestSuite{
		NewStore: func(t *testing.T) blob.Store {
			testCounter++
			store, err := s3store.New(context.Background(), s3store.Config{
				Client:    client,
				Bucket:    bucketName,
				KeyPrefix: fmt.Sprintf("test-%d/", testCounter),
			})
			if err != nil {
				t.Fatalf("Failed to create S3 blob store for test %d: %v", testCounter, err)
			}
			return store
		},
	}
	suite.Run(t)
}

// TestS3FilesBackend_Integration drives a Files backend built from
// configuration the way the files command does.
func TestS3FilesBackend_Integration(t *testing.T) {
	const bucketName = "dittodir-files-backend"
	setupBucket(t, bucketName)
	ctx := context.Background()

	store, err := config.CreateBlobStore(ctx, &config.StoreConfig{
		Type: "s3",
		S3: map[string]any{
			"region":            "us-east-1",
			"bucket":            bucketName,
			"key_prefix":        "files/",
			"endpoint":          localstackEndpoint(),
			"access_key_id":     "test",
			"secret_access_key": "test",
			"max_retries":       3,
		},
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create S3 store from config: %v", err)
	}
	defer store.Close()

	signer, err := token.New("integration-test-secret", 10*time.Second)
	if err != nil {
		t.Fatalf("Failed to create signer: %v", err)
	}
	svc := files.New(store, signer)

	report := service.FileID("alice", "report.txt")
	notes := service.FileID("alice", "notes.txt")
	other := service.FileID("bob", "report.txt")

	for _, id := range []string{report, notes, other} {
		if err := svc.WriteFile(ctx, id, []byte("content of "+id), signer.IssueNow(id)); err != nil {
			t.Fatalf("WriteFile(%s) failed: %v", id, err)
		}
	}

	data, err := svc.GetFile(ctx, report, signer.IssueNow(report))
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if string(data) != "content of "+report {
		t.Errorf("GetFile returned %q", data)
	}

	if err := svc.DeleteUserFiles(ctx, "alice", signer.IssueNow("alice")); err != nil {
		t.Fatalf("DeleteUserFiles failed: %v", err)
	}
	if _, err := svc.GetFile(ctx, notes, signer.IssueNow(notes)); !service.IsNotFound(err) {
		t.Errorf("Expected NOT_FOUND after DeleteUserFiles, got %v", err)
	}
	if _, err := svc.GetFile(ctx, other, signer.IssueNow(other)); err != nil {
		t.Errorf("Other user's file should survive, got %v", err)
	}
}
