//go:build integration

package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/charmbracelet/log"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/franksops/gostage/location"
	"github.com/franksops/gostage/provider"
	"github.com/franksops/gostage/store"
)

const (
	minioImage = "minio/minio:RELEASE.2025-04-22T22-12-26Z"
	minioUser  = "gstage"
	minioPass  = "gstage-secret"
)

// checkTestcontainersAvailable reports whether a container provider can be
// reached. Provider detection may panic when no daemon is present.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()
	p, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer p.Close()
	return true
}

func startMinIO(t *testing.T) *s3.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping integration test: testcontainers provider not available")
	}

	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        minioImage,
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     minioUser,
				"MINIO_ROOT_PASSWORD": minioPass,
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start MinIO: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate MinIO: %v", err)
		}
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := c.MappedPort(ctx, "9000/tcp")
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("AWS_ACCESS_KEY_ID", minioUser)
	t.Setenv("AWS_SECRET_ACCESS_KEY", minioPass)
	client, err := provider.NewS3Client(ctx, provider.S3ClientOptions{
		Region:    "us-east-1",
		Endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
		PathStyle: true,
	})
	if err != nil {
		t.Fatalf("Failed to create S3 client: %v", err)
	}
	return client
}

func TestObjectStoreClient_MinIORoundTrip(t *testing.T) {
	client := startMinIO(t)
	ctx := context.Background()
	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String("artifacts")}); err != nil {
		t.Fatalf("CreateBucket failed: %v", err)
	}

	journal := store.NewMemoryStore()
	c := NewObjectStoreClient(client, Options{Workers: 4, Store: journal, RunID: "it", Logger: log.New(io.Discard)})

	src := t.TempDir()
	files := map[string]string{
		"index.html":     "<html></html>",
		"css/site.css":   "body{}",
		"img/deep/a.svg": "<svg/>",
		"empty.txt":      "",
	}
	writeFiles(t, src, files)

	if err := c.Push(ctx, src, location.MustParse("s3://artifacts/site/")); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	dir := t.TempDir()
	for rel, want := range files {
		p, err := c.Fetch(ctx, location.MustParse("s3://artifacts/site/"+rel), dir)
		if err != nil {
			t.Fatalf("Fetch %s failed: %v", rel, err)
		}
		got, err := os.ReadFile(p)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != want {
			t.Errorf("%s: got %q, want %q", rel, got, want)
		}
		if filepath.Dir(p) != dir {
			t.Errorf("Expected %s directly inside %s", p, dir)
		}
	}

	records, err := journal.ListJobs("it/")
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range records {
		if r.State != store.StateCompleted {
			t.Errorf("Job %s ended %s: %s", r.ID, r.State, r.Error)
		}
	}
}
