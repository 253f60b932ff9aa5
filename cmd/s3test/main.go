// Command s3test exercises the S3 object store against a real bucket or a
// local MinIO, covering the same calls the upload service makes: direct
// upload, presigned download, and the full multipart round trip through
// presigned part URLs.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/clipstream/simple-upload/pkg/simpleupload"
	s3storage "github.com/clipstream/simple-upload/pkg/simpleupload/storage/s3"
)

func main() {
	region := flag.String("region", "us-east-1", "AWS region")
	bucket := flag.String("bucket", "", "S3 bucket name")
	accessKey := flag.String("access-key", "", "AWS access key ID")
	secretKey := flag.String("secret-key", "", "AWS secret access key")
	endpoint := flag.String("endpoint", "", "Custom S3 endpoint (for MinIO, etc.)")
	usePathStyle := flag.Bool("use-path-style", false, "Use path-style addressing")
	createBucket := flag.Bool("create-bucket", false, "Create bucket if it doesn't exist")
	presignSeconds := flag.Int("presign-duration", 3600, "Duration in seconds for presigned URLs")

	command := flag.String("command", "help", "Command to execute: upload, delete, head, url-download, multipart, help")
	objectKey := flag.String("key", "", "Object key for operations")
	filePath := flag.String("file", "", "File path for upload/multipart")

	// MinIO shortcut
	useMinio := flag.Bool("use-minio", false, "Use MinIO defaults (sets endpoint, path-style, etc.)")
	minioEndpoint := flag.String("minio-endpoint", "http://localhost:9000", "MinIO server endpoint")

	flag.Parse()

	if *useMinio {
		*endpoint = *minioEndpoint
		*usePathStyle = true
		*createBucket = true
		if *accessKey == "" {
			*accessKey = "minioadmin"
		}
		if *secretKey == "" {
			*secretKey = "minioadmin"
		}
	}

	if *accessKey == "" {
		*accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if *secretKey == "" {
		*secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}

	if strings.ToLower(*command) == "help" || *command == "" {
		printHelp()
		return
	}

	if *bucket == "" {
		log.Fatal("Bucket name is required")
	}

	config := s3storage.Config{
		Region:                 *region,
		Bucket:                 *bucket,
		AccessKeyID:            *accessKey,
		SecretAccessKey:        *secretKey,
		Endpoint:               *endpoint,
		UsePathStyle:           *usePathStyle,
		CreateBucketIfNotExist: *createBucket,
	}

	fmt.Println("Initializing S3 store with the following configuration:")
	fmt.Printf("  Region: %s\n", config.Region)
	fmt.Printf("  Bucket: %s\n", config.Bucket)
	fmt.Printf("  Endpoint: %s\n", config.Endpoint)
	fmt.Printf("  Use Path Style: %v\n", config.UsePathStyle)
	fmt.Printf("  Create Bucket If Not Exist: %v\n", config.CreateBucketIfNotExist)
	fmt.Println()

	store, err := s3storage.New(config)
	if err != nil {
		log.Fatalf("Failed to initialize S3 store: %v", err)
	}

	ctx := context.Background()
	presign := time.Duration(*presignSeconds) * time.Second

	switch strings.ToLower(*command) {
	case "upload":
		if *objectKey == "" || *filePath == "" {
			log.Fatal("Object key and file path are required for upload")
		}

		file, err := os.Open(*filePath)
		if err != nil {
			log.Fatalf("Failed to open file: %v", err)
		}
		defer file.Close()

		fmt.Printf("Uploading %s to %s...\n", *filePath, *objectKey)
		startTime := time.Now()
		err = store.Upload(ctx, *objectKey, file, "application/octet-stream")
		duration := time.Since(startTime)
		if err != nil {
			log.Fatalf("Upload failed: %v", err)
		}
		fmt.Printf("Upload successful (took %v)\n", duration)

	case "delete":
		if *objectKey == "" {
			log.Fatal("Object key is required for delete")
		}

		fmt.Printf("Deleting %s...\n", *objectKey)
		if err := store.Delete(ctx, *objectKey); err != nil {
			log.Fatalf("Delete failed: %v", err)
		}
		fmt.Println("Delete successful")

	case "head":
		if *objectKey == "" {
			log.Fatal("Object key is required for head")
		}

		if err := store.Head(ctx, *objectKey); err != nil {
			log.Fatalf("Head failed: %v", err)
		}
		fmt.Printf("Object %s exists\n", *objectKey)

	case "url-download":
		if *objectKey == "" {
			log.Fatal("Object key is required for download URL")
		}

		url, err := store.PresignDownload(ctx, *objectKey, presign)
		if err != nil {
			log.Fatalf("Failed to presign download URL: %v", err)
		}
		fmt.Printf("Download URL for %s (valid for %d seconds):\n%s\n",
			*objectKey, *presignSeconds, url)
		fmt.Println("\nTo use this URL with curl:")
		fmt.Printf("curl \"%s\" -o downloaded-file.bin\n", url)

	case "multipart":
		if *objectKey == "" || *filePath == "" {
			log.Fatal("Object key and file path are required for multipart")
		}
		if err := runMultipart(ctx, store, *objectKey, *filePath, presign); err != nil {
			log.Fatalf("Multipart round trip failed: %v", err)
		}

	default:
		log.Fatalf("Unknown command: %s", *command)
	}
}

// multipartChunkSize is S3's minimum size for every part but the last.
const multipartChunkSize = 5 * 1024 * 1024

// runMultipart drives the full client flow: open a session, PUT each chunk
// against its presigned URL, then complete with the collected ETags.
func runMultipart(ctx context.Context, store *s3storage.Store, objectKey, filePath string, presign time.Duration) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	uploadID, err := store.CreateMultipartUpload(ctx, objectKey, "application/octet-stream")
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	fmt.Printf("Opened multipart session %s\n", uploadID)

	var parts []simpleupload.CompletedPart
	buf := make([]byte, multipartChunkSize)
	for partNumber := int32(1); ; partNumber++ {
		n, readErr := io.ReadFull(file, buf)
		if readErr == io.EOF {
			break
		}
		if readErr != nil && readErr != io.ErrUnexpectedEOF {
			abort(ctx, store, objectKey, uploadID)
			return fmt.Errorf("read chunk: %w", readErr)
		}

		url, err := store.PresignUploadPart(ctx, objectKey, uploadID, partNumber, presign)
		if err != nil {
			abort(ctx, store, objectKey, uploadID)
			return fmt.Errorf("presign part %d: %w", partNumber, err)
		}

		etag, err := putPart(ctx, url, buf[:n])
		if err != nil {
			abort(ctx, store, objectKey, uploadID)
			return fmt.Errorf("put part %d: %w", partNumber, err)
		}
		fmt.Printf("Uploaded part %d (%d bytes, etag %s)\n", partNumber, n, etag)
		parts = append(parts, simpleupload.CompletedPart{PartNumber: partNumber, ETag: etag})

		if readErr == io.ErrUnexpectedEOF {
			break
		}
	}

	if err := store.CompleteMultipartUpload(ctx, objectKey, uploadID, parts); err != nil {
		abort(ctx, store, objectKey, uploadID)
		return fmt.Errorf("complete: %w", err)
	}

	if err := store.Head(ctx, objectKey); err != nil {
		return fmt.Errorf("head after complete: %w", err)
	}
	fmt.Printf("Multipart upload of %s complete (%d parts)\n", objectKey, len(parts))
	return nil
}

func putPart(ctx context.Context, url string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.ContentLength = int64(len(data))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	return resp.Header.Get("ETag"), nil
}

func abort(ctx context.Context, store *s3storage.Store, objectKey, uploadID string) {
	if err := store.AbortMultipartUpload(ctx, objectKey, uploadID); err != nil {
		fmt.Printf("Warning: abort failed for session %s: %v\n", uploadID, err)
	}
}

func printHelp() {
	fmt.Println("S3 Object Store Test Application")
	fmt.Println("\nCommands:")
	fmt.Println("  upload        Upload a file in one call")
	fmt.Println("  delete        Delete an object")
	fmt.Println("  head          Check an object exists")
	fmt.Println("  url-download  Generate a presigned download URL")
	fmt.Println("  multipart     Run the full presigned multipart round trip")
	fmt.Println("  help          Show this help message")
	fmt.Println("\nFlags:")
	flag.PrintDefaults()
	fmt.Println("\nExamples:")
	fmt.Println("  Upload a file to MinIO:")
	fmt.Println("    s3test -use-minio -bucket media-bucket -command upload -key video/test.mp4 -file ./local.mp4")
	fmt.Println("\n  Multipart round trip against MinIO:")
	fmt.Println("    s3test -use-minio -bucket media-bucket -command multipart -key video/big.mp4 -file ./big.mp4")
	fmt.Println("\n  Generate a presigned download URL:")
	fmt.Println("    s3test -bucket media-bucket -command url-download -key video/test.mp4")
}
