// Package files manages dataroom documents in object storage: expiring
// presigned URLs for uploads and downloads, and bucket listings. Each
// customer has a bucket; objects live under projectId/itemId/filename.
package files

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// acceptedExtensions is the closed set of file types the dataroom accepts.
var acceptedExtensions = map[string]bool{
	".txt":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".csv":  true,
	".xls":  true,
	".xlsx": true,
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	URLExpiry time.Duration
}

// objectClient is the slice of the minio API the service uses, split out so
// tests can stand in for a live server.
type objectClient interface {
	PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
	PresignedPutObject(ctx context.Context, bucket, object string, expiry time.Duration) (*url.URL, error)
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

type Service struct {
	client objectClient
	expiry time.Duration
}

func NewService(cfg Config) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}
	return &Service{client: client, expiry: cfg.URLExpiry}, nil
}

func NewServiceWithClient(client objectClient, expiry time.Duration) *Service {
	return &Service{client: client, expiry: expiry}
}

// UploadGrant is the per-file answer to an upload request. Files with an
// unaccepted extension get no URL and a false AcceptedFileFormat, and the
// caller decides what to tell the user.
type UploadGrant struct {
	PresignedURL       string `json:"presignedUrl"`
	OriginalName       string `json:"originalName"`
	SecuredName        string `json:"securedName"`
	AcceptedFileFormat bool   `json:"acceptedFileFormat"`
}

// Object is one dataroom entry from a bucket listing.
type Object struct {
	Key          string `json:"Key"`
	ProjectID    string `json:"projectId"`
	ItemID       string `json:"itemId"`
	Size         string `json:"Size"`
	LastModified string `json:"LastModified"`
	VersionID    string `json:"VersionId,omitempty"`
	IsLatest     bool   `json:"IsLatest"`
}

// DownloadURL returns an expiring URL for one stored document. An empty
// versionID reads the latest version.
func (s *Service) DownloadURL(ctx context.Context, bucket, projectID, itemID, filename, versionID string) (string, error) {
	params := url.Values{}
	if versionID != "" {
		params.Set("versionId", versionID)
	}
	object := objectName(projectID, itemID, filename)
	signed, err := s.client.PresignedGetObject(ctx, bucket, object, s.expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign download %s: %w", object, err)
	}
	return signed.String(), nil
}

// UploadURLs vets each filename and returns one grant per input, in order.
// Rejected files are reported, not dropped, so the response lines up with the
// request.
func (s *Service) UploadURLs(ctx context.Context, bucket, projectID, itemID string, filenames []string) ([]UploadGrant, error) {
	grants := make([]UploadGrant, 0, len(filenames))
	for _, name := range filenames {
		extension := strings.ToLower(path.Ext(name))
		grant := UploadGrant{OriginalName: name, SecuredName: name}
		if acceptedExtensions[extension] {
			grant.SecuredName = SecureFilename(strings.TrimSuffix(name, path.Ext(name))) + extension
			object := objectName(projectID, itemID, grant.SecuredName)
			signed, err := s.client.PresignedPutObject(ctx, bucket, object, s.expiry)
			if err != nil {
				return nil, fmt.Errorf("presign upload %s: %w", object, err)
			}
			grant.PresignedURL = signed.String()
			grant.AcceptedFileFormat = true
		}
		grants = append(grants, grant)
	}
	return grants, nil
}

// DataroomContents lists the stored documents under a project, narrowed to
// one item when itemID is set. Versions are included, latest first per key.
func (s *Service) DataroomContents(ctx context.Context, bucket, projectID, itemID string) ([]Object, error) {
	prefix := objectName(projectID, itemID, "")
	listing := s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:       prefix,
		Recursive:    true,
		WithVersions: true,
	})

	var objects []Object
	for info := range listing {
		if info.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", bucket, prefix, info.Err)
		}
		segments := strings.Split(info.Key, "/")
		object := Object{
			Key:          segments[len(segments)-1],
			Size:         humanSize(info.Size),
			LastModified: info.LastModified.UTC().Format(time.RFC3339),
			VersionID:    info.VersionID,
			IsLatest:     info.IsLatest,
		}
		if len(segments) >= 2 {
			object.ProjectID = segments[0]
			object.ItemID = segments[1]
		}
		objects = append(objects, object)
	}
	sort.SliceStable(objects, func(i, j int) bool {
		if objects[i].Key != objects[j].Key {
			return objects[i].Key < objects[j].Key
		}
		return objects[i].IsLatest && !objects[j].IsLatest
	})
	return objects, nil
}

func objectName(projectID, itemID, filename string) string {
	segments := make([]string, 0, 3)
	for _, segment := range []string{projectID, itemID, filename} {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return strings.Join(segments, "/")
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SecureFilename flattens a user-supplied name into a single safe path
// segment.
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, "/", " ")
	name = strings.ReplaceAll(name, "\\", " ")
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	return name
}

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

func humanSize(size int64) string {
	if size <= 0 {
		return "0 B"
	}
	exponent := int(math.Floor(math.Log(float64(size)) / math.Log(1024)))
	if exponent >= len(sizeUnits) {
		exponent = len(sizeUnits) - 1
	}
	value := float64(size) / math.Pow(1024, float64(exponent))
	return fmt.Sprintf("%s %s", strings.TrimSuffix(fmt.Sprintf("%.2f", value), ".00"), sizeUnits[exponent])
}
