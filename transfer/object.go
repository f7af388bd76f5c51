package transfer

import (
	"context"
	"path"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"

	"github.com/franksops/gostage/location"
	"github.com/franksops/gostage/provider"
)

// ensure interface is implemented
var _ Client = (*ObjectStoreClient)(nil)

// ObjectStoreClient transfers location.Object locations through an
// S3-compatible API.
type ObjectStoreClient struct {
	api          provider.S3API
	uploaderOpts []func(*manager.Uploader)
	*mover
}

// NewObjectStoreClient returns a client over api. uploaderOpts tune the
// multipart uploader, for example its part size.
func NewObjectStoreClient(api provider.S3API, opts Options, uploaderOpts ...func(*manager.Uploader)) *ObjectStoreClient {
	return &ObjectStoreClient{
		api:          api,
		uploaderOpts: uploaderOpts,
		mover:        newMover(opts),
	}
}

func (c *ObjectStoreClient) remote(obj location.Object) remote {
	return remote{
		provider: provider.NewS3Provider(c.api, obj.Bucket, "", c.uploaderOpts...),
		path:     obj.Key,
		ref:      obj.String(),
		target: func(rel string) string {
			return path.Join(obj.Key, rel)
		},
		refOf: func(key string) string {
			return location.Object{Bucket: obj.Bucket, Key: key}.String()
		},
	}
}

// Fetch streams the object to dir/<base of key>.
func (c *ObjectStoreClient) Fetch(ctx context.Context, loc location.Location, dir string) (string, error) {
	obj, ok := loc.(location.Object)
	if !ok {
		return "", unsupported("fetch", loc, "object store client")
	}
	return c.fetch(ctx, c.remote(obj), obj.Name(), dir)
}

// Push uploads a file to the object's key, or every file of a directory to
// key/<relative path>.
func (c *ObjectStoreClient) Push(ctx context.Context, src string, loc location.Location) error {
	obj, ok := loc.(location.Object)
	if !ok {
		return unsupported("push", loc, "object store client")
	}
	return c.push(ctx, src, c.remote(obj))
}
