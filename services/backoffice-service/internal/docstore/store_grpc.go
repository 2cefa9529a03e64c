//go:build protogen

package docstore

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/deskhive/deskhive/libs/grpcx"
	storagev1 "github.com/deskhive/deskhive/protos/gen/storage/v1"
)

type grpcStore struct {
	client storagev1.ObjectStoreClient
}

// NewGRPCStore dials the object-store service. Returns nil when no
// address is configured so callers can fall back.
func NewGRPCStore(addr string) (Store, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcStore{client: storagev1.NewObjectStoreClient(conn)}, nil
}

func (s *grpcStore) ProviderID() string {
	return "docstore-grpc"
}

func (s *grpcStore) Put(ctx context.Context, key string, contentType string, body io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}
	resp, err := s.client.PutObject(ctx, &storagev1.PutObjectRequest{
		Key:         key,
		ContentType: contentType,
		Body:        buf.Bytes(),
	})
	if err != nil {
		return "", err
	}
	return resp.GetUrl(), nil
}

func (s *grpcStore) Delete(ctx context.Context, objectURL string) error {
	_, err := s.client.DeleteObject(ctx, &storagev1.DeleteObjectRequest{Url: objectURL})
	return err
}
