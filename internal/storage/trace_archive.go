package storage

import (
	"context"
	"fmt"
	"strings"
)

// TraceArchive stores retrieval decision traces as JSON objects.
type TraceArchive struct {
	client *S3Client
}

func NewTraceArchive(client *S3Client) *TraceArchive {
	return &TraceArchive{client: client}
}

// PutTrace uploads payload under key. Keys are relative object paths.
func (a *TraceArchive) PutTrace(ctx context.Context, key string, payload []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return a.client.PutObject(ctx, key, "application/json", payload)
}

// GetTrace downloads the trace stored under key.
func (a *TraceArchive) GetTrace(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	return a.client.GetObject(ctx, key)
}

// TraceURL returns a presigned download URL for the trace under key.
func (a *TraceArchive) TraceURL(ctx context.Context, key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return a.client.GenerateDownloadURL(ctx, key)
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid trace key %q", key)
	}
	return nil
}
