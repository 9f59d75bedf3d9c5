package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	args := m.Called(objectName, size, contentType)
	return args.String(0), args.Error(1)
}
