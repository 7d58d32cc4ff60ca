// Package backend constructs concrete backends by scheme.
package backend

import (
	"context"
	"fmt"

	"github.com/aweris/castor"
	"github.com/aweris/castor/internal/backend/httpx"
	"github.com/aweris/castor/internal/backend/local"
	s3backend "github.com/aweris/castor/internal/backend/s3"
)

// Settings carries per-scheme connection configuration.
type Settings struct {
	S3 s3backend.Config
}

// ForScheme builds the backend and descriptor for a location's scheme.
func ForScheme(ctx context.Context, scheme string, settings Settings) (castor.Backend, *castor.Descriptor, error) {
	switch scheme {
	case castor.SchemeLocal:
		return local.New(), castor.NewDescriptor(castor.SchemeLocal, castor.AlgoSHA256), nil
	case s3backend.Scheme:
		b, err := s3backend.New(ctx, settings.S3)
		if err != nil {
			return nil, nil, err
		}
		return b, castor.NewDescriptor(s3backend.Scheme, castor.AlgoMD5), nil
	case httpx.Scheme:
		return httpx.New(nil), castor.NewDescriptor(httpx.Scheme, castor.AlgoSHA256), nil
	default:
		return nil, nil, fmt.Errorf("unknown backend scheme %q", scheme)
	}
}
