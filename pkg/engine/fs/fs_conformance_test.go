package fs_test

import (
	"context"
	"testing"

	"github.com/cachegrid/assetcache/pkg/engine"
	"github.com/cachegrid/assetcache/pkg/engine/enginetest"
	"github.com/cachegrid/assetcache/pkg/engine/fs"
)

func TestConformance(t *testing.T) {
	enginetest.RunConformanceSuite(t, func(t *testing.T) engine.Engine {
		s := fs.New()
		if err := s.Init(context.Background(), engine.Options{CachePath: t.TempDir()}); err != nil {
			t.Fatalf("init: %v", err)
		}
		t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
		return s
	})
}
