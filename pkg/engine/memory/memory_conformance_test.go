package memory_test

import (
	"context"
	"testing"

	"github.com/cachegrid/assetcache/pkg/engine"
	"github.com/cachegrid/assetcache/pkg/engine/enginetest"
	"github.com/cachegrid/assetcache/pkg/engine/memory"
)

func TestConformance(t *testing.T) {
	enginetest.RunConformanceSuite(t, func(t *testing.T) engine.Engine {
		s := memory.New()
		if err := s.Init(context.Background(), engine.Options{}); err != nil {
			t.Fatalf("init: %v", err)
		}
		t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
		return s
	})
}
