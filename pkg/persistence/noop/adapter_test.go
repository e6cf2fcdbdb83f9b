package noop_test

import (
	"context"
	"testing"

	"github.com/cachegrid/assetcache/pkg/engine"
	"github.com/cachegrid/assetcache/pkg/persistence/noop"
	"github.com/stretchr/testify/assert"
)

func TestNoopAdapter(t *testing.T) {
	a := noop.New()
	ctx := context.Background()

	assert.NoError(t, a.SaveDatabase(ctx, []byte("anything")))

	_, err := a.LoadDatabase(ctx)
	assert.ErrorIs(t, err, engine.ErrNoSnapshot)
}
