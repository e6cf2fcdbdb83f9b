package reliability_test

import (
	"testing"

	"github.com/cachegrid/assetcache/pkg/key"
	"github.com/cachegrid/assetcache/pkg/reliability"
	"github.com/cachegrid/assetcache/pkg/transaction"
	"github.com/stretchr/testify/assert"
)

func files(info, asset []byte) []transaction.CommittedFile {
	var out []transaction.CommittedFile
	if info != nil {
		out = append(out, transaction.CommittedFile{Kind: key.KindInfo, Data: info})
	}
	if asset != nil {
		out = append(out, transaction.CommittedFile{Kind: key.KindAsset, Data: asset})
	}
	return out
}

func TestAdmissionAfterThresholdPlusOneMatches(t *testing.T) {
	f := reliability.New(1)
	v := key.VersionKey{GUID: key.NewGUID()}
	manifest := []key.Kind{key.KindInfo, key.KindAsset}

	admit, _ := f.Observe(v, manifest, files([]byte("info"), []byte("asset")))
	assert.False(t, admit)

	admit, commit := f.Observe(v, manifest, files([]byte("info"), []byte("asset")))
	assert.True(t, admit)
	assert.Len(t, commit, 2)
	assert.True(t, f.Locked(v))
}

func TestManifestMismatchResetsCount(t *testing.T) {
	f := reliability.New(1)
	v := key.VersionKey{GUID: key.NewGUID()}

	admit, _ := f.Observe(v, []key.Kind{key.KindInfo, key.KindAsset}, files([]byte("info"), []byte("asset")))
	assert.False(t, admit)

	// Missing a previously-seen kind resets the counter even though the
	// shared kind matches byte-for-byte.
	admit, _ = f.Observe(v, []key.Kind{key.KindInfo}, files([]byte("info"), nil))
	assert.False(t, admit)
	assert.False(t, f.Locked(v))

	admit, _ = f.Observe(v, []key.Kind{key.KindInfo}, files([]byte("info"), nil))
	assert.True(t, admit)
}

func TestDigestMismatchResetsCount(t *testing.T) {
	f := reliability.New(1)
	v := key.VersionKey{GUID: key.NewGUID()}
	manifest := []key.Kind{key.KindInfo}

	admit, _ := f.Observe(v, manifest, files([]byte("v1"), nil))
	assert.False(t, admit)

	admit, _ = f.Observe(v, manifest, files([]byte("v2"), nil))
	assert.False(t, admit)

	admit, _ = f.Observe(v, manifest, files([]byte("v2"), nil))
	assert.True(t, admit)
}

func TestLockedVersionIgnoresFurtherObservations(t *testing.T) {
	f := reliability.New(1)
	v := key.VersionKey{GUID: key.NewGUID()}
	manifest := []key.Kind{key.KindInfo}

	f.Observe(v, manifest, files([]byte("orig"), nil))
	admit, _ := f.Observe(v, manifest, files([]byte("orig"), nil))
	assert.True(t, admit)

	admit, commit := f.Observe(v, manifest, files([]byte("much longer replacement payload"), nil))
	assert.False(t, admit)
	assert.Nil(t, commit)
}

func TestThresholdZeroAdmitsOnFirstObservation(t *testing.T) {
	f := reliability.New(0)
	v := key.VersionKey{GUID: key.NewGUID()}

	admit, commit := f.Observe(v, []key.Kind{key.KindInfo}, files([]byte("a"), nil))
	assert.True(t, admit)
	assert.Len(t, commit, 1)
}
