package configstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breadthcli/internal/breadth"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(slog.Default())
}

func TestStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)

	version, err := store.Create(breadth.AlgorithmSixFactor, CreateParams{Name: "baseline"})
	require.NoError(t, err)
	require.NotEmpty(t, version)

	cfg, err := store.Get(version)
	require.NoError(t, err)
	assert.Equal(t, "baseline", cfg.Name)
	assert.Equal(t, breadth.AlgorithmSixFactor, cfg.Algorithm)
	assert.Equal(t, breadth.DefaultWeights(), cfg.Weights)
	assert.False(t, cfg.IsDefault)
}

func TestStore_Get_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get("no-such-version")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "no-such-version", nf.Version)
}

func TestStore_Create_RejectsInvalidWeights(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create(breadth.AlgorithmSixFactor, CreateParams{
		Name:    "broken",
		Weights: &breadth.Weights{Primary: 0.5, Secondary: 0.5, Reference: 0.5, Sector: 0},
	})
	require.Error(t, err)
	assert.True(t, breadth.IsValidationError(err))
	assert.Zero(t, store.Len(), "no partial record may be persisted")
}

func TestStore_Create_RejectsUnsafeFormula(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create(breadth.AlgorithmCustom, CreateParams{
		Name:          "evil",
		CustomFormula: "primary + system",
	})
	require.Error(t, err)
	assert.True(t, breadth.IsValidationError(err))
	assert.Zero(t, store.Len())
}

func TestStore_Update(t *testing.T) {
	store := newTestStore(t)
	version, err := store.Create(breadth.AlgorithmSixFactor, CreateParams{Name: "baseline"})
	require.NoError(t, err)

	t.Run("merges and revalidates as a whole", func(t *testing.T) {
		name := "corrected"
		updated, err := store.Update(version, UpdateParams{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "corrected", updated.Name)
		assert.Equal(t, version, updated.Version, "a correction keeps its version id")
		assert.True(t, updated.UpdatedAt.After(updated.CreatedAt) || updated.UpdatedAt.Equal(updated.CreatedAt))
	})

	t.Run("invalid merge leaves stored record untouched", func(t *testing.T) {
		bad := breadth.Weights{Primary: 1, Secondary: 1, Reference: 0, Sector: 0}
		_, err := store.Update(version, UpdateParams{Weights: &bad})
		require.Error(t, err)

		cfg, err := store.Get(version)
		require.NoError(t, err)
		assert.Equal(t, breadth.DefaultWeights(), cfg.Weights)
	})

	t.Run("unknown version", func(t *testing.T) {
		_, err := store.Update("missing", UpdateParams{})
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
	})
}

func TestStore_SetDefault_SingleDefaultInvariant(t *testing.T) {
	store := newTestStore(t)

	v1, err := store.Create(breadth.AlgorithmSixFactor, CreateParams{Name: "first", SetDefault: true})
	require.NoError(t, err)
	v2, err := store.Create(breadth.AlgorithmSixFactor, CreateParams{Name: "second"})
	require.NoError(t, err)
	other, err := store.Create(breadth.AlgorithmNormalized, CreateParams{Name: "other", SetDefault: true})
	require.NoError(t, err)

	_, err = store.SetDefault(v2)
	require.NoError(t, err)

	defaults := store.List(true)
	byAlgorithm := map[breadth.Algorithm]int{}
	for _, cfg := range defaults {
		byAlgorithm[cfg.Algorithm]++
	}
	assert.Equal(t, 1, byAlgorithm[breadth.AlgorithmSixFactor])
	assert.Equal(t, 1, byAlgorithm[breadth.AlgorithmNormalized])

	got, ok := store.Default(breadth.AlgorithmSixFactor)
	require.True(t, ok)
	assert.Equal(t, v2, got.Version)

	v1cfg, err := store.Get(v1)
	require.NoError(t, err)
	assert.False(t, v1cfg.IsDefault)

	otherCfg, err := store.Get(other)
	require.NoError(t, err)
	assert.True(t, otherCfg.IsDefault, "defaults are per algorithm")
}

func TestStore_SetDefault_Concurrent(t *testing.T) {
	store := newTestStore(t)

	versions := make([]string, 8)
	for i := range versions {
		v, err := store.Create(breadth.AlgorithmSixFactor, CreateParams{Name: fmt.Sprintf("cfg-%d", i)})
		require.NoError(t, err)
		versions[i] = v
	}

	var wg sync.WaitGroup
	for _, v := range versions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_, err := store.SetDefault(v)
				assert.NoError(t, err)

				count := 0
				for _, cfg := range store.List(true) {
					if cfg.Algorithm == breadth.AlgorithmSixFactor {
						count++
					}
				}
				assert.Equal(t, 1, count, "readers must never observe more than one default")
			}
		}()
	}
	wg.Wait()
}

func TestStore_List_SortedByRecency(t *testing.T) {
	store := newTestStore(t)

	var versions []string
	for i := range 3 {
		v, err := store.Create(breadth.AlgorithmSixFactor, CreateParams{Name: fmt.Sprintf("cfg-%d", i)})
		require.NoError(t, err)
		versions = append(versions, v)
	}

	name := "touched"
	_, err := store.Update(versions[0], UpdateParams{Name: &name})
	require.NoError(t, err)

	list := store.List(false)
	require.Len(t, list, 3)
	assert.Equal(t, versions[0], list[0].Version, "most recently updated first")
}

func TestStore_ExportImport(t *testing.T) {
	store := newTestStore(t)

	v1, err := store.Create(breadth.AlgorithmSixFactor, CreateParams{Name: "one"})
	require.NoError(t, err)
	_, err = store.Create(breadth.AlgorithmCustom, CreateParams{Name: "two", CustomFormula: "primary"})
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		payload, err := store.Export()
		require.NoError(t, err)

		dest := newTestStore(t)
		outcome, err := dest.Import(payload)
		require.NoError(t, err)
		assert.Equal(t, 2, outcome.Imported)
		assert.Empty(t, outcome.Errors)
		assert.Equal(t, 2, dest.Len())
	})

	t.Run("selected versions only", func(t *testing.T) {
		payload, err := store.Export(v1)
		require.NoError(t, err)

		var parsed ExportPayload
		require.NoError(t, json.Unmarshal(payload, &parsed))
		require.Len(t, parsed.Configs, 1)
		assert.Equal(t, v1, parsed.Configs[0].Version)
	})

	t.Run("one bad record never aborts the batch", func(t *testing.T) {
		good := breadth.Config{Algorithm: breadth.AlgorithmSixFactor, Name: "ok", Weights: breadth.DefaultWeights(), Indicators: breadth.DefaultIndicatorParams()}
		bad := breadth.Config{Algorithm: breadth.AlgorithmSixFactor, Name: "bad", Weights: breadth.Weights{Primary: 2}, Indicators: breadth.DefaultIndicatorParams()}
		payload, err := json.Marshal(ExportPayload{Configs: []breadth.Config{good, bad}})
		require.NoError(t, err)

		dest := newTestStore(t)
		outcome, err := dest.Import(payload)
		require.NoError(t, err)
		assert.Equal(t, 1, outcome.Imported)
		require.Len(t, outcome.Errors, 1)
		assert.Equal(t, "bad", outcome.Errors[0].Name)
	})

	t.Run("existing version is never replaced", func(t *testing.T) {
		dest := newTestStore(t)
		version, err := dest.Create(breadth.AlgorithmSixFactor, CreateParams{Name: "original", SetDefault: true})
		require.NoError(t, err)

		payload, err := dest.Export(version)
		require.NoError(t, err)

		var parsed ExportPayload
		require.NoError(t, json.Unmarshal(payload, &parsed))
		require.Len(t, parsed.Configs, 1)
		parsed.Configs[0].Name = "imported clone"
		clone, err := json.Marshal(parsed)
		require.NoError(t, err)

		outcome, err := dest.Import(clone)
		require.NoError(t, err)
		assert.Zero(t, outcome.Imported)
		require.Len(t, outcome.Errors, 1)
		assert.Equal(t, version, outcome.Errors[0].Version)

		stored, err := dest.Get(version)
		require.NoError(t, err)
		assert.Equal(t, "original", stored.Name)

		def, ok := dest.Default(breadth.AlgorithmSixFactor)
		require.True(t, ok)
		assert.True(t, def.IsDefault)
		assert.Equal(t, version, def.Version)
		assert.Len(t, dest.List(true), 1)
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, err := store.Import([]byte("{not json"))
		require.Error(t, err)
		assert.True(t, breadth.IsValidationError(err))
	})

	t.Run("unknown export version", func(t *testing.T) {
		_, err := store.Export("missing")
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
	})
}
