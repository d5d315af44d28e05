package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/types"
)

func seedCandidate(id, brand string, price float64, stock, ram, storage int, useCases ...string) types.Candidate {
	return types.Candidate{
		ID:    id,
		Model: "Model " + id,
		Brand: brand,
		Specs: types.Specs{
			Processor: "Intel Core i5",
			RAMGB:     ram,
			StorageGB: storage,
		},
		Price:    price,
		Stock:    stock,
		UseCases: useCases,
	}
}

func writeSeed(t *testing.T, dir string, laptops ...types.Candidate) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{"laptops": laptops})
	require.NoError(t, err)
	path := filepath.Join(dir, "laptops.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "catalog.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Seed(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	seed := writeSeed(t, t.TempDir(),
		seedCandidate("lap-1", "Dell", 1000, 100, 16, 512, "office-work"),
		seedCandidate("lap-2", "Lenovo", 1400, 50, 32, 1024, "programming"),
	)

	n, err := s.SeedFromFile(ctx, seed)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "lap-1", all[0].ID)
	assert.Equal(t, "Dell", all[0].Brand)
	assert.Equal(t, 16, all[0].Specs.RAMGB)

	t.Run("reseed replaces previous contents", func(t *testing.T) {
		seed2 := writeSeed(t, t.TempDir(),
			seedCandidate("lap-9", "HP", 900, 10, 8, 256, "office-work"))
		n, err := s.SeedFromFile(ctx, seed2)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		all, err := s.All(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "lap-9", all[0].ID)
	})

	t.Run("missing seed file", func(t *testing.T) {
		_, err := s.SeedFromFile(ctx, filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("malformed seed leaves catalog intact", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
		_, err := s.SeedFromFile(ctx, bad)
		require.Error(t, err)

		all, err := s.All(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestStore_Discover(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	seed := writeSeed(t, t.TempDir(),
		seedCandidate("lap-office", "Dell", 1000, 300, 16, 512, "office-work", "programming"),
		seedCandidate("lap-lowstock", "Dell", 1000, 5, 16, 512, "office-work"),
		seedCandidate("lap-pricey", "Dell", 2500, 300, 16, 512, "office-work"),
		seedCandidate("lap-slightly-over", "Dell", 1600, 300, 16, 512, "office-work"),
		seedCandidate("lap-lowram", "Dell", 1000, 300, 8, 512, "office-work"),
		seedCandidate("lap-gaming", "MSI", 1400, 300, 32, 1024, "gaming"),
	)
	_, err := s.SeedFromFile(ctx, seed)
	require.NoError(t, err)

	base := types.Requirement{
		Quantity:         20,
		MaxBudgetPerUnit: 1500,
		UseCase:          types.UseCaseOfficeWork,
		MinRAMGB:         16,
	}

	ids := func(cs []types.Candidate) []string {
		out := make([]string, 0, len(cs))
		for _, c := range cs {
			out = append(out, c.ID)
		}
		return out
	}

	t.Run("filters stock, budget, ram, and use case", func(t *testing.T) {
		got, err := s.Discover(ctx, base)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"lap-office", "lap-slightly-over"}, ids(got))
	})

	t.Run("budget tolerance admits slightly-over candidates only", func(t *testing.T) {
		got, err := s.Discover(ctx, base)
		require.NoError(t, err)
		assert.Contains(t, ids(got), "lap-slightly-over") // 1600 <= 1500*1.15
		assert.NotContains(t, ids(got), "lap-pricey")
	})

	t.Run("brand preference is case insensitive", func(t *testing.T) {
		req := base
		req.PreferredBrand = "dell"
		got, err := s.Discover(ctx, req)
		require.NoError(t, err)
		for _, c := range got {
			assert.Equal(t, "Dell", c.Brand)
		}
		assert.NotEmpty(t, got)
	})

	t.Run("use case membership", func(t *testing.T) {
		req := base
		req.UseCase = types.UseCaseGaming
		got, err := s.Discover(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, []string{"lap-gaming"}, ids(got))
	})

	t.Run("no match returns empty without error", func(t *testing.T) {
		req := base
		req.MaxBudgetPerUnit = 100
		got, err := s.Discover(ctx, req)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
