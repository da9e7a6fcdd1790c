package sku_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/jersey-pos/internal/core/domain"
	"github.com/rl1809/jersey-pos/internal/core/sku"
)

func TestEncode_StaticTeam(t *testing.T) {
	enc := sku.NewEncoder(sku.NewRegistry())

	got, err := enc.Encode(sku.Identity{Team: "Real Madrid", Season: "2024-25", Type: "Home"}, "M", "H")
	require.NoError(t, err)
	assert.Equal(t, "RM24HH1", got)

	got, err = enc.Encode(sku.Identity{Team: "Spurs", Season: "2023", Type: "Third"}, "XXL", "Full")
	require.NoError(t, err)
	assert.Equal(t, "SPS233F4", got)
}

func TestEncode_IsDeterministic(t *testing.T) {
	enc := sku.NewEncoder(sku.NewRegistry())
	id := sku.Identity{Team: "Napoli", Season: "Retro 1990", Type: "Retro"}

	first, err := enc.Encode(id, "L", "F")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := enc.Encode(id, "L", "F")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "NA90RF2", first)
}

func TestEncode_CollidingFallbacksDiffer(t *testing.T) {
	enc := sku.NewEncoder(sku.NewRegistry())
	id := func(team string) sku.Identity { return sku.Identity{Team: team, Season: "24", Type: "Home"} }

	// "AR" is Arsenal's static code, so both fall back to three letters.
	tula, err := enc.Encode(id("Arsenal Tula"), "S", "H")
	require.NoError(t, err)
	argentinos, err := enc.Encode(id("Argentinos Juniors"), "S", "H")
	require.NoError(t, err)

	assert.Equal(t, "ARS24HHS", tula)
	assert.Equal(t, "ARG24HHS", argentinos)
}

func TestEncode_MintedCodesAreReserved(t *testing.T) {
	reg := sku.NewRegistry()
	enc := sku.NewEncoder(reg)
	id := func(team string) sku.Identity { return sku.Identity{Team: team, Season: "24", Type: "Away"} }

	roma, _ := enc.Encode(id("Roma"), "M", "H")
	rotherham, _ := enc.Encode(id("Rotherham"), "M", "H")
	rosenborg, _ := enc.Encode(id("Rosenborg"), "M", "H")

	assert.Equal(t, "RO24AH1", roma)
	assert.Equal(t, "ROT24AH1", rotherham)
	assert.Equal(t, "ROS24AH1", rosenborg)

	assert.Equal(t, "RO", reg.TeamCode("roma"), "team names are matched case-insensitively")
}

func TestRegistry_ResetForgetsMintedCodes(t *testing.T) {
	reg := sku.NewRegistry()
	assert.Equal(t, "RO", reg.TeamCode("Roma"))
	assert.Equal(t, "ROT", reg.TeamCode("Rotherham"))

	reg.Reset()
	assert.Equal(t, "RO", reg.TeamCode("Rotherham"))
	assert.Equal(t, "RM", reg.TeamCode("Real Madrid"))
}

func TestPreview_DoesNotReserveFallbackCode(t *testing.T) {
	reg := sku.NewRegistry()
	enc := sku.NewEncoder(reg)
	roma := sku.Identity{Team: "Roma", Season: "2024-25", Type: "Home"}

	got, err := enc.Preview(roma, "M", "H")
	require.NoError(t, err)
	assert.Equal(t, "RO24HH1", got)

	assert.Equal(t, "RO", reg.TeamCode("Rotherham"), "a preview must leave RO unclaimed")
	got, err = enc.Preview(roma, "M", "H")
	require.NoError(t, err)
	assert.Equal(t, "ROM24HH1", got)

	got, err = enc.Preview(sku.Identity{Team: "Real Madrid", Season: "2024-25", Type: "Home"}, "M", "H")
	require.NoError(t, err)
	assert.Equal(t, "RM24HH1", got)

	_, err = enc.Preview(roma, "M", "X")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEncode_RejectsUnknownSleeve(t *testing.T) {
	enc := sku.NewEncoder(sku.NewRegistry())
	_, err := enc.Encode(sku.Identity{Team: "Chelsea", Season: "24", Type: "Home"}, "M", "Sleeveless")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestSeed_RelearnsMintedCode(t *testing.T) {
	reg := sku.NewRegistry()
	enc := sku.NewEncoder(reg)

	// A previous run minted ROT for Rotherham while Roma was still unknown.
	ok := enc.Seed(domain.SkuSeed{TeamName: "Rotherham", Season: "2024-25", Type: "Home", Size: "M", Sleeve: "H", SKU: "ROT24HH1"})
	require.True(t, ok)

	got, err := enc.Encode(sku.Identity{Team: "Rotherham", Season: "2024-25", Type: "Away"}, "S", "F")
	require.NoError(t, err)
	assert.Equal(t, "ROT24AFS", got)

	roma, err := enc.Encode(sku.Identity{Team: "Roma", Season: "24", Type: "Home"}, "S", "F")
	require.NoError(t, err)
	assert.Equal(t, "RO24HFS", roma)

	assert.False(t, enc.Seed(domain.SkuSeed{TeamName: "Rotherham", Season: "24", Type: "Home", Size: "M", Sleeve: "H", SKU: "custom-1"}))
}

func TestSeasonCode(t *testing.T) {
	cases := map[string]string{
		"2024-25":    "24",
		"2024/25":    "24",
		"2024 - 25":  "24",
		"2024/2025":  "25",
		"24/25":      "25",
		"2023":       "23",
		"Retro 1998": "98",
		"1998 Retro": "98",
		"Season 7":   "XX",
		"":           "XX",
	}
	for in, want := range cases {
		assert.Equal(t, want, sku.SeasonCode(in), "season %q", in)
	}
}

func TestKitAndSizeCodes(t *testing.T) {
	assert.Equal(t, "3", sku.KitCode("Third"))
	assert.Equal(t, "T", sku.KitCode("training"))
	assert.Equal(t, "G", sku.KitCode("goalkeeper"))
	assert.Equal(t, "X", sku.KitCode(""))

	assert.Equal(t, "XS", sku.SizeCode("XS"))
	assert.Equal(t, "5", sku.SizeCode("xxxl"))
	assert.Equal(t, "Kids-8", sku.SizeCode("Kids-8"))
}
