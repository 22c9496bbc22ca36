package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spotsng/discovery-be/internal/catalog"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "Amala Spot", "amala spot"},
		{"trim", "  Mama Put  ", "mama put"},
		{"collapse internal whitespace", "amala   spot", "amala spot"},
		{"tabs and newlines", "amala\t \nspot", "amala spot"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Amala Spot", "Amala Spot", 1},
		{"identical after normalization", "Amala Spot", "amala   spot", 1},
		{"completely different", "Amala Spot", "Suya Palace", 0},
		{"empty strings score zero", "", "", 0},
		{"single character scores zero", "a", "a", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if tt.want == 0 || tt.want == 1 {
				assert.Equal(t, tt.want, got)
			}
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestSimilarity_CloseNames(t *testing.T) {
	// One-character difference in a long name stays above the threshold
	got := Similarity("Mama Cass Restaurant", "Mama Cass Restaurants")
	assert.Greater(t, got, NameThreshold)

	// Unrelated names of similar length stay below it
	got = Similarity("Mama Cass Restaurant", "Kilimanjaro Lekki One")
	assert.Less(t, got, NameThreshold)
}

func TestIsDuplicate_IdenticalNormalizedNames(t *testing.T) {
	// Same normalized name is a duplicate regardless of address
	existing := []catalog.Snapshot{
		{LocationID: "1", Name: "amala   spot", Address: "12 Allen Avenue, Ikeja"},
	}

	assert.True(t, IsDuplicate(Candidate{Name: "Amala Spot", Address: ""}, existing))
	assert.True(t, IsDuplicate(Candidate{Name: "AMALA SPOT", Address: "somewhere else entirely"}, existing))
}

func TestIsDuplicate_AddressMatch(t *testing.T) {
	existing := []catalog.Snapshot{
		{LocationID: "1", Name: "The Place", Address: "23 Admiralty Way, Lekki Phase 1, Lagos"},
	}

	// Different name, nearly identical address
	candidate := Candidate{
		Name:    "De Place Restaurant and Lounge Marquee",
		Address: "23 Admiralty Way, Lekki Phase 1, Lagos.",
	}
	assert.True(t, IsDuplicate(candidate, existing))
}

func TestIsDuplicate_NoAddressReliesOnName(t *testing.T) {
	existing := []catalog.Snapshot{
		{LocationID: "1", Name: "Kilimanjaro", Address: "1 Opebi Road"},
	}

	// No address: only the name decides, and it differs entirely
	assert.False(t, IsDuplicate(Candidate{Name: "Sweet Sensation", Address: ""}, existing))
}

func TestIsDuplicate_EmptyCatalog(t *testing.T) {
	assert.False(t, IsDuplicate(Candidate{Name: "Amala Spot"}, nil))
	assert.False(t, IsDuplicate(Candidate{Name: "Amala Spot"}, []catalog.Snapshot{}))
}

func TestIsDuplicate_DistinctPlaces(t *testing.T) {
	existing := []catalog.Snapshot{
		{LocationID: "1", Name: "Ocean Basket", Address: "19 Adeola Odeku Street, Victoria Island"},
		{LocationID: "2", Name: "Cactus Restaurant", Address: "20 Ozumba Mbadiwe Avenue, Victoria Island"},
	}

	candidate := Candidate{
		Name:    "Terra Kulture",
		Address: "1376 Tiamiyu Savage Street, Victoria Island",
	}
	assert.False(t, IsDuplicate(candidate, existing))
}
