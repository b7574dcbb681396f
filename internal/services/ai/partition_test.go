package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

func TestCriteriaForLevel(t *testing.T) {
	a := CriteriaForLevel(models.WCAGLevelA)
	aa := CriteriaForLevel(models.WCAGLevelAA)
	aaa := CriteriaForLevel(models.WCAGLevelAAA)

	assert.NotEmpty(t, a)
	assert.Greater(t, len(aa), len(a), "AA includes all of A plus AA criteria")
	assert.Greater(t, len(aaa), len(aa), "AAA includes everything")

	for _, c := range a {
		assert.Equal(t, models.WCAGLevelA, c.Level)
	}

	// Sorted lexicographically by ID for deterministic partitioning.
	for i := 1; i < len(aaa); i++ {
		assert.Less(t, aaa[i-1].ID, aaa[i].ID)
	}
}

func TestCriteriaForLevel_Deterministic(t *testing.T) {
	first := CriteriaForLevel(models.WCAGLevelAA)
	second := CriteriaForLevel(models.WCAGLevelAA)
	require.Equal(t, first, second)
}

func TestPartition(t *testing.T) {
	criteria := make([]Criterion, 12)
	for i := range criteria {
		criteria[i] = Criterion{ID: string(rune('a' + i))}
	}

	batches := Partition(criteria, 5)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 5)
	assert.Len(t, batches[1], 5)
	assert.Len(t, batches[2], 2)

	// Concatenating the batches reproduces the input order.
	var flat []Criterion
	for _, b := range batches {
		flat = append(flat, b...)
	}
	assert.Equal(t, criteria, flat)
}

func TestPartition_SizeClamped(t *testing.T) {
	criteria := make([]Criterion, 20)

	assert.Len(t, Partition(criteria, 0), 4, "zero falls back to the default of 5")
	assert.Len(t, Partition(criteria, -1), 4)
	assert.Len(t, Partition(criteria, 50), 2, "sizes above 10 clamp to 10")
}

func TestPartition_Empty(t *testing.T) {
	assert.Empty(t, Partition(nil, 5))
}

func TestGroup(t *testing.T) {
	minis := Partition(make([]Criterion, 35), 5) // 7 mini-batches

	batches := Group(minis, 3)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[1], 3)
	assert.Len(t, batches[2], 1)

	// Flattening the groups reproduces the mini-batch order, so global
	// indices are stable no matter the batch size.
	var flat [][]Criterion
	for _, b := range batches {
		flat = append(flat, b...)
	}
	assert.Equal(t, minis, flat)
}

func TestGroup_DefaultSize(t *testing.T) {
	minis := Partition(make([]Criterion, 30), 5)
	assert.Len(t, Group(minis, 0), 1, "zero falls back to the default of 100")
	assert.Empty(t, Group(nil, 100))
}
