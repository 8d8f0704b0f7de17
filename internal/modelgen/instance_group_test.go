package modelgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractInstanceGroupKindNilParams(t *testing.T) {
	assert.Equal(t, "", ExtractInstanceGroupKind(nil))
}

func TestExtractInstanceGroupKindMissingKey(t *testing.T) {
	assert.Equal(t, "", ExtractInstanceGroupKind(map[string]interface{}{}))
}

func TestExtractInstanceGroupKindFlatShape(t *testing.T) {
	params := map[string]interface{}{
		"instance_group": []interface{}{
			map[string]interface{}{"kind": "KIND_GPU", "count": 2},
		},
	}
	assert.Equal(t, "KIND_GPU", ExtractInstanceGroupKind(params))
}

func TestExtractInstanceGroupKindDoublyNestedShape(t *testing.T) {
	params := map[string]interface{}{
		"instance_group": []interface{}{
			[]interface{}{
				map[string]interface{}{"kind": "KIND_CPU", "count": 1},
			},
		},
	}
	assert.Equal(t, "KIND_CPU", ExtractInstanceGroupKind(params))
}

func TestExtractInstanceGroupKindEmptyList(t *testing.T) {
	params := map[string]interface{}{"instance_group": []interface{}{}}
	assert.Equal(t, "", ExtractInstanceGroupKind(params))
}

func TestValidateCountSequenceShortListsAlwaysLegal(t *testing.T) {
	assert.NoError(t, ValidateCountSequence("m", nil))
	assert.NoError(t, ValidateCountSequence("m", []int{1}))
}

func TestValidateCountSequenceLinearAscending(t *testing.T) {
	assert.NoError(t, ValidateCountSequence("m", []int{1, 2, 3, 4}))
}

func TestValidateCountSequencePowersOfTwo(t *testing.T) {
	assert.NoError(t, ValidateCountSequence("m", []int{1, 2, 4, 8}))
}

func TestValidateCountSequenceRejectsIrregularSequence(t *testing.T) {
	err := ValidateCountSequence("m", []int{1, 2, 5, 6})
	assert.Error(t, err)

	var seqErr *IllegalSequenceError
	assert.ErrorAs(t, err, &seqErr)
	assert.Equal(t, "m", seqErr.ModelName)
	assert.Equal(t, []int{1, 2, 5, 6}, seqErr.Counts)
}

func TestValidateCountSequenceRejectsDescendingSequence(t *testing.T) {
	assert.Error(t, ValidateCountSequence("m", []int{4, 2, 1}))
}
