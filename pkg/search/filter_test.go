package search

import (
	"testing"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateFilterColumns(t *testing.T) {
	filter := &dto.Filter{
		SearchFilters: []dto.SearchFilter{
			{FieldName: "category", FieldValue: "shoes", FilterType: dto.FilterEquals},
			{FieldName: "content", FieldValue: "waterproof", FilterType: dto.FilterContains},
		},
	}

	clause, args, err := TranslateFilter(filter)
	require.NoError(t, err)
	assert.Equal(t, "(category = ? AND content ILIKE ?)", clause)
	assert.Equal(t, []interface{}{"shoes", "%waterproof%"}, args)
}

func TestTranslateFilterJsonbField(t *testing.T) {
	filter := &dto.Filter{
		SearchFilters: []dto.SearchFilter{
			{FieldName: "reportedYear", FieldValue: "2023", FilterType: dto.FilterGreaterOrEquals},
		},
	}

	clause, args, err := TranslateFilter(filter)
	require.NoError(t, err)
	assert.Equal(t, "((fields->>? >= ?))", clause)
	assert.Equal(t, []interface{}{"reportedYear", "2023"}, args)
}

func TestTranslateFilterOrOperator(t *testing.T) {
	filter := &dto.Filter{
		LogicalOperator: dto.LogicalOr,
		SearchFilters: []dto.SearchFilter{
			{FieldName: "category", FieldValue: "a", FilterType: dto.FilterEquals},
			{FieldName: "category", FieldValue: "b", FilterType: dto.FilterEquals},
		},
	}

	clause, args, err := TranslateFilter(filter)
	require.NoError(t, err)
	assert.Equal(t, "(category = ? OR category = ?)", clause)
	assert.Len(t, args, 2)
}

func TestTranslateFilterRejectsUnknownOperatorAndType(t *testing.T) {
	_, _, err := TranslateFilter(&dto.Filter{
		LogicalOperator: "XOR",
		SearchFilters:   []dto.SearchFilter{{FieldName: "category", FieldValue: "a", FilterType: dto.FilterEquals}},
	})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, _, err = TranslateFilter(&dto.Filter{
		SearchFilters: []dto.SearchFilter{{FieldName: "category", FieldValue: "a", FilterType: "LIKE"}},
	})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestTranslateFilterEmpty(t *testing.T) {
	clause, args, err := TranslateFilter(nil)
	require.NoError(t, err)
	assert.Empty(t, clause)
	assert.Empty(t, args)
}

func TestIndexConfigValidate(t *testing.T) {
	valid := &IndexConfig{
		Name: "docs",
		Mode: ModeVector,
		SelectFields: []FieldConfig{
			{Name: "item_id", IsItemID: true},
			{Name: "content"},
		},
	}
	assert.NoError(t, valid.Validate())
	assert.Equal(t, "item_id", valid.ItemIDField())

	noItemID := &IndexConfig{Name: "docs", Mode: ModeVector, SelectFields: []FieldConfig{{Name: "content"}}}
	assert.Error(t, noItemID.Validate())

	badMode := &IndexConfig{Name: "docs", Mode: "fuzzy", SelectFields: []FieldConfig{{Name: "id", IsItemID: true}}}
	assert.Error(t, badMode.Validate())
}
