package search

import (
	"strings"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/dto"
)

// columnFields are predicates that map onto real table columns. Everything
// else lands in the jsonb fields document.
var columnFields = map[string]string{
	"category":    "category",
	"source_file": "source_file",
	"source_page": "source_page",
	"content":     "content",
}

// TranslateFilter converts a wire filter into a parameterized SQL clause.
func TranslateFilter(filter *dto.Filter) (string, []interface{}, error) {
	if filter == nil || len(filter.SearchFilters) == 0 {
		return "", nil, nil
	}

	operator := " AND "
	switch filter.LogicalOperator {
	case dto.LogicalOr:
		operator = " OR "
	case dto.LogicalAnd, "":
	default:
		return "", nil, apperror.Newf(apperror.KindValidation, "unknown logical operator %q", filter.LogicalOperator)
	}

	clauses := make([]string, 0, len(filter.SearchFilters))
	args := make([]interface{}, 0, len(filter.SearchFilters))
	for _, f := range filter.SearchFilters {
		clause, clauseArgs, err := translateOne(f)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
		args = append(args, clauseArgs...)
	}
	return "(" + strings.Join(clauses, operator) + ")", args, nil
}

func translateOne(f dto.SearchFilter) (string, []interface{}, error) {
	column, isColumn := columnFields[f.FieldName]
	if !isColumn {
		// jsonb lookup; the field name itself is bound as an argument.
		column = "fields->>?"
	}

	var clause string
	value := interface{}(f.FieldValue)
	switch f.FilterType {
	case dto.FilterEquals:
		clause = column + " = ?"
	case dto.FilterNotEquals:
		clause = column + " != ?"
	case dto.FilterGreaterOrEquals:
		clause = column + " >= ?"
	case dto.FilterLesserOrEquals:
		clause = column + " <= ?"
	case dto.FilterContains:
		clause = column + " ILIKE ?"
		value = "%" + f.FieldValue + "%"
	default:
		return "", nil, apperror.Newf(apperror.KindValidation, "unknown filter type %q", f.FilterType)
	}

	if isColumn {
		return clause, []interface{}{value}, nil
	}
	return "(" + clause + ")", []interface{}{f.FieldName, value}, nil
}
