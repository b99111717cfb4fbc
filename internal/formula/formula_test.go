package formula_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iaros/retailing-engine/internal/formula"
)

func TestEvalFormulaArithmeticPrecedence(t *testing.T) {
	v, err := formula.EvalFormula("2 + 3 * 4", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 14.0, v)
}

func TestEvalFormulaExponentRightAssociative(t *testing.T) {
	// 2^3^2 == 2^(3^2) == 2^9 == 512, not (2^3)^2 == 64.
	v, err := formula.EvalFormula("2^3^2", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 512.0, v)
}

func TestEvalFormulaParenthesesOverridePrecedence(t *testing.T) {
	v, err := formula.EvalFormula("(2 + 3) * 4", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 20.0, v)
}

func TestEvalFormulaVariables(t *testing.T) {
	v, err := formula.EvalFormula("utilization * 100 + days_until_departure", 0.75, 5)
	require.NoError(t, err)
	assert.Equal(t, 80.0, v)
}

func TestEvalFormulaMinMax(t *testing.T) {
	v, err := formula.EvalFormula("min(10, 20)", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)

	v, err = formula.EvalFormula("max(utilization, 0.5)", 0.9, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.9, v)
}

func TestEvalFormulaUnaryMinus(t *testing.T) {
	v, err := formula.EvalFormula("-5 + 10", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
}

func TestEvalFormulaDivisionByZero(t *testing.T) {
	_, err := formula.EvalFormula("1 / 0", 0, 0)
	assert.Error(t, err)
}

func TestEvalFormulaUnknownVariable(t *testing.T) {
	_, err := formula.EvalFormula("bogus + 1", 0, 0)
	assert.Error(t, err)
}

func TestEvalFormulaTrailingTokensRejected(t *testing.T) {
	_, err := formula.EvalFormula("1 + 1 2", 0, 0)
	assert.Error(t, err)
}

func TestEvalFormulaMissingClosingParen(t *testing.T) {
	_, err := formula.EvalFormula("(1 + 2", 0, 0)
	assert.Error(t, err)
}
