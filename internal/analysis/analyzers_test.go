package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tessera-search/tessera/pkg/errors"
)

func TestWhitespaceKeepsTokensVerbatim(t *testing.T) {
	tokens, err := Whitespace("The  Cat\tsat ", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"The", "Cat", "sat"}, tokens)
}

func TestStandardLowercasesAndStems(t *testing.T) {
	tokens, err := Standard("The quick brown foxes jumped", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"quick", "brown", "fox", "jump"}, tokens)
}

func TestStandardRemovesStopWordsAndShortTokens(t *testing.T) {
	tokens, err := Standard("it is a cat", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, tokens)
}

func TestStandardMinLengthArg(t *testing.T) {
	tokens, err := Standard("go is fun", []string{"1"})
	require.NoError(t, err)
	assert.Contains(t, tokens, "go")

	_, err = Standard("anything", []string{"not-a-number"})
	assert.Error(t, err)
}

func TestAnalyzeUnknownFactory(t *testing.T) {
	_, err := DefaultAnalyzers().Analyze("text", "no-such-analyzer", nil)
	assert.ErrorIs(t, err, apperrors.ErrAnalyzer)
}

func TestAnalyzeWrapsAnalyzerFailure(t *testing.T) {
	analyzers := Analyzers{"standard": Standard}
	_, err := analyzers.Analyze("text", "standard", []string{"bogus"})
	assert.ErrorIs(t, err, apperrors.ErrAnalyzer)
}
