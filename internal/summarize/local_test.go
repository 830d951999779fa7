package summarize_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/kiranshivaraju/scribe/internal/summarize"
	"github.com/stretchr/testify/assert"
)

func TestLocalSummary_ShortTranscript(t *testing.T) {
	got := summarize.LocalSummary("Hola. Esto es una prueba. Vamos a revisar el presupuesto.")

	assert.Equal(t, "Hola. Esto es una prueba. Vamos a revisar el presupuesto.", got.ShortSummary)
	assert.LessOrEqual(t, len(got.KeyPoints), 3)
	for _, kp := range got.KeyPoints {
		assert.True(t, strings.HasSuffix(kp, "."), kp)
	}
	assert.Equal(t, []string{"Hola."}, got.KeyPoints)
	assert.NotNil(t, got.ActionItems)
	assert.Empty(t, got.ActionItems)
}

func TestLocalSummary_CapsAt150Words(t *testing.T) {
	words := make([]string, 200)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	got := summarize.LocalSummary(strings.Join(words, "  \n "))

	assert.Equal(t, strings.Join(words[:150], " "), got.ShortSummary)
}

func TestLocalSummary_FirstSevenParagraphs(t *testing.T) {
	var paras []string
	for i := 1; i <= 9; i++ {
		paras = append(paras, fmt.Sprintf("Punto %d. Detalle adicional.", i))
	}
	got := summarize.LocalSummary(strings.Join(paras, "\n\n"))

	assert.Len(t, got.KeyPoints, 7)
	assert.Equal(t, "Punto 1.", got.KeyPoints[0])
	assert.Equal(t, "Punto 7.", got.KeyPoints[6])
}

func TestLocalSummary_SkipsEmptyParagraphsAndSentences(t *testing.T) {
	text := "Primero.\n\n   \n\n. Sólo un punto\n\nSin punto final"
	got := summarize.LocalSummary(text)

	assert.Equal(t, []string{"Primero.", "Sin punto final."}, got.KeyPoints)
}

func TestLocalSummary_Empty(t *testing.T) {
	got := summarize.LocalSummary("")

	assert.Equal(t, "", got.ShortSummary)
	assert.Equal(t, []string{}, got.KeyPoints)
	assert.Equal(t, []string{}, got.ActionItems)
}
