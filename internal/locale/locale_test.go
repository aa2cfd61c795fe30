package locale

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestForFallsBackToEnglish(t *testing.T) {
	assert.Equal(t, "Fonte", For("pt-BR").Source)
	assert.Equal(t, "Quelle", For("de").Source)
	assert.Equal(t, "Source", For("ja-JP").Source)
	assert.Equal(t, "Source", For("").Source)
	assert.Equal(t, "Fuente", For("es-MX").Source)
}

func TestBilingual(t *testing.T) {
	l := Bilingual("pt-BR", "en")
	assert.Equal(t, "Autor / Author", l.Author)
	assert.Equal(t, "Fonte / Source", l.Source)
	assert.Equal(t, "Imagem / Image", l.ImageAlt)

	same := Bilingual("en-US", "en-GB")
	assert.Equal(t, "Author", same.Author)

	fr := Bilingual("fr", "en")
	assert.Equal(t, "Source", fr.Source)
}

func TestLongDate(t *testing.T) {
	d := time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "March 13, 2024", For("en").LongDate(d))
	assert.Equal(t, "13 de março de 2024", For("pt").LongDate(d))
	assert.Equal(t, "13. März 2024", For("de").LongDate(d))
	assert.Equal(t, "", For("en").LongDate(time.Time{}))
}

func TestContentLanguage(t *testing.T) {
	assert.Equal(t, "pt-BR, en", ContentLanguage("pt-BR", "en"))
	assert.Equal(t, "en", ContentLanguage("en", "EN", ""))
}
