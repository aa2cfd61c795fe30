// Package locale holds the fixed label table used in rendered documents and
// email envelopes.
package locale

import (
	"fmt"
	"strings"
	"time"

	"github.com/deusflow/inkpost/internal/newsletter"
)

const fallback = "en"

// Labels are the localized strings of one language.
type Labels struct {
	Language       string
	Author         string
	Source         string
	Unsubscribe    string
	DefaultContent string
	ImageAlt       string
	Months         [12]string
	// DatePattern receives day, month name and year, in that order.
	DatePattern string
}

var table = map[string]Labels{
	"en": {
		Language:       "en",
		Author:         "Author",
		Source:         "Source",
		Unsubscribe:    "Unsubscribe",
		DefaultContent: "Your newsletter is attached. Enjoy the reading!",
		ImageAlt:       "Image",
		Months: [12]string{"January", "February", "March", "April", "May", "June",
			"July", "August", "September", "October", "November", "December"},
		DatePattern: "%[2]s %[1]d, %[3]d",
	},
	"pt": {
		Language:       "pt",
		Author:         "Autor",
		Source:         "Fonte",
		Unsubscribe:    "Cancelar inscrição",
		DefaultContent: "Sua newsletter está em anexo. Boa leitura!",
		ImageAlt:       "Imagem",
		Months: [12]string{"janeiro", "fevereiro", "março", "abril", "maio", "junho",
			"julho", "agosto", "setembro", "outubro", "novembro", "dezembro"},
		DatePattern: "%[1]d de %[2]s de %[3]d",
	},
	"es": {
		Language:       "es",
		Author:         "Autor",
		Source:         "Fuente",
		Unsubscribe:    "Cancelar suscripción",
		DefaultContent: "Tu boletín está adjunto. ¡Buena lectura!",
		ImageAlt:       "Imagen",
		Months: [12]string{"enero", "febrero", "marzo", "abril", "mayo", "junio",
			"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"},
		DatePattern: "%[1]d de %[2]s de %[3]d",
	},
	"fr": {
		Language:       "fr",
		Author:         "Auteur",
		Source:         "Source",
		Unsubscribe:    "Se désabonner",
		DefaultContent: "Votre newsletter est en pièce jointe. Bonne lecture !",
		ImageAlt:       "Image",
		Months: [12]string{"janvier", "février", "mars", "avril", "mai", "juin",
			"juillet", "août", "septembre", "octobre", "novembre", "décembre"},
		DatePattern: "%[1]d %[2]s %[3]d",
	},
	"de": {
		Language:       "de",
		Author:         "Autor",
		Source:         "Quelle",
		Unsubscribe:    "Abbestellen",
		DefaultContent: "Ihr Newsletter ist angehängt. Viel Spaß beim Lesen!",
		ImageAlt:       "Bild",
		Months: [12]string{"Januar", "Februar", "März", "April", "Mai", "Juni",
			"Juli", "August", "September", "Oktober", "November", "Dezember"},
		DatePattern: "%[1]d. %[2]s %[3]d",
	},
}

// For returns the labels of the locale's primary language, falling back to English.
func For(loc string) Labels {
	if l, ok := table[newsletter.PrimaryLanguage(loc)]; ok {
		return l
	}
	return table[fallback]
}

// Bilingual combines the labels of two locales as "source / target".
func Bilingual(source, target string) Labels {
	s, t := For(source), For(target)
	if s.Language == t.Language {
		return s
	}
	join := func(a, b string) string {
		if a == b {
			return a
		}
		return a + " / " + b
	}
	return Labels{
		Language:       s.Language + "," + t.Language,
		Author:         join(s.Author, t.Author),
		Source:         join(s.Source, t.Source),
		Unsubscribe:    join(s.Unsubscribe, t.Unsubscribe),
		DefaultContent: join(s.DefaultContent, t.DefaultContent),
		ImageAlt:       join(s.ImageAlt, t.ImageAlt),
		Months:         s.Months,
		DatePattern:    s.DatePattern,
	}
}

// LongDate formats t the way the language writes dates in prose.
func (l Labels) LongDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf(l.DatePattern, t.Day(), l.Months[t.Month()-1], t.Year())
}

// ContentLanguage is the value of the Content-Language header for a document
// written in the given locales.
func ContentLanguage(locales ...string) string {
	var out []string
	seen := map[string]bool{}
	for _, loc := range locales {
		loc = strings.TrimSpace(loc)
		if loc == "" || seen[strings.ToLower(loc)] {
			continue
		}
		seen[strings.ToLower(loc)] = true
		out = append(out, loc)
	}
	return strings.Join(out, ", ")
}
